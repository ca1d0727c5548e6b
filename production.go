package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/token"
)

// ProfileFetcher fetches the backend's view of the current user.
// *profile.Client implements it.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context) (*session.User, error)
}

// Production authenticates against an identity provider and mirrors the
// backend profile of the signed-in account into the session.
//
// Concurrent AccessToken calls for the same account share one acquisition.
// Two processes sharing one storage backend are not coordinated; the last
// write wins.
type Production struct {
	*core

	provider provider.IdentityProvider
	redirect provider.RedirectHandler
	fetcher  ProfileFetcher
	scopes   []string
	deps     flows.Deps

	inflight singleflight.Group

	// syncMu serializes the identity gate. syncedAccount is the account
	// the synchronizer last ran for.
	syncMu        sync.Mutex
	syncedAccount string
}

func newProduction(c *core, idp provider.IdentityProvider, fetcher ProfileFetcher, scopes []string) *Production {
	p := &Production{
		core:     c,
		provider: idp,
		fetcher:  fetcher,
		scopes:   slices.Clone(scopes),
	}
	if rh, ok := idp.(provider.RedirectHandler); ok {
		p.redirect = rh
	}
	p.deps = flows.Deps{
		Acquire: flows.AcquireDeps{
			Scopes:      p.scopes,
			Silent:      idp.AcquireTokenSilent,
			Interactive: p.interactive,
			Validate:    token.Validate,
		},
		Sync: flows.SyncDeps{
			FetchProfile: func(ctx context.Context) (*session.User, error) {
				return p.fetcher.FetchProfile(ctx)
			},
			SetUser:  p.store.SetUser,
			Validate: session.ValidateUser,
		},
	}
	return p
}

// Login marks the session as loading and starts the interactive redirect.
func (p *Production) Login(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	if err := p.interactive(ctx, p.scopes); err != nil {
		p.metrics.Inc(MetricInteractiveFailure)
		p.logger.Error("login redirect failed", slog.Any("error", err))
		p.emit(ctx, AuditEventLoginRedirect, false, err, nil)
		return fmt.Errorf("%w: %v", ErrInteractiveAcquisition, err)
	}

	p.metrics.Inc(MetricLogin)
	p.emit(ctx, AuditEventLoginRedirect, true, nil, nil)
	return nil
}

// CompleteRedirect finishes an interactive login from the provider's
// callback URL, records the account and runs the identity sync for it.
// A sync failure leaves the account set and the user unchanged and is
// returned as [ErrIdentitySync].
func (p *Production) CompleteRedirect(ctx context.Context, callback *url.URL) error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	if p.redirect == nil {
		return fmt.Errorf("%w: provider does not handle redirects", ErrModeUnsupported)
	}

	account, err := p.redirect.HandleRedirect(ctx, callback)
	p.store.SetLoading(false)
	if err != nil {
		p.metrics.Inc(MetricRedirectFailure)
		p.logger.Error("redirect completion failed", slog.Any("error", err))
		p.emit(ctx, AuditEventRedirectCompleted, false, err, nil)
		return err
	}

	p.metrics.Inc(MetricRedirectCompleted)
	p.logger.Info("redirect completed", slog.String("home_account_id", account.HomeAccountID))
	return p.observeAccount(ctx, account, AuditEventRedirectCompleted)
}

// Resume asks the provider for its active account and feeds it through the
// identity gate. It is called by Build and may be called again whenever the
// provider's account may have changed.
func (p *Production) Resume(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	account, err := p.provider.ActiveAccount(ctx)
	if err != nil {
		return fmt.Errorf("active account: %w", err)
	}
	return p.observeAccount(ctx, account, "")
}

// SyncIdentity refetches the backend profile for the current account. It is
// the retry path after a failed sync.
func (p *Production) SyncIdentity(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	account := p.store.Account()
	if account == nil {
		return ErrNoAccount
	}
	p.syncedAccount = account.HomeAccountID
	return p.syncLocked(ctx, account)
}

// Logout clears the local session and ends the provider session.
func (p *Production) Logout(ctx context.Context) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	before := p.store.Snapshot()

	p.syncMu.Lock()
	err := p.store.Logout(ctx)
	p.syncedAccount = ""
	p.syncMu.Unlock()
	p.store.SetLoading(false)

	p.metrics.Inc(MetricLogout)
	p.logger.Info("logout")
	p.emitFor(ctx, before, AuditEventLogout, err == nil, err, nil)
	werr := p.writeFailed(ctx, "logout", err)

	if lerr := p.provider.LogoutRedirect(ctx, before.Account); lerr != nil {
		p.logger.Error("provider logout failed", slog.Any("error", lerr))
		return errors.Join(werr, fmt.Errorf("provider logout: %w", lerr))
	}
	return werr
}

// AccessToken returns a token for the current account. It returns ("", nil)
// when there is no account, and when the silent attempt failed and the
// interactive redirect was started (or could not be). A token that is not
// three-segment shaped is reported as [ErrInvalidTokenFormat].
//
// The fallback mutates the session: it sets the loading flag before the
// redirect. A silent attempt that ends because its context was canceled or
// timed out is returned as that context error and never falls back.
func (p *Production) AccessToken(ctx context.Context) (string, error) {
	if err := p.checkOpen(); err != nil {
		return "", err
	}

	account := p.store.Account()
	if account == nil {
		p.metrics.Inc(MetricNoAccount)
		return "", nil
	}

	// The shared attempt outlives any single caller; each caller stops
	// waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := p.inflight.DoChan(account.HomeAccountID, func() (any, error) {
		return p.acquireToken(shared, account)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Production) acquireToken(ctx context.Context, account *session.Account) (string, error) {
	res := flows.RunAcquire(ctx, account, p.deps.Acquire)
	p.metrics.Observe(MetricTokenAcquireLatency, res.Latency)

	switch res.Failure {
	case flows.AcquireFailureNone:
		p.metrics.Inc(MetricSilentAcquisitionSuccess)
		return res.Token.String(), nil

	case flows.AcquireFailureNoAccount:
		p.metrics.Inc(MetricNoAccount)
		return "", nil

	case flows.AcquireFailureInvalidFormat:
		p.metrics.Inc(MetricInvalidTokenFormat)
		p.logger.Error("provider returned malformed token", slog.Any("error", res.Err))
		p.emit(ctx, AuditEventInvalidTokenFormat, false, res.Err, map[string]string{audit.MetaSource: "provider"})
		return "", res.Err

	case flows.AcquireFailureAborted:
		p.logger.Debug("token acquisition aborted", slog.Any("error", res.Err))
		return "", res.Err

	case flows.AcquireFailureSilent:
		p.metrics.Inc(MetricSilentAcquisitionFailure)
		p.metrics.Inc(MetricInteractiveRedirect)
		p.logger.Info("silent acquisition failed, redirecting", slog.Any("error", res.SilentErr))
		p.emit(ctx, AuditEventSilentAcquisition, false, fmt.Errorf("%w: %v", ErrSilentAcquisition, res.SilentErr), nil)
		p.emit(ctx, AuditEventInteractiveRedirect, true, nil, nil)
		return "", nil

	case flows.AcquireFailureInteractive:
		p.metrics.Inc(MetricSilentAcquisitionFailure)
		p.metrics.Inc(MetricInteractiveFailure)
		p.logger.Error("interactive fallback failed",
			slog.Any("silent_error", res.SilentErr),
			slog.Any("error", res.Err),
		)
		p.emit(ctx, AuditEventSilentAcquisition, false, fmt.Errorf("%w: %v", ErrSilentAcquisition, res.SilentErr), nil)
		p.emit(ctx, AuditEventInteractiveRedirect, false, fmt.Errorf("%w: %v", ErrInteractiveAcquisition, res.Err), nil)
		return "", nil

	default:
		return "", nil
	}
}

// interactive is the redirect half of login and of the acquisition
// fallback.
func (p *Production) interactive(ctx context.Context, scopes []string) error {
	p.store.SetLoading(true)
	if err := p.provider.LoginRedirect(ctx, scopes); err != nil {
		p.store.SetLoading(false)
		return err
	}
	return nil
}

// observeAccount is the identity gate: the synchronizer never runs for a
// nil account and runs exactly once for each new account.
func (p *Production) observeAccount(ctx context.Context, account *session.Account, auditType string) error {
	if account == nil {
		return nil
	}

	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	if auditType != "" {
		defer p.emit(ctx, auditType, true, nil, nil)
	}

	if current := p.store.Account(); current == nil || *current != *account {
		if err := p.store.SetAccount(ctx, account); err != nil {
			_ = p.writeFailed(ctx, "set_account", err)
		}
	}

	if p.syncedAccount == account.HomeAccountID {
		return nil
	}
	p.syncedAccount = account.HomeAccountID
	return p.syncLocked(ctx, account)
}

// syncLocked must be called with syncMu held.
func (p *Production) syncLocked(ctx context.Context, account *session.Account) error {
	res := flows.RunIdentitySync(ctx, account, p.deps.Sync)

	switch res.Failure {
	case flows.SyncFailureNone:
		p.metrics.Inc(MetricIdentitySyncSuccess)
		p.logger.Info("identity synced", slog.String("user_id", res.User.ID))
		p.emit(ctx, AuditEventIdentitySync, true, nil, nil)
		return nil

	case flows.SyncFailureNoAccount:
		return ErrNoAccount

	case flows.SyncFailureStore:
		p.metrics.Inc(MetricIdentitySyncSuccess)
		p.emit(ctx, AuditEventIdentitySync, true, nil, nil)
		return p.writeFailed(ctx, "identity_sync", res.Err)

	case flows.SyncFailureInvalidProfile:
		p.metrics.Inc(MetricIdentitySyncFailure)
		p.logger.Error("backend profile rejected",
			slog.String("home_account_id", account.HomeAccountID),
			slog.Any("error", res.Err),
		)
		p.emit(ctx, AuditEventIdentitySync, false, res.Err, map[string]string{audit.MetaSource: "profile"})
		return fmt.Errorf("%w: %w", ErrIdentitySync, res.Err)

	default:
		p.metrics.Inc(MetricIdentitySyncFailure)
		p.logger.Error("identity sync failed",
			slog.String("home_account_id", account.HomeAccountID),
			slog.Any("error", res.Err),
		)
		p.emit(ctx, AuditEventIdentitySync, false, res.Err, nil)
		return fmt.Errorf("%w: %w", ErrIdentitySync, res.Err)
	}
}

// CompleteRedirect finishes an interactive login on a production
// authenticator. It returns [ErrModeUnsupported] for any other strategy.
func CompleteRedirect(ctx context.Context, a Authenticator, callback *url.URL) error {
	p, ok := a.(*Production)
	if !ok {
		return ErrModeUnsupported
	}
	return p.CompleteRedirect(ctx, callback)
}

// SyncIdentity retries the identity sync on a production authenticator.
// It returns [ErrModeUnsupported] for any other strategy.
func SyncIdentity(ctx context.Context, a Authenticator) error {
	p, ok := a.(*Production)
	if !ok {
		return ErrModeUnsupported
	}
	return p.SyncIdentity(ctx)
}
