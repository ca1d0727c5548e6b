package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
)

// DefaultPendingTTL bounds how long an interactive login may take.
const DefaultPendingTTL = 10 * time.Minute

// Config describes the relying party.
type Config struct {
	Issuer                string
	ClientID              string
	ClientSecret          string
	RedirectURL           string
	PostLogoutRedirectURL string
	// Scopes granted at login. Silent acquisition is limited to these.
	Scopes []string
	// HTTPClient is used for discovery, code exchange and refresh.
	HTTPClient *http.Client
	Logger     *slog.Logger
	PendingTTL time.Duration
	// Cache, when set, persists signed-in accounts and their tokens so a
	// restarted process can resume silently. It holds refresh tokens.
	Cache    storage.Backend
	CacheKey string
}

// DefaultScopes are requested when Config.Scopes is empty.
func DefaultScopes() []string {
	return []string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}
}

type pendingLogin struct {
	verifier string
	nonce    string
	created  time.Time
}

type cachedAccount struct {
	account session.Account
	token   *oauth2.Token
	idToken string
}

// Provider is an OpenID Connect relying party.
type Provider struct {
	oauth      oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	endSession string
	postLogout string
	environ    string
	navigate   provider.Navigator
	client     *http.Client
	logger     *slog.Logger
	pendingTTL time.Duration
	now        func() time.Time
	cache      storage.Backend
	cacheKey   string
	loadOnce   sync.Once

	mu       sync.Mutex
	pending  map[string]pendingLogin
	accounts map[string]*cachedAccount
	active   string
}

var (
	_ provider.IdentityProvider = (*Provider)(nil)
	_ provider.RedirectHandler  = (*Provider)(nil)
)

// New discovers cfg.Issuer and returns a provider that navigates with
// navigate.
func New(ctx context.Context, cfg Config, navigate provider.Navigator) (*Provider, error) {
	if cfg.HTTPClient != nil {
		ctx = gooidc.ClientContext(ctx, cfg.HTTPClient)
	}
	discovered, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := discovered.Claims(&meta); err != nil {
		return nil, fmt.Errorf("oidc discovery metadata: %w", err)
	}

	verifier := discovered.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
	return NewWithEndpoint(cfg, discovered.Endpoint(), verifier, meta.EndSession, navigate)
}

// NewWithEndpoint builds a provider from explicit endpoints, skipping
// discovery. endSessionURL may be empty.
func NewWithEndpoint(cfg Config, endpoint oauth2.Endpoint, verifier *gooidc.IDTokenVerifier, endSessionURL string, navigate provider.Navigator) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oidc: client id is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("oidc: redirect url is required")
	}
	if verifier == nil {
		return nil, errors.New("oidc: id token verifier is required")
	}
	if navigate == nil {
		return nil, errors.New("oidc: navigator is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	if !slices.Contains(scopes, gooidc.ScopeOpenID) {
		scopes = append([]string{gooidc.ScopeOpenID}, scopes...)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}

	var environ string
	if u, err := url.Parse(cfg.Issuer); err == nil {
		environ = u.Host
	}
	cacheKey := cfg.CacheKey
	if cacheKey == "" {
		cacheKey = DefaultCacheKey
	}

	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier:   verifier,
		endSession: endSessionURL,
		postLogout: cfg.PostLogoutRedirectURL,
		environ:    environ,
		navigate:   navigate,
		client:     cfg.HTTPClient,
		logger:     logger.With("component", "provider.oidc"),
		pendingTTL: ttl,
		now:        time.Now,
		cache:      cfg.Cache,
		cacheKey:   cacheKey,
		pending:    make(map[string]pendingLogin),
		accounts:   make(map[string]*cachedAccount),
	}, nil
}

// ActiveAccount returns the account made active by the last completed
// redirect, or nil.
func (p *Provider) ActiveAccount(ctx context.Context) (*session.Account, error) {
	p.loadCache(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.accounts[p.active]
	if !ok {
		return nil, nil
	}
	return c.account.Clone(), nil
}

// LoginRedirect records a pending login and navigates to the authorization
// endpoint.
func (p *Provider) LoginRedirect(ctx context.Context, scopes []string) error {
	state := uuid.NewString()
	pending := pendingLogin{
		verifier: oauth2.GenerateVerifier(),
		nonce:    uuid.NewString(),
		created:  p.now(),
	}

	p.mu.Lock()
	p.prunePendingLocked()
	p.pending[state] = pending
	p.mu.Unlock()

	cfg := p.oauth
	cfg.Scopes = mergeScopes(p.oauth.Scopes, scopes)
	target := cfg.AuthCodeURL(state,
		oauth2.S256ChallengeOption(pending.verifier),
		gooidc.Nonce(pending.nonce),
	)
	return p.navigate(ctx, target)
}

// HandleRedirect completes a login started by LoginRedirect.
func (p *Provider) HandleRedirect(ctx context.Context, callback *url.URL) (*session.Account, error) {
	if callback == nil {
		return nil, fmt.Errorf("%w: missing callback url", provider.ErrCallback)
	}
	q := callback.Query()

	state := q.Get("state")
	p.mu.Lock()
	pending, ok := p.pending[state]
	delete(p.pending, state)
	p.mu.Unlock()

	if !ok || p.now().Sub(pending.created) > p.pendingTTL {
		return nil, provider.ErrStateMismatch
	}
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("%w: %s: %s", provider.ErrCallback, e, q.Get("error_description"))
	}
	code := q.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", provider.ErrCallback)
	}

	ctx = p.clientContext(ctx)
	tok, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange: %v", provider.ErrCallback, err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", provider.ErrTokenVerification)
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrTokenVerification, err)
	}
	if idToken.Nonce != pending.nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", provider.ErrTokenVerification)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", provider.ErrTokenVerification, err)
	}
	account := claims.account(idToken.Subject, p.environ)

	p.loadCache(ctx)
	p.mu.Lock()
	p.accounts[account.HomeAccountID] = &cachedAccount{
		account: account,
		token:   tok,
		idToken: rawIDToken,
	}
	p.active = account.HomeAccountID
	p.mu.Unlock()
	p.saveCache(ctx)

	p.logger.InfoContext(ctx, "provider login completed", "home_account_id", account.HomeAccountID)
	return account.Clone(), nil
}

// AcquireTokenSilent returns a valid access token for account, refreshing it
// when expired.
func (p *Provider) AcquireTokenSilent(ctx context.Context, account session.Account, scopes []string) (string, error) {
	p.loadCache(ctx)

	p.mu.Lock()
	cached, ok := p.accounts[account.HomeAccountID]
	var current *oauth2.Token
	if ok {
		current = cached.token
	}
	p.mu.Unlock()

	if !ok || current == nil {
		return "", fmt.Errorf("%w: no cached session for account", provider.ErrInteractionRequired)
	}
	for _, s := range scopes {
		if !slices.Contains(p.oauth.Scopes, s) {
			return "", fmt.Errorf("%w: scope %q not granted", provider.ErrInteractionRequired, s)
		}
	}

	tok, err := p.oauth.TokenSource(p.clientContext(ctx), current).Token()
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return "", fmt.Errorf("refresh token: %w", cerr)
		}
		return "", fmt.Errorf("%w: %w", provider.ErrInteractionRequired, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", provider.ErrInteractionRequired)
	}

	if tok != current {
		p.mu.Lock()
		if c, ok := p.accounts[account.HomeAccountID]; ok {
			c.token = tok
		}
		p.mu.Unlock()
		p.saveCache(ctx)
	}
	return tok.AccessToken, nil
}

// LogoutRedirect drops cached tokens and, when the issuer advertises an
// end_session_endpoint, navigates there.
func (p *Provider) LogoutRedirect(ctx context.Context, account *session.Account) error {
	p.loadCache(ctx)

	p.mu.Lock()
	var idTokenHint string
	if account == nil {
		if c, ok := p.accounts[p.active]; ok {
			idTokenHint = c.idToken
		}
		clear(p.accounts)
		p.active = ""
	} else {
		if c, ok := p.accounts[account.HomeAccountID]; ok {
			idTokenHint = c.idToken
		}
		delete(p.accounts, account.HomeAccountID)
		if p.active == account.HomeAccountID {
			p.active = ""
		}
	}
	p.mu.Unlock()
	p.saveCache(ctx)

	if p.endSession == "" {
		return nil
	}

	target, err := url.Parse(p.endSession)
	if err != nil {
		return fmt.Errorf("oidc: end_session_endpoint: %w", err)
	}
	q := target.Query()
	q.Set("client_id", p.oauth.ClientID)
	if idTokenHint != "" {
		q.Set("id_token_hint", idTokenHint)
	}
	if p.postLogout != "" {
		q.Set("post_logout_redirect_uri", p.postLogout)
	}
	target.RawQuery = q.Encode()
	return p.navigate(ctx, target.String())
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	if p.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *Provider) prunePendingLocked() {
	now := p.now()
	for state, pending := range p.pending {
		if now.Sub(pending.created) > p.pendingTTL {
			delete(p.pending, state)
		}
	}
}

func mergeScopes(base, extra []string) []string {
	out := slices.Clone(base)
	for _, s := range extra {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
