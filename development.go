package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/token"
)

// DevelopmentUser is the identity signed in by the development strategy.
func DevelopmentUser() session.User {
	return session.User{
		ID:               "dev-user",
		Email:            "dev@example.com",
		Name:             "Development User",
		ProviderObjectID: "dev-provider-object-id",
		Roles:            []string{"user", "admin"},
	}
}

// Development signs in a constant mock identity. Login is synchronous, so
// the session never enters the loading state.
type Development struct {
	*core

	user  session.User
	token token.Token
	cache *storage.TokenCache
}

func newDevelopment(c *core, cfg DevelopmentConfig, cache *storage.TokenCache) (*Development, error) {
	user := DevelopmentUser()
	if err := session.ValidateUser(&user); err != nil {
		return nil, fmt.Errorf("%w: development user: %v", ErrInvalidConfig, err)
	}

	tok, err := token.MintDevelopment([]byte(cfg.SigningKey), token.DevelopmentClaims{
		Email:            user.Email,
		Name:             user.Name,
		Roles:            user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: development token: %v", ErrInvalidConfig, err)
	}

	return &Development{
		core:  c,
		user:  user,
		token: tok,
		cache: cache,
	}, nil
}

// Login sets the development user. The in-memory session is updated even
// when the write-through fails; the failure is returned as
// [ErrStorageUnavailable].
func (d *Development) Login(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	err := d.store.SetUser(ctx, &d.user)
	d.metrics.Inc(MetricLogin)
	d.logger.Info("development login", slog.String("user_id", d.user.ID))
	d.emit(ctx, AuditEventLogin, err == nil, err, nil)
	return d.writeFailed(ctx, "login", err)
}

// Logout clears the session and the cached token.
func (d *Development) Logout(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	before := d.store.Snapshot()
	err := d.store.Logout(ctx)
	if cerr := d.cache.Clear(ctx); cerr != nil && !errors.Is(cerr, storage.ErrNotFound) {
		d.logger.Warn("development token cache clear failed", slog.Any("error", cerr))
	}

	d.metrics.Inc(MetricLogout)
	d.logger.Info("development logout")
	d.emitFor(ctx, before, AuditEventLogout, err == nil, err, nil)
	return d.writeFailed(ctx, "logout", err)
}

// AccessToken returns the fixed development token. The cached copy is
// refreshed when it is missing, stale or malformed.
func (d *Development) AccessToken(ctx context.Context) (string, error) {
	if err := d.checkOpen(); err != nil {
		return "", err
	}

	start := time.Now()
	defer func() {
		d.metrics.Observe(MetricTokenAcquireLatency, time.Since(start))
	}()

	cached, ok, err := d.cache.Load(ctx)
	switch {
	case errors.Is(err, token.ErrInvalidFormat):
		d.metrics.Inc(MetricInvalidTokenFormat)
		d.emit(ctx, AuditEventInvalidTokenFormat, false, err, map[string]string{audit.MetaSource: "cache"})
	case err != nil:
		d.logger.Warn("development token cache unavailable", slog.Any("error", err))
		return d.token.String(), nil
	case ok && cached == d.token:
		return cached.String(), nil
	}

	if err := d.cache.Put(ctx, d.token.String()); err != nil {
		d.logger.Warn("development token cache write failed", slog.Any("error", err))
	}
	return d.token.String(), nil
}
