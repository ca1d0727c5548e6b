package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/profile"
	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/provider/oidc"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
)

var errBuilderUsed = errors.New("builder already used")

// Builder assembles an [Authenticator]. It is single-use.
type Builder struct {
	config Config

	backend    storage.Backend
	redis      redis.UniversalClient
	provider   provider.IdentityProvider
	fetcher    ProfileFetcher
	navigate   provider.Navigator
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBackend sets the storage backend, overriding Config.Storage.Backend.
// The caller keeps ownership; Close does not close it.
func (b *Builder) WithBackend(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the client used when Config.Storage.Backend is
// "redis". The caller keeps ownership.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithProvider injects the identity provider used in production mode
// instead of the built-in OpenID Connect client.
func (b *Builder) WithProvider(p provider.IdentityProvider) *Builder {
	b.provider = p
	return b
}

// WithProfileFetcher injects the backend profile source used in production
// mode.
func (b *Builder) WithProfileFetcher(f ProfileFetcher) *Builder {
	b.fetcher = f
	return b
}

// WithNavigator sets how the built-in provider sends the user to the
// identity provider. Required in production mode unless a provider is
// injected.
func (b *Builder) WithNavigator(n provider.Navigator) *Builder {
	b.navigate = n
	return b
}

// WithHTTPClient sets the base client for provider discovery, code
// exchange and profile requests.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithLogger sets the logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the sink for audit events. Events are only dispatched
// when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the token acquisition latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, binds the strategy selected by
// Config.Mode and hydrates the session from storage. In production mode it
// also resumes the provider's active account; a failure there is logged,
// not returned.
func (b *Builder) Build(ctx context.Context) (Authenticator, error) {
	if b.built {
		return nil, errBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeProduction {
		if err := cfg.validateProduction(b.provider != nil, b.fetcher != nil); err != nil {
			return nil, err
		}
		if b.provider == nil && b.navigate == nil {
			return nil, fmt.Errorf("%w: production mode requires a navigator", ErrInvalidConfig)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gosession"), slog.String("mode", cfg.Mode.String()))

	// -------- STORAGE --------
	backend, closers, err := b.openBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	c := &core{
		mode:    cfg.Mode,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		closers: closers,
	}
	c.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	guard := storage.NewGuard(backend,
		storage.WithLogger(logger.With(slog.String("component", "storage"))),
		storage.WithInvalidHook(c.invalidPersisted),
	)
	c.store = session.NewStore(guard.For(cfg.Storage.SessionKey))

	// -------- STRATEGY --------
	var auth Authenticator
	switch cfg.Mode {
	case ModeDevelopment:
		cache := storage.NewTokenCache(backend, cfg.Storage.TokenKey, logger.With(slog.String("component", "token_cache")))
		dev, err := newDevelopment(c, cfg.Development, cache)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.hydrate(ctx)
		auth = dev

	case ModeProduction:
		idp := b.provider
		if idp == nil {
			idp, err = oidc.New(ctx, oidc.Config{
				Issuer:                cfg.Provider.Issuer,
				ClientID:              cfg.Provider.ClientID,
				ClientSecret:          cfg.Provider.ClientSecret,
				RedirectURL:           cfg.Provider.RedirectURL,
				PostLogoutRedirectURL: cfg.Provider.PostLogoutRedirectURL,
				Scopes:                cfg.Provider.Scopes,
				HTTPClient:            b.httpClient,
				Logger:                logger.With(slog.String("component", "provider")),
				PendingTTL:            cfg.Provider.PendingTTL,
				Cache:                 providerCache(cfg, backend),
				CacheKey:              cfg.providerCacheKey(),
			}, b.navigate)
			if err != nil {
				_ = c.Close()
				return nil, err
			}
		}

		prod := newProduction(c, idp, b.fetcher, cfg.Provider.Scopes)
		if prod.fetcher == nil {
			prod.fetcher = b.profileClient(ctx, cfg.Profile, prod)
		}
		c.hydrate(ctx)
		if err := prod.Resume(ctx); err != nil {
			logger.Warn("resume at startup failed", slog.Any("error", err))
		}
		auth = prod

	default:
		_ = c.Close()
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, uint8(cfg.Mode))
	}

	b.built = true
	return auth, nil
}

// providerCache is nil unless accounts are persisted. The key must not collide
// with the session or token keys.
func providerCache(cfg Config, backend storage.Backend) storage.Backend {
	if !cfg.Provider.PersistAccounts {
		return nil
	}
	return backend
}

func (b *Builder) openBackend(ctx context.Context, cfg StorageConfig) (storage.Backend, []func() error, error) {
	if b.backend != nil {
		return b.backend, nil, nil
	}

	switch cfg.Backend {
	case StorageMemory:
		return storage.NewMemoryBackend(), nil, nil

	case StorageFile:
		fb, err := storage.NewFileBackend(cfg.FileDir)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
		}
		return fb, nil, nil

	case StorageRedis:
		var closers []func() error
		client := b.redis
		if client == nil {
			if cfg.RedisAddr == "" {
				return nil, nil, fmt.Errorf("%w: redis backend requires RedisAddr or WithRedis", ErrInvalidConfig)
			}
			owned := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			closers = append(closers, owned.Close)
			client = owned
		}
		if err := client.Ping(ctx).Err(); err != nil {
			for _, closeFn := range closers {
				_ = closeFn()
			}
			return nil, nil, fmt.Errorf("%w: redis ping: %v", storage.ErrUnavailable, err)
		}
		return storage.NewRedisBackend(client, cfg.RedisPrefix), closers, nil

	case StorageBadger:
		bb, err := storage.OpenBadgerBackend(cfg.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return bb, []func() error{bb.Close}, nil

	default:
		return nil, nil, errors.New("unsupported storage backend")
	}
}

// profileClient authenticates profile requests with the production
// authenticator's own tokens.
func (b *Builder) profileClient(ctx context.Context, cfg ProfileConfig, auth Authenticator) *profile.Client {
	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	hc := NewHTTPClient(context.WithoutCancel(ctx), auth)
	hc.Timeout = cfg.Timeout
	return profile.New(cfg.BaseURL, profile.WithPath(cfg.Path), profile.WithHTTPClient(hc))
}
