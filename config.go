package goSession

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/goSession/provider/oidc"
	"github.com/MrEthical07/goSession/storage"
)

// EnvPrefix prefixes every variable read by [LoadConfigFromEnv].
const EnvPrefix = "GOSESSION_"

// StorageBackend names a persisted-state backend.
type StorageBackend string

const (
	StorageMemory StorageBackend = "memory"
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
	StorageBadger StorageBackend = "badger"
)

// Config is the bootstrap configuration. Mode is read once by Build; the
// selected strategy is fixed afterwards.
type Config struct {
	Mode        Mode              `env:"MODE"`
	Storage     StorageConfig     `envPrefix:"STORAGE_"`
	Provider    ProviderConfig    `envPrefix:"PROVIDER_"`
	Profile     ProfileConfig     `envPrefix:"PROFILE_"`
	Development DevelopmentConfig `envPrefix:"DEV_"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_"`
	Audit       AuditConfig       `envPrefix:"AUDIT_"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects where the session envelope and the development
// token are persisted. It is ignored when the builder is given a backend.
type StorageConfig struct {
	Backend     StorageBackend `env:"BACKEND" validate:"oneof=memory file redis badger"`
	SessionKey  string         `env:"SESSION_KEY" validate:"required,max=128"`
	TokenKey    string         `env:"TOKEN_KEY" validate:"required,max=128,nefield=SessionKey"`
	FileDir     string         `env:"FILE_DIR"`
	RedisAddr   string         `env:"REDIS_ADDR"`
	RedisPrefix string         `env:"REDIS_PREFIX"`
	// BadgerDir empty means an in-memory Badger instance.
	BadgerDir string `env:"BADGER_DIR"`
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig configures the built-in OpenID Connect provider used in
// production mode when no provider is injected.
type ProviderConfig struct {
	Issuer                string        `env:"ISSUER" validate:"omitempty,url"`
	ClientID              string        `env:"CLIENT_ID"`
	ClientSecret          string        `env:"CLIENT_SECRET"`
	RedirectURL           string        `env:"REDIRECT_URL" validate:"omitempty,url"`
	PostLogoutRedirectURL string        `env:"POST_LOGOUT_REDIRECT_URL" validate:"omitempty,url"`
	Scopes                []string      `env:"SCOPES" envSeparator:","`
	PendingTTL            time.Duration `env:"PENDING_TTL" validate:"gte=0"`
	// PersistAccounts stores signed-in accounts and their refresh tokens in
	// the storage backend under CacheKey so Resume works after a restart.
	PersistAccounts bool   `env:"PERSIST_ACCOUNTS"`
	CacheKey        string `env:"CACHE_KEY" validate:"max=128"`
}

// ProfileConfig locates the backend "fetch current profile" endpoint.
type ProfileConfig struct {
	BaseURL string        `env:"BASE_URL" validate:"omitempty,url"`
	Path    string        `env:"PATH"`
	Timeout time.Duration `env:"TIMEOUT" validate:"gte=0"`
}

// DevelopmentConfig configures the development strategy.
type DevelopmentConfig struct {
	// SigningKey signs the fixed development token. It is not a secret; the
	// token is only meaningful to a backend running in development mode.
	SigningKey string `env:"SIGNING_KEY" validate:"required"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE" validate:"gte=0"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultDevelopmentSigningKey signs the development token unless
// overridden.
const DefaultDevelopmentSigningKey = "gosession-development-signing-key"

// DefaultConfig returns a development-mode configuration backed by memory.
func DefaultConfig() Config {
	return Config{
		Mode: ModeDevelopment,
		Storage: StorageConfig{
			Backend:     StorageMemory,
			SessionKey:  storage.DefaultSessionKey,
			TokenKey:    storage.DefaultTokenKey,
			RedisPrefix: storage.DefaultRedisPrefix,
		},
		Provider: ProviderConfig{
			PendingTTL: 10 * time.Minute,
		},
		Profile: ProfileConfig{
			Path:    "/auth/me",
			Timeout: 10 * time.Second,
		},
		Development: DevelopmentConfig{
			SigningKey: DefaultDevelopmentSigningKey,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// LoadConfigFromEnv starts from [DefaultConfig] and overrides every field
// whose GOSESSION_* variable is set, e.g. GOSESSION_MODE=production or
// GOSESSION_STORAGE_BACKEND=redis. The result is validated.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("%w: parse env: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Provider.Scopes != nil {
		out.Provider.Scopes = append([]string(nil), cfg.Provider.Scopes...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

var (
	configValidate = validator.New(validator.WithRequiredStructEnabled())
	storageKeyRe   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// Validate checks field constraints and cross-field rules. It does not
// check production provider settings, which depend on what the builder was
// given; Build does that.
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, uint8(c.Mode))
	}
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Storage
	for _, key := range []string{c.Storage.SessionKey, c.Storage.TokenKey} {
		if !storageKeyRe.MatchString(key) || key == "." || key == ".." {
			return fmt.Errorf("%w: storage key %q must match [A-Za-z0-9._-]+", ErrInvalidConfig, key)
		}
	}

	// Provider
	if c.Provider.PersistAccounts {
		key := c.providerCacheKey()
		if !storageKeyRe.MatchString(key) || key == "." || key == ".." {
			return fmt.Errorf("%w: provider cache key %q must match [A-Za-z0-9._-]+", ErrInvalidConfig, key)
		}
		if key == c.Storage.SessionKey || key == c.Storage.TokenKey {
			return fmt.Errorf("%w: provider cache key %q collides with a storage key", ErrInvalidConfig, key)
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: audit BufferSize must be > 0 when enabled", ErrInvalidConfig)
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return fmt.Errorf("%w: latency histograms require metrics to be enabled", ErrInvalidConfig)
	}

	return nil
}

func (c *Config) providerCacheKey() string {
	if c.Provider.CacheKey == "" {
		return oidc.DefaultCacheKey
	}
	return c.Provider.CacheKey
}

func (c *Config) validateProduction(hasProvider, hasProfile bool) error {
	if !hasProvider {
		switch {
		case c.Provider.Issuer == "":
			return fmt.Errorf("%w: production mode requires Provider.Issuer", ErrInvalidConfig)
		case c.Provider.ClientID == "":
			return fmt.Errorf("%w: production mode requires Provider.ClientID", ErrInvalidConfig)
		case c.Provider.RedirectURL == "":
			return fmt.Errorf("%w: production mode requires Provider.RedirectURL", ErrInvalidConfig)
		}
	}
	if !hasProfile && c.Profile.BaseURL == "" {
		return fmt.Errorf("%w: production mode requires Profile.BaseURL", ErrInvalidConfig)
	}
	return nil
}
