package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/session"
)

// ErrInvalidPersistedState is passed to the invalid hook when a stored
// envelope fails validation and has been purged.
var ErrInvalidPersistedState = errors.New("invalid persisted session state")

// DefaultSessionKey is the storage key used when none is configured.
const DefaultSessionKey = "auth-storage"

// Guard validates persisted session envelopes on read.
type Guard struct {
	backend   Backend
	logger    *slog.Logger
	onInvalid func(key string, err error)
}

// GuardOption customises a [Guard].
type GuardOption func(*Guard)

// WithLogger sets the logger used for purge warnings and backend errors.
func WithLogger(l *slog.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithInvalidHook registers fn to run after a corrupt value is purged.
func WithInvalidHook(fn func(key string, err error)) GuardOption {
	return func(g *Guard) {
		g.onInvalid = fn
	}
}

// NewGuard returns a guard over backend.
func NewGuard(backend Backend, opts ...GuardOption) *Guard {
	g := &Guard{
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the wrapped backend.
func (g *Guard) Backend() Backend {
	return g.backend
}

// Read returns the envelope stored under key. It reports false when the key
// is absent, the backend fails, or the stored value is invalid. An invalid
// value is deleted before Read returns.
func (g *Guard) Read(ctx context.Context, key string) (*session.Envelope, bool) {
	data, err := g.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		g.logger.ErrorContext(ctx, "session storage read failed", "key", key, "error", err)
		return nil, false
	}

	env, err := session.DecodeEnvelope(data)
	if err != nil {
		g.purge(ctx, key, err)
		return nil, false
	}
	return &env, true
}

// Write serializes env and stores it under key. It does not validate.
func (g *Guard) Write(ctx context.Context, key string, env session.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode session envelope: %w", err)
	}
	return g.backend.Set(ctx, key, data)
}

// Remove deletes key.
func (g *Guard) Remove(ctx context.Context, key string) error {
	return g.backend.Delete(ctx, key)
}

// For binds the guard to key as a [session.Persister].
func (g *Guard) For(key string) session.Persister {
	if key == "" {
		key = DefaultSessionKey
	}
	return keyedPersister{guard: g, key: key}
}

func (g *Guard) purge(ctx context.Context, key string, cause error) {
	err := fmt.Errorf("%w: %v", ErrInvalidPersistedState, cause)
	g.logger.WarnContext(ctx, "invalid persisted session state purged", "key", key, "error", cause)

	if delErr := g.backend.Delete(ctx, key); delErr != nil {
		g.logger.ErrorContext(ctx, "purge of invalid session state failed", "key", key, "error", delErr)
	}
	if g.onInvalid != nil {
		g.onInvalid(key, err)
	}
}

type keyedPersister struct {
	guard *Guard
	key   string
}

func (p keyedPersister) Load(ctx context.Context) (*session.Envelope, bool) {
	return p.guard.Read(ctx, p.key)
}

func (p keyedPersister) Save(ctx context.Context, env session.Envelope) error {
	return p.guard.Write(ctx, p.key, env)
}
