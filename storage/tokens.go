package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/token"
)

// DefaultTokenKey is the storage key for the development token.
const DefaultTokenKey = "auth-token"

// TokenCache persists a single bearer token. Every value is checked for
// three-segment shape on the way in and on the way out.
type TokenCache struct {
	backend Backend
	key     string
	logger  *slog.Logger
}

// NewTokenCache returns a cache that stores its token under key.
func NewTokenCache(backend Backend, key string, logger *slog.Logger) *TokenCache {
	if key == "" {
		key = DefaultTokenKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCache{backend: backend, key: key, logger: logger}
}

// Put stores candidate if it is well formed. A malformed candidate also
// clears any previously cached token.
func (c *TokenCache) Put(ctx context.Context, candidate string) error {
	tok, err := token.Validate(candidate)
	if err != nil {
		if delErr := c.backend.Delete(ctx, c.key); delErr != nil {
			c.logger.ErrorContext(ctx, "token cache clear failed", "key", c.key, "error", delErr)
		}
		return err
	}
	return c.backend.Set(ctx, c.key, []byte(tok))
}

// Load returns the cached token. It reports false when nothing usable is
// cached. A stored value that is not well formed is purged and reported as
// [token.ErrInvalidFormat].
func (c *TokenCache) Load(ctx context.Context) (token.Token, bool, error) {
	data, err := c.backend.Get(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	tok, err := token.Validate(string(data))
	if err != nil {
		c.logger.WarnContext(ctx, "cached token purged", "key", c.key, "error", err)
		if delErr := c.backend.Delete(ctx, c.key); delErr != nil {
			c.logger.ErrorContext(ctx, "token cache clear failed", "key", c.key, "error", delErr)
		}
		return "", false, fmt.Errorf("cached token: %w", err)
	}
	return tok, true, nil
}

// Clear removes the cached token.
func (c *TokenCache) Clear(ctx context.Context) error {
	return c.backend.Delete(ctx, c.key)
}
