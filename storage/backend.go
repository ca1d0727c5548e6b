package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Backend when key has no value.
	ErrNotFound = errors.New("storage: key not found")
	// ErrUnavailable wraps transport or I/O failures from a Backend.
	ErrUnavailable = errors.New("storage: backend unavailable")
)

// Backend is a durable key/value store scoped to one user agent.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
