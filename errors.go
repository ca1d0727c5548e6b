package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/token"
)

var (
	// ErrInvalidPersistedState marks a stored session that failed validation
	// and was purged. It is reported to audit and metrics, never returned
	// from Build or Hydrate.
	ErrInvalidPersistedState = storage.ErrInvalidPersistedState
	// ErrInvalidTokenFormat is returned when a token is not three-segment
	// shaped. Callers must handle it.
	ErrInvalidTokenFormat = token.ErrInvalidFormat
	// ErrSilentAcquisition records a failed silent attempt. AccessToken
	// does not return it; the interactive fallback runs instead.
	ErrSilentAcquisition = errors.New("silent token acquisition failed")
	// ErrInteractiveAcquisition records a failed interactive fallback.
	// AccessToken does not return it.
	ErrInteractiveAcquisition = errors.New("interactive token acquisition failed")
	// ErrIdentitySync is returned when the backend profile could not be
	// fetched or stored.
	ErrIdentitySync = errors.New("identity sync failed")
	// ErrNoAccount is returned by operations that need a provider account.
	ErrNoAccount = errors.New("no provider account")
	// ErrStorageUnavailable is returned when a session mutation was applied
	// in memory but could not be persisted.
	ErrStorageUnavailable = session.ErrWriteThrough
	// ErrModeUnsupported is returned for production-only operations on the
	// development strategy.
	ErrModeUnsupported = errors.New("operation not supported in this mode")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrTokenUnavailable is returned by token sources when AccessToken
	// yields no token.
	ErrTokenUnavailable = errors.New("access token unavailable")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("authenticator closed")
)
