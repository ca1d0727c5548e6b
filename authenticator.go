package goSession

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// MetricsSource is what the exporters in metrics/export read.
type MetricsSource interface {
	MetricsSnapshot() MetricsSnapshot
	AuditDropped() uint64
}

// Authenticator is the consumer-facing surface shared by both strategies.
// Build returns a [*Development] or a [*Production] behind it.
type Authenticator interface {
	// Login signs the user in. In production it starts an interactive
	// redirect and returns once the navigator has been invoked.
	Login(ctx context.Context) error
	// Logout clears the session. It is idempotent.
	Logout(ctx context.Context) error
	// AccessToken returns a bearer token, or "" with a nil error when
	// authentication is being re-established and there is nothing to use
	// yet. Only a malformed token is reported as an error
	// ([ErrInvalidTokenFormat]).
	AccessToken(ctx context.Context) (string, error)

	User() *session.User
	IsAuthenticated() bool
	IsLoading() bool
	Session() session.State
	// Subscribe registers fn for every state change, delivered in order
	// after the change is committed. fn may call AccessToken and the
	// accessors. It must not call Resume, CompleteRedirect, SyncIdentity
	// or Logout, which may be the call that is delivering to it.
	Subscribe(fn func(session.State)) (cancel func())

	Mode() Mode
	MetricsSource
	Close() error
}

var (
	_ Authenticator = (*Development)(nil)
	_ Authenticator = (*Production)(nil)
)

// core is the state and instrumentation shared by both strategies.
type core struct {
	mode    Mode
	store   *session.Store
	logger  *slog.Logger
	metrics *Metrics
	audit   *audit.Dispatcher

	closeOnce sync.Once
	closed    atomic.Bool
	closers   []func() error
	closeErr  error
}

// User returns a copy of the current user, nil when signed out.
func (c *core) User() *session.User { return c.store.User() }

// IsAuthenticated reports whether a user is set.
func (c *core) IsAuthenticated() bool { return c.store.IsAuthenticated() }

// IsLoading reports whether an interactive login is in progress.
func (c *core) IsLoading() bool { return c.store.IsLoading() }

// Session returns a snapshot of the whole session.
func (c *core) Session() session.State { return c.store.Snapshot() }

// Subscribe forwards to the session store.
func (c *core) Subscribe(fn func(session.State)) (cancel func()) {
	return c.store.Subscribe(fn)
}

// Mode returns the strategy bound at Build.
func (c *core) Mode() Mode { return c.mode }

// MetricsSnapshot returns a copy of the counters.
func (c *core) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// AuditDropped returns the number of audit events dropped on a full buffer.
func (c *core) AuditDropped() uint64 { return c.audit.Dropped() }

// AuditRejected returns the number of audit events discarded for an unknown
// event type.
func (c *core) AuditRejected() uint64 { return c.audit.Rejected() }

// Close flushes audit events and releases storage. Further mutating calls
// return [ErrClosed].
func (c *core) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.audit.Close()
		var errs []error
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *core) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// hydrate restores the persisted session once at startup.
func (c *core) hydrate(ctx context.Context) {
	restored := c.store.Hydrate(ctx)
	if restored {
		c.metrics.Inc(MetricHydrateRestored)
	} else {
		c.metrics.Inc(MetricHydrateEmpty)
	}

	st := c.store.Snapshot()
	c.logger.Debug("session hydrated",
		slog.Bool("restored", restored),
		slog.Bool("authenticated", st.IsAuthenticated),
	)
	c.emit(ctx, AuditEventHydrated, true, nil, map[string]string{
		audit.MetaRestored: strconv.FormatBool(restored),
	})
}

// invalidPersisted is the storage guard's purge hook.
func (c *core) invalidPersisted(key string, err error) {
	c.metrics.Inc(MetricPersistedStateInvalid)
	c.emit(context.Background(), AuditEventPersistedStateInvalid, false, err, map[string]string{
		audit.MetaKey: key,
	})
}

// writeFailed records a mutation whose write-through failed. The in-memory
// state already moved; err is handed back unchanged.
func (c *core) writeFailed(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	c.metrics.Inc(MetricStorageWriteFailure)
	c.logger.Error("session write-through failed", slog.String("op", op), slog.Any("error", err))
	c.emit(ctx, AuditEventStorageWriteFailed, false, err, map[string]string{audit.MetaOp: op})
	return err
}

// emit fills user and account from the current session. Events never carry
// token material.
func (c *core) emit(ctx context.Context, eventType string, success bool, err error, metadata map[string]string) {
	if c.audit == nil {
		return
	}
	c.emitFor(ctx, c.store.Snapshot(), eventType, success, err, metadata)
}

// emitFor attributes the event to st instead of the current session. Logout
// uses it to record who was signed out.
func (c *core) emitFor(ctx context.Context, st session.State, eventType string, success bool, err error, metadata map[string]string) {
	if c.audit == nil {
		return
	}
	ev := audit.NewEvent(eventType, c.mode.String(), success)
	if st.User != nil {
		ev.UserID = st.User.ID
	}
	if st.Account != nil {
		ev.AccountID = st.Account.HomeAccountID
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if len(metadata) > 0 {
		ev.Metadata = metadata
	}
	c.audit.Emit(ctx, ev)
}
