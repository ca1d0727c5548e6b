package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrWriteThrough is returned when a mutation was applied in memory but its
// persisted copy could not be written.
var ErrWriteThrough = errors.New("session write-through failed")

// Persister is the durable side of the store. Load reports false when there is
// no usable prior session; it never distinguishes "absent" from "corrupt".
type Persister interface {
	Load(ctx context.Context) (*Envelope, bool)
	Save(ctx context.Context, env Envelope) error
}

// Store is the session state container. Mutations go through the named
// actions only and are serialized, so the order of in-memory updates is the
// order of their write-through. Accessors never block on I/O.
//
// Subscribers are notified after the mutating lock is released, in commit
// order, so a subscriber may itself mutate the store.
type Store struct {
	persist Persister

	writeMu  sync.Mutex
	hydrated bool

	mu      sync.RWMutex
	state   State
	subs    map[uint64]func(State)
	nextSub uint64

	// notifyMu guards pending and draining. Only one goroutine drains at a
	// time; others enqueue and return.
	notifyMu sync.Mutex
	pending  []State
	draining bool
}

// NewStore returns an empty store backed by p. A nil p keeps the session in
// memory only.
func NewStore(p Persister) *Store {
	return &Store{
		persist: p,
		subs:    make(map[uint64]func(State)),
	}
}

// Hydrate adopts the persisted session, if any, as the initial state. Only
// the first call reads storage; it reports whether a prior session was
// restored.
func (s *Store) Hydrate(ctx context.Context) bool {
	if !s.hydrate(ctx) {
		return false
	}
	s.deliver()
	return true
}

func (s *Store) hydrate(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.hydrated {
		return false
	}
	s.hydrated = true

	if s.persist == nil {
		return false
	}
	env, ok := s.persist.Load(ctx)
	if !ok || env == nil {
		return false
	}

	next := State{
		User:    env.State.User.Clone(),
		Account: env.State.Account.Clone(),
	}
	next.IsAuthenticated = next.User != nil

	s.commit(next)
	return true
}

// SetUser records u as the authenticated principal; a nil u logs the user
// out of the backend identity without touching the provider account.
func (s *Store) SetUser(ctx context.Context, u *User) error {
	return s.mutate(ctx, true, func(st *State) {
		st.User = u.Clone()
		st.IsAuthenticated = st.User != nil
	})
}

// SetAccount records the current provider account reference.
func (s *Store) SetAccount(ctx context.Context, a *Account) error {
	return s.mutate(ctx, true, func(st *State) {
		st.Account = a.Clone()
	})
}

// SetLoading toggles the in-flight flag. It is not persisted.
func (s *Store) SetLoading(loading bool) {
	_ = s.mutate(context.Background(), false, func(st *State) {
		st.IsLoading = loading
	})
}

// Logout clears user and account. Calling it while logged out rewrites the
// same logged-out envelope, which is observationally a no-op.
func (s *Store) Logout(ctx context.Context) error {
	return s.mutate(ctx, true, func(st *State) {
		st.User = nil
		st.IsAuthenticated = false
		st.Account = nil
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}

// IsAuthenticated reports whether a user is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// Account returns a copy of the current provider account, or nil.
func (s *Store) Account() *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Account.Clone()
}

// IsLoading reports whether an authentication step is in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLoading
}

// Subscribe registers fn to receive a copy of the state after every
// mutation. Notifications arrive in commit order. fn runs on the goroutine
// that is delivering, outside the store's write lock, so it may call any
// store method; a mutation made from fn is delivered after fn returns.
// The returned func unregisters fn.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) mutate(ctx context.Context, persist bool, apply func(*State)) error {
	err := s.apply(ctx, persist, apply)
	s.deliver()
	return err
}

func (s *Store) apply(ctx context.Context, persist bool, apply func(*State)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot()
	apply(&next)

	var err error
	if persist && s.persist != nil {
		if saveErr := s.persist.Save(ctx, envelopeOf(next)); saveErr != nil {
			err = fmt.Errorf("%w: %v", ErrWriteThrough, saveErr)
		}
	}

	s.commit(next)
	return err
}

// commit must be called with writeMu held so the queue order is the commit
// order.
func (s *Store) commit(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.pending = append(s.pending, next.clone())
	s.notifyMu.Unlock()
}

// deliver drains queued states to subscribers. It returns immediately when
// another call is already draining; that call picks up what was queued.
func (s *Store) deliver() {
	s.notifyMu.Lock()
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true
	s.notifyMu.Unlock()

	// A panicking subscriber must not wedge later deliveries.
	drained := false
	defer func() {
		if !drained {
			s.notifyMu.Lock()
			s.draining = false
			s.notifyMu.Unlock()
		}
	}()

	for {
		s.notifyMu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			drained = true
			s.notifyMu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.notifyMu.Unlock()

		s.mu.RLock()
		subs := make([]func(State), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.mu.RUnlock()

		for _, fn := range subs {
			fn(next.clone())
		}
	}
}
