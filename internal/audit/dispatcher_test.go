package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatalf("expected nil dispatcher when disabled")
	}

	d.Emit(context.Background(), Event{EventType: TypeLogin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("nil dispatcher must report zero drops")
	}
}

func TestDispatcherBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{EventType: TypeLogin})
	dispatcher.Emit(context.Background(), Event{EventType: TypeLogout})

	start := time.Now()
	dispatcher.Emit(context.Background(), Event{EventType: TypeLoginRedirect})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestDispatcherBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), Event{EventType: TypeLogin})
	dispatcher.Emit(context.Background(), Event{EventType: TypeLogout})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), Event{EventType: TypeLoginRedirect})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestDispatcherCloseDrainsBuffer(t *testing.T) {
	sink := &countingSink{}
	dispatcher := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 16,
		DropIfFull: false,
	}, sink)

	for i := 0; i < 10; i++ {
		dispatcher.Emit(context.Background(), Event{EventType: TypeIdentitySync})
	}
	dispatcher.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected all buffered events delivered, got %d", got)
	}
}

func TestDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	dispatcher.Emit(context.Background(), Event{EventType: TypeLogin})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), Event{EventType: TypeLogout})
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	a := NewEvent("login", "development", true)
	b := NewEvent("login", "development", true)

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique event IDs, got %q and %q", a.ID, b.ID)
	}
	if a.Timestamp.IsZero() || a.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", a.Timestamp)
	}
}

func TestDispatcherRejectsUnknownEventTypes(t *testing.T) {
	sink := &recordingSink{}
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	dispatcher.Emit(context.Background(), Event{EventType: "password_changed"})
	dispatcher.Emit(context.Background(), Event{EventType: TypeLogout})
	dispatcher.Close()

	if dispatcher.Rejected() != 1 {
		t.Fatalf("expected one rejected event, got %d", dispatcher.Rejected())
	}
	if len(sink.events) != 1 || sink.events[0].EventType != TypeLogout {
		t.Fatalf("expected only the logout event delivered, got %+v", sink.events)
	}
}

func TestDispatcherRedactsTokensAndFiltersMetadata(t *testing.T) {
	const jwt = "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1In0.c2ln"

	sink := &recordingSink{}
	dispatcher := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)

	dispatcher.Emit(context.Background(), Event{
		EventType: TypeInvalidTokenFormat,
		Error:     "provider returned " + jwt + " with trailing data",
		Metadata: map[string]string{
			MetaSource:      "provider " + jwt,
			"access_token":  jwt,
			"refresh_token": "r-1",
		},
	})
	dispatcher.Emit(context.Background(), Event{
		EventType: TypeLogout,
		Metadata:  map[string]string{"authorization": "Bearer " + jwt},
	})
	dispatcher.Close()

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	first := sink.events[0]
	if strings.Contains(first.Error, jwt) || !strings.Contains(first.Error, Redacted) {
		t.Fatalf("expected token redacted from error, got %q", first.Error)
	}
	if len(first.Metadata) != 1 || first.Metadata[MetaSource] != "provider "+Redacted {
		t.Fatalf("expected only the redacted source key, got %v", first.Metadata)
	}
	if sink.events[1].Metadata != nil {
		t.Fatalf("expected disallowed metadata dropped entirely, got %v", sink.events[1].Metadata)
	}
}

func TestSanitizeLeavesPlainTextAlone(t *testing.T) {
	in := Event{
		EventType: TypeStorageWriteFailed,
		Error:     "session write-through failed: disk full",
		Metadata:  map[string]string{MetaOp: "logout"},
	}
	out, ok := Sanitize(in)
	if !ok || out.Error != in.Error || out.Metadata[MetaOp] != "logout" {
		t.Fatalf("unexpected sanitize result %+v (%t)", out, ok)
	}
}
