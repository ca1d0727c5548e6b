package goSession

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
	"github.com/MrEthical07/goSession/token"
)

// Scenario: development strategy, logged out, then login.
func TestDevelopmentLoginSetsMockUserAndToken(t *testing.T) {
	ctx := context.Background()
	dev := buildDevelopment(t, nil, DefaultConfig())

	if dev.IsAuthenticated() || dev.User() != nil {
		t.Fatalf("expected logged-out start, got %+v", dev.Session())
	}

	if err := dev.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	want := DevelopmentUser()
	if got := dev.User(); got == nil || !reflect.DeepEqual(*got, want) {
		t.Fatalf("expected mock user %+v, got %+v", want, got)
	}
	if !dev.IsAuthenticated() {
		t.Fatalf("expected authenticated after login")
	}

	tok, err := dev.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if !token.Valid(tok) {
		t.Fatalf("development token %q is not three-segment shaped", tok)
	}

	again, err := dev.AccessToken(ctx)
	if err != nil || again != tok {
		t.Fatalf("expected the same fixed token, got %q (%v)", again, err)
	}
}

func TestDevelopmentTokenIsFixedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	a := buildDevelopment(t, nil, DefaultConfig())
	b := buildDevelopment(t, nil, DefaultConfig())

	ta, _ := a.AccessToken(ctx)
	tb, _ := b.AccessToken(ctx)
	if ta == "" || ta != tb {
		t.Fatalf("expected identical development tokens, got %q and %q", ta, tb)
	}
}

func TestDevelopmentNeverLoads(t *testing.T) {
	dev := buildDevelopment(t, nil, DefaultConfig())

	sawLoading := false
	cancel := dev.Subscribe(func(st session.State) {
		if st.IsLoading {
			sawLoading = true
		}
	})
	defer cancel()

	_ = dev.Login(context.Background())
	_ = dev.Logout(context.Background())

	if sawLoading || dev.IsLoading() {
		t.Fatalf("development strategy must never enter the loading state")
	}
}

func TestDevelopmentTokenCachedUnderTokenKey(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	dev := buildDevelopment(t, backend, DefaultConfig())

	tok, err := dev.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}

	raw, err := backend.Get(ctx, storage.DefaultTokenKey)
	if err != nil {
		t.Fatalf("expected cached token: %v", err)
	}
	if string(raw) != tok {
		t.Fatalf("expected cache to hold %q, got %q", tok, raw)
	}
}

func TestDevelopmentMalformedCachedTokenReplaced(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Set(ctx, storage.DefaultTokenKey, []byte("not-a-token"))

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	dev := buildDevelopment(t, backend, cfg)

	tok, err := dev.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if !token.Valid(tok) {
		t.Fatalf("expected valid token, got %q", tok)
	}

	raw, _ := backend.Get(ctx, storage.DefaultTokenKey)
	if string(raw) != tok {
		t.Fatalf("expected malformed cache to be replaced, got %q", raw)
	}
	if got := dev.MetricsSnapshot().Counters[MetricInvalidTokenFormat]; got != 1 {
		t.Fatalf("expected one invalid-format metric, got %d", got)
	}
}

func TestDevelopmentLogoutClearsSessionAndToken(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	dev := buildDevelopment(t, backend, DefaultConfig())

	_ = dev.Login(ctx)
	_, _ = dev.AccessToken(ctx)

	for i := 0; i < 2; i++ {
		if err := dev.Logout(ctx); err != nil {
			t.Fatalf("Logout %d: %v", i, err)
		}
		st := dev.Session()
		if st.User != nil || st.IsAuthenticated || st.Account != nil {
			t.Fatalf("logout %d: expected empty session, got %+v", i, st)
		}
	}

	if _, err := backend.Get(ctx, storage.DefaultTokenKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected cached token removed, got %v", err)
	}
	raw, err := backend.Get(ctx, storage.DefaultSessionKey)
	if err != nil {
		t.Fatalf("expected logged-out envelope to remain: %v", err)
	}
	if string(raw) != `{"state":{"user":null,"isAuthenticated":false,"account":null}}` {
		t.Fatalf("unexpected logged-out envelope %s", raw)
	}
}

func TestDevelopmentSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	first := buildDevelopment(t, backend, DefaultConfig())
	if err := first.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	_ = first.Close()

	second := buildDevelopment(t, backend, DefaultConfig())
	if !second.IsAuthenticated() {
		t.Fatalf("expected session restored from storage")
	}
	if second.User().Email != DevelopmentUser().Email {
		t.Fatalf("unexpected restored user %+v", second.User())
	}
}

// Scenario: a valid persisted envelope is adopted at startup.
func TestHydrateAdoptsPersistedEnvelope(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Set(ctx, storage.DefaultSessionKey, []byte(
		`{"state":{"user":{"id":"1","email":"a@b.com","name":"A","providerObjectId":"x","roles":["user"]},"isAuthenticated":true,"account":null}}`,
	))

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	dev := buildDevelopment(t, backend, cfg)

	want := session.User{ID: "1", Email: "a@b.com", Name: "A", ProviderObjectID: "x", Roles: []string{"user"}}
	if got := dev.User(); got == nil || !reflect.DeepEqual(*got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if !dev.IsAuthenticated() {
		t.Fatalf("expected authenticated")
	}
	if got := dev.MetricsSnapshot().Counters[MetricHydrateRestored]; got != 1 {
		t.Fatalf("expected hydrate restored metric, got %d", got)
	}
}

// Scenario: a malformed persisted envelope is purged at startup.
func TestHydratePurgesMalformedEnvelope(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Set(ctx, storage.DefaultSessionKey, []byte(`{"state":{"user":"oops"}}`))

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	dev := buildDevelopment(t, backend, cfg)

	st := dev.Session()
	if st.User != nil || st.IsAuthenticated || st.Account != nil {
		t.Fatalf("expected empty session, got %+v", st)
	}
	if _, err := backend.Get(ctx, storage.DefaultSessionKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected key removed, got %v", err)
	}
	snap := dev.MetricsSnapshot()
	if snap.Counters[MetricPersistedStateInvalid] != 1 || snap.Counters[MetricHydrateEmpty] != 1 {
		t.Fatalf("unexpected metrics %v", snap.Counters)
	}
}

func TestDevelopmentLoginWriteFailureStillAuthenticates(t *testing.T) {
	backend := &writeFailBackend{MemoryBackend: storage.NewMemoryBackend()}
	backend.setFail(true)

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = true
	dev := buildDevelopment(t, backend, cfg)

	err := dev.Login(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if !dev.IsAuthenticated() {
		t.Fatalf("in-memory session must still move forward")
	}
	if got := dev.MetricsSnapshot().Counters[MetricStorageWriteFailure]; got != 1 {
		t.Fatalf("expected storage failure metric, got %d", got)
	}
}

func TestDevelopmentCustomSigningKeyChangesToken(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Development.SigningKey = "another-key"

	a := buildDevelopment(t, nil, DefaultConfig())
	b := buildDevelopment(t, nil, cfg)

	ta, _ := a.AccessToken(ctx)
	tb, _ := b.AccessToken(ctx)
	if ta == tb {
		t.Fatalf("expected signing key to change the token")
	}
}
