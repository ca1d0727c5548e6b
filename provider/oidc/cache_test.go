package oidc

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goSession/storage"
)

func TestPersistedAccountsSurviveRestart(t *testing.T) {
	f := newFakeIssuer(t)
	nav := &navRecorder{}
	backend := storage.NewMemoryBackend()
	ctx := context.Background()

	first := newCachedTestProvider(t, f, nav, "", backend)
	account, err := first.HandleRedirect(ctx, login(t, first, f, nav))
	if err != nil {
		t.Fatalf("HandleRedirect: %v", err)
	}

	restarted := newCachedTestProvider(t, f, nav, "", backend)
	active, err := restarted.ActiveAccount(ctx)
	if err != nil {
		t.Fatalf("ActiveAccount: %v", err)
	}
	if active == nil || *active != *account {
		t.Fatalf("expected restored account %+v, got %+v", account, active)
	}

	tok, err := restarted.AcquireTokenSilent(ctx, *active, nil)
	if err != nil || tok != "hdr.access-1.sig" {
		t.Fatalf("expected cached token after restart, got %q %v", tok, err)
	}
	if _, refreshes := f.counts(); refreshes != 0 {
		t.Fatalf("unexpired token must not refresh, got %d", refreshes)
	}
}

func TestPersistedAccountsClearedOnLogout(t *testing.T) {
	f := newFakeIssuer(t)
	nav := &navRecorder{}
	backend := storage.NewMemoryBackend()
	ctx := context.Background()

	p := newCachedTestProvider(t, f, nav, "", backend)
	if _, err := p.HandleRedirect(ctx, login(t, p, f, nav)); err != nil {
		t.Fatalf("HandleRedirect: %v", err)
	}
	if err := p.LogoutRedirect(ctx, nil); err != nil {
		t.Fatalf("LogoutRedirect: %v", err)
	}

	if _, err := backend.Get(ctx, DefaultCacheKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected provider cache removed, got %v", err)
	}
	restarted := newCachedTestProvider(t, f, nav, "", backend)
	if active, err := restarted.ActiveAccount(ctx); err != nil || active != nil {
		t.Fatalf("expected no account after logout, got %+v %v", active, err)
	}
}

func TestInvalidPersistedAccountsPurged(t *testing.T) {
	f := newFakeIssuer(t)
	backend := storage.NewMemoryBackend()
	ctx := context.Background()

	for name, data := range map[string]string{
		"not json":        `{`,
		"account invalid": `{"active":"a","accounts":[{"account":{"username":"x"},"token":{"access_token":"a.b.c"}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_ = backend.Set(ctx, DefaultCacheKey, []byte(data))

			p := newCachedTestProvider(t, f, &navRecorder{}, "", backend)
			if active, err := p.ActiveAccount(ctx); err != nil || active != nil {
				t.Fatalf("expected no account from an invalid cache, got %+v %v", active, err)
			}
			if _, err := backend.Get(ctx, DefaultCacheKey); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("expected invalid cache purged, got %v", err)
			}
		})
	}
}
