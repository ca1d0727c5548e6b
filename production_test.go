package goSession

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/provider"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/storage"
)

// Scenario: no provider account, then one appears.
func TestProductionIdentitySyncGating(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, nil, idp, fetcher)

	if fetcher.calls() != 0 {
		t.Fatalf("synchronizer must not run without an account, got %d calls", fetcher.calls())
	}
	if p.User() != nil {
		t.Fatalf("expected no user, got %+v", p.User())
	}

	idp.setActive(&testAccount)
	if err := p.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if fetcher.calls() != 1 {
		t.Fatalf("expected exactly one sync, got %d", fetcher.calls())
	}
	if got := p.User(); got == nil || !reflect.DeepEqual(*got, *backendProfile()) {
		t.Fatalf("expected fetched profile, got %+v", got)
	}
	if !p.IsAuthenticated() {
		t.Fatalf("expected authenticated after sync")
	}
	if acct := p.Session().Account; acct == nil || *acct != testAccount {
		t.Fatalf("expected account recorded, got %+v", acct)
	}

	if err := p.Resume(ctx); err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if fetcher.calls() != 1 {
		t.Fatalf("same account must not sync again, got %d calls", fetcher.calls())
	}
}

func TestProductionSyncRunsOncePerNewAccount(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, nil, idp, fetcher)

	for i, id := range []string{testAccount.HomeAccountID, "oid-2.tenant-1", "oid-2.tenant-1"} {
		a := testAccount
		a.HomeAccountID = id
		idp.setActive(&a)
		if err := p.Resume(ctx); err != nil {
			t.Fatalf("Resume %d: %v", i, err)
		}
	}
	if fetcher.calls() != 2 {
		t.Fatalf("expected one sync per distinct account, got %d", fetcher.calls())
	}
}

func TestProductionSyncFailureLeavesUserUnchanged(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{}
	fetcher := &fakeFetcher{user: backendProfile(), err: errors.New("backend down")}
	p := buildProduction(t, nil, idp, fetcher)

	idp.setActive(&testAccount)
	err := p.Resume(ctx)
	if !errors.Is(err, ErrIdentitySync) {
		t.Fatalf("expected ErrIdentitySync, got %v", err)
	}

	st := p.Session()
	if st.Account == nil || st.User != nil || st.IsAuthenticated {
		t.Fatalf("expected account set and user absent, got %+v", st)
	}
	if got := p.MetricsSnapshot().Counters[MetricIdentitySyncFailure]; got != 1 {
		t.Fatalf("expected sync failure metric, got %d", got)
	}

	if err := p.Resume(ctx); err != nil {
		t.Fatalf("Resume for an already-seen account must not resync: %v", err)
	}
	if fetcher.calls() != 1 {
		t.Fatalf("expected no automatic retry, got %d calls", fetcher.calls())
	}

	fetcher.setErr(nil)
	if err := p.SyncIdentity(ctx); err != nil {
		t.Fatalf("SyncIdentity: %v", err)
	}
	if !p.IsAuthenticated() || p.User().ID != "user-42" {
		t.Fatalf("expected user after retry, got %+v", p.Session())
	}
}

const persistedOldProfile = `{"state":{"user":{"id":"user-42","email":"ada@example.com","name":"Old Name","providerObjectId":"oid-1","roles":["user"]},"isAuthenticated":true,"account":{"homeAccountId":"oid-1.tenant-1","environment":"login.example.com","tenantId":"tenant-1","username":"ada@example.com","localAccountId":"oid-1","name":"Ada"}}}`

func TestProductionSyncRejectsInvalidProfile(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Set(ctx, storage.DefaultSessionKey, []byte(persistedOldProfile))

	idp := &fakeProvider{}
	fetcher := &fakeFetcher{user: &session.User{ID: "", Email: "not-an-email", Roles: []string{"user"}}}
	p := buildProduction(t, backend, idp, fetcher)
	if p.User() == nil || p.User().Name != "Old Name" {
		t.Fatalf("expected hydrated user, got %+v", p.User())
	}

	idp.setActive(&testAccount)
	err := p.Resume(ctx)
	if !errors.Is(err, ErrIdentitySync) || !errors.Is(err, session.ErrSchemaViolation) {
		t.Fatalf("expected schema violation wrapped in ErrIdentitySync, got %v", err)
	}
	if fetcher.calls() != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.calls())
	}
	if u := p.User(); u == nil || u.Name != "Old Name" || !p.IsAuthenticated() {
		t.Fatalf("invalid profile must leave the user unchanged, got %+v", p.Session())
	}
	if got := p.MetricsSnapshot().Counters[MetricIdentitySyncFailure]; got != 1 {
		t.Fatalf("expected sync failure metric, got %d", got)
	}

	raw, err := backend.Get(ctx, storage.DefaultSessionKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	env, err := session.DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("persisted session must stay valid: %v", err)
	}
	if env.State.User == nil || env.State.User.Name != "Old Name" {
		t.Fatalf("invalid profile must not be persisted, got %+v", env.State.User)
	}

	again := buildProduction(t, backend, &fakeProvider{}, &fakeFetcher{user: backendProfile()})
	if u := again.User(); u == nil || u.ID != "user-42" {
		t.Fatalf("expected persisted session to survive a restart, got %+v", again.Session())
	}
}

func TestProductionSyncRejectsMissingProfile(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{}
	fetcher := &fakeFetcher{}
	p := buildProduction(t, nil, idp, fetcher)

	idp.setActive(&testAccount)
	err := p.Resume(ctx)
	if !errors.Is(err, ErrIdentitySync) || !errors.Is(err, session.ErrSchemaViolation) {
		t.Fatalf("expected ErrIdentitySync for an empty profile, got %v", err)
	}
	st := p.Session()
	if st.Account == nil || st.User != nil || st.IsAuthenticated {
		t.Fatalf("expected account set and user absent, got %+v", st)
	}
	if err := p.SyncIdentity(ctx); !errors.Is(err, ErrIdentitySync) {
		t.Fatalf("explicit retry must report the same failure, got %v", err)
	}
}

func TestProductionSyncIdentityWithoutAccount(t *testing.T) {
	p := buildProduction(t, nil, &fakeProvider{}, &fakeFetcher{user: backendProfile()})

	if err := p.SyncIdentity(context.Background()); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
	if err := SyncIdentity(context.Background(), p); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount from package helper, got %v", err)
	}
}

func TestProductionAccessTokenWithoutAccount(t *testing.T) {
	idp := &fakeProvider{silentToken: providerToken}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if err != nil || tok != "" {
		t.Fatalf("expected (\"\", nil), got (%q, %v)", tok, err)
	}
	if silent, login, _ := idp.calls(); silent != 0 || login != 0 {
		t.Fatalf("no-account path must not touch the provider: silent=%d login=%d", silent, login)
	}
	if got := p.MetricsSnapshot().Counters[MetricNoAccount]; got != 1 {
		t.Fatalf("expected no-account metric, got %d", got)
	}
}

func TestProductionAccessTokenSilentSuccess(t *testing.T) {
	idp := &fakeProvider{active: testAccount.Clone(), silentToken: providerToken}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if tok != providerToken {
		t.Fatalf("expected provider token, got %q", tok)
	}
	if _, login, _ := idp.calls(); login != 0 {
		t.Fatalf("silent success must not redirect")
	}
	if got := p.MetricsSnapshot().Counters[MetricSilentAcquisitionSuccess]; got != 1 {
		t.Fatalf("expected silent success metric, got %d", got)
	}
}

func TestProductionAccessTokenSilentFailureRedirects(t *testing.T) {
	idp := &fakeProvider{
		active:    testAccount.Clone(),
		silentErr: provider.ErrInteractionRequired,
	}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if err != nil || tok != "" {
		t.Fatalf("expected (\"\", nil), got (%q, %v)", tok, err)
	}
	silent, login, _ := idp.calls()
	if silent != 1 || login != 1 {
		t.Fatalf("expected one silent attempt and one redirect, got silent=%d login=%d", silent, login)
	}
	if !p.IsLoading() {
		t.Fatalf("expected loading while the redirect is in progress")
	}

	snap := p.MetricsSnapshot()
	if snap.Counters[MetricSilentAcquisitionFailure] != 1 || snap.Counters[MetricInteractiveRedirect] != 1 {
		t.Fatalf("unexpected metrics %v", snap.Counters)
	}
}

func TestProductionAccessTokenInteractiveFailure(t *testing.T) {
	idp := &fakeProvider{
		active:    testAccount.Clone(),
		silentErr: provider.ErrInteractionRequired,
		loginErr:  errors.New("no browser"),
	}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if err != nil || tok != "" {
		t.Fatalf("expected (\"\", nil), got (%q, %v)", tok, err)
	}
	if p.IsLoading() {
		t.Fatalf("failed redirect must clear loading")
	}
	if got := p.MetricsSnapshot().Counters[MetricInteractiveFailure]; got != 1 {
		t.Fatalf("expected interactive failure metric, got %d", got)
	}
}

func TestProductionAccessTokenInvalidFormat(t *testing.T) {
	idp := &fakeProvider{active: testAccount.Clone(), silentToken: "opaque-token"}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if !errors.Is(err, ErrInvalidTokenFormat) {
		t.Fatalf("expected ErrInvalidTokenFormat, got %v", err)
	}
	if tok != "" {
		t.Fatalf("expected no token, got %q", tok)
	}
	if _, login, _ := idp.calls(); login != 0 {
		t.Fatalf("malformed token must not trigger the fallback")
	}
}

func TestProductionAccessTokenDeduplicatesInFlight(t *testing.T) {
	gate := make(chan struct{})
	idp := &fakeProvider{active: testAccount.Clone(), silentToken: providerToken, gate: gate}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	const callers = 8
	var started, finished sync.WaitGroup
	started.Add(callers)
	finished.Add(callers)
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer finished.Done()
			started.Done()
			results[i], _ = p.AccessToken(context.Background())
		}(i)
	}

	started.Wait()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if silent, _, _ := idp.calls(); silent > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	finished.Wait()

	if silent, _, _ := idp.calls(); silent != 1 {
		t.Fatalf("expected one shared silent attempt, got %d", silent)
	}
	for i, r := range results {
		if r != providerToken {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
}

func waitForSilentCall(t *testing.T, idp *fakeProvider) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if silent, _, _ := idp.calls(); silent > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("silent attempt never started")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProductionAccessTokenCanceledCallerDoesNotAbortOthers(t *testing.T) {
	gate := make(chan struct{})
	idp := &fakeProvider{active: testAccount.Clone(), silentToken: providerToken, gate: gate}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	type result struct {
		tok string
		err error
	}
	first := make(chan result, 1)
	go func() {
		tok, err := p.AccessToken(firstCtx)
		first <- result{tok, err}
	}()
	waitForSilentCall(t, idp)

	second := make(chan result, 1)
	go func() {
		tok, err := p.AccessToken(context.Background())
		second <- result{tok, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case r := <-first:
		if !errors.Is(r.err, context.Canceled) || r.tok != "" {
			t.Fatalf("canceled caller: expected context.Canceled, got (%q, %v)", r.tok, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled caller did not return")
	}

	close(gate)
	select {
	case r := <-second:
		if r.err != nil || r.tok != providerToken {
			t.Fatalf("live caller: expected token, got (%q, %v)", r.tok, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("live caller did not return")
	}

	silent, login, _ := idp.calls()
	if silent != 1 || login != 0 {
		t.Fatalf("expected one shared silent attempt and no redirect, got silent=%d login=%d", silent, login)
	}
	if p.IsLoading() {
		t.Fatalf("no redirect was started, loading must stay false")
	}
}

func TestProductionAccessTokenContextErrorSkipsFallback(t *testing.T) {
	idp := &fakeProvider{active: testAccount.Clone(), silentErr: context.DeadlineExceeded}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	tok, err := p.AccessToken(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) || tok != "" {
		t.Fatalf("expected deadline error, got (%q, %v)", tok, err)
	}
	if _, login, _ := idp.calls(); login != 0 {
		t.Fatalf("timed-out silent attempt must not redirect")
	}
	if p.IsLoading() {
		t.Fatalf("expected loading false")
	}
	if got := p.MetricsSnapshot().Counters[MetricInteractiveRedirect]; got != 0 {
		t.Fatalf("expected no redirect metric, got %d", got)
	}
}

func TestProductionSubscriberMayRequestToken(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{silentErr: provider.ErrInteractionRequired}
	p := buildProduction(t, nil, idp, &fakeFetcher{user: backendProfile()})

	var once sync.Once
	tokens := make(chan string, 1)
	cancel := p.Subscribe(func(st session.State) {
		if st.Account == nil {
			return
		}
		once.Do(func() {
			tok, _ := p.AccessToken(ctx)
			tokens <- tok
		})
	})
	defer cancel()

	idp.setActive(&testAccount)
	done := make(chan error, 1)
	go func() { done <- p.Resume(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Resume: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Resume deadlocked with a subscriber requesting a token")
	}

	if tok := <-tokens; tok != "" {
		t.Fatalf("expected redirect instead of a token, got %q", tok)
	}
	if _, login, _ := idp.calls(); login != 1 {
		t.Fatalf("expected the fallback redirect, got %d", login)
	}
	if !p.IsLoading() || !p.IsAuthenticated() {
		t.Fatalf("expected loading and synced user, got %+v", p.Session())
	}
}

func TestProductionLoginAndCompleteRedirect(t *testing.T) {
	ctx := context.Background()
	idp := &fakeProvider{redirectAccount: testAccount.Clone()}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, nil, idp, fetcher)

	if err := p.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !p.IsLoading() || p.IsAuthenticated() {
		t.Fatalf("expected authenticating state, got %+v", p.Session())
	}

	callback, _ := url.Parse("http://127.0.0.1:8400/callback?state=s&code=c")
	if err := CompleteRedirect(ctx, p, callback); err != nil {
		t.Fatalf("CompleteRedirect: %v", err)
	}
	if p.IsLoading() {
		t.Fatalf("expected loading cleared")
	}
	if !p.IsAuthenticated() || p.User().ID != "user-42" {
		t.Fatalf("expected synced user, got %+v", p.Session())
	}
	if fetcher.calls() != 1 {
		t.Fatalf("expected one sync, got %d", fetcher.calls())
	}

	snap := p.MetricsSnapshot()
	if snap.Counters[MetricLogin] != 1 || snap.Counters[MetricRedirectCompleted] != 1 {
		t.Fatalf("unexpected metrics %v", snap.Counters)
	}
}

func TestProductionCompleteRedirectFailure(t *testing.T) {
	idp := &fakeProvider{redirectErr: provider.ErrStateMismatch}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, nil, idp, fetcher)

	_ = p.Login(context.Background())
	err := p.CompleteRedirect(context.Background(), &url.URL{})
	if !errors.Is(err, provider.ErrStateMismatch) {
		t.Fatalf("expected ErrStateMismatch, got %v", err)
	}
	if p.IsLoading() || p.Session().Account != nil || fetcher.calls() != 0 {
		t.Fatalf("failed redirect must not change identity, got %+v", p.Session())
	}
}

func TestCompleteRedirectUnsupportedInDevelopment(t *testing.T) {
	dev := buildDevelopment(t, nil, DefaultConfig())

	if err := CompleteRedirect(context.Background(), dev, &url.URL{}); !errors.Is(err, ErrModeUnsupported) {
		t.Fatalf("expected ErrModeUnsupported, got %v", err)
	}
	if err := SyncIdentity(context.Background(), dev); !errors.Is(err, ErrModeUnsupported) {
		t.Fatalf("expected ErrModeUnsupported, got %v", err)
	}
}

func TestProductionLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	idp := &fakeProvider{active: testAccount.Clone()}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, backend, idp, fetcher)

	if !p.IsAuthenticated() {
		t.Fatalf("expected startup resume to sign in")
	}

	for i := 0; i < 2; i++ {
		if err := p.Logout(ctx); err != nil {
			t.Fatalf("Logout %d: %v", i, err)
		}
		st := p.Session()
		if st.User != nil || st.IsAuthenticated || st.Account != nil || st.IsLoading {
			t.Fatalf("logout %d: expected empty session, got %+v", i, st)
		}
	}

	idp.mu.Lock()
	logouts, last := idp.logoutCalls, idp.logoutAccount
	idp.mu.Unlock()
	if logouts != 2 || last != nil {
		t.Fatalf("expected provider logout on each call, last without account; got %d, %+v", logouts, last)
	}

	raw, err := backend.Get(ctx, storage.DefaultSessionKey)
	if err != nil || string(raw) != `{"state":{"user":null,"isAuthenticated":false,"account":null}}` {
		t.Fatalf("unexpected persisted state %s (%v)", raw, err)
	}

	idp.setActive(&testAccount)
	if err := p.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if fetcher.calls() != 2 {
		t.Fatalf("signing back in must sync again, got %d calls", fetcher.calls())
	}
}

func TestProductionHydratedAccountIsResynced(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	_ = backend.Set(ctx, storage.DefaultSessionKey, []byte(persistedOldProfile))

	idp := &fakeProvider{active: testAccount.Clone()}
	fetcher := &fakeFetcher{user: backendProfile()}
	p := buildProduction(t, backend, idp, fetcher)

	if fetcher.calls() != 1 {
		t.Fatalf("expected one sync at startup, got %d", fetcher.calls())
	}
	if p.User().Name != "Ada Lovelace" {
		t.Fatalf("expected refreshed profile, got %+v", p.User())
	}
}
