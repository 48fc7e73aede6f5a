package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/repositories"
	"github.com/desertthunder/spotipro/internal/shared"
	tu "github.com/desertthunder/spotipro/internal/testing"
)

const tokenResponse = `{"access_token":"T1","token_type":"Bearer","expires_in":3600}`

type fixture struct {
	guard    *Guard
	storage  *repositories.MemoryStorage
	store    *TokenStore
	session  *Session
	server   *tu.TokenServer
	clock    *tu.FixedClock
	recorder *recorder
}

type recorder struct {
	mu     sync.Mutex
	events [][2]string
}

func (r *recorder) RecordTransition(ctx context.Context, from, to, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, [2]string{from, to})
	return nil
}

func (r *recorder) has(from, to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e[0] == from.String() && e[1] == to.String() {
			return true
		}
	}
	return false
}

func newFixture(t *testing.T, status int, body string, opts ...GuardOption) *fixture {
	t.Helper()

	f := &fixture{
		storage:  repositories.NewMemoryStorage(),
		session:  NewSession(),
		server:   tu.NewTokenServer(t, status, body),
		clock:    tu.NewFixedClock(time.Unix(4000, 0)),
		recorder: &recorder{},
	}
	f.store = NewTokenStore(f.storage)

	provider := NewProvider(testSpotifyConfig(f.server.URL), f.server.Client())
	opts = append([]GuardOption{
		WithClock(f.clock.Now),
		WithLogger(log.New(io.Discard)),
		WithRecorder(f.recorder),
	}, opts...)
	f.guard = NewGuard(provider, f.store, f.session, opts...)
	return f
}

func (f *fixture) value(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := f.storage.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s) error = %v", key, err)
	}
	return v, ok
}

func (f *fixture) seedPending(t *testing.T, verifier, state string) {
	t.Helper()
	ctx := context.Background()
	if err := f.store.SavePending(ctx, verifier, state); err != nil {
		t.Fatalf("SavePending() error = %v", err)
	}
	if _, err := f.store.ClaimRedirect(ctx); err != nil {
		t.Fatalf("ClaimRedirect() error = %v", err)
	}
}

func TestGuardRedirect(t *testing.T) {
	ctx := context.Background()

	t.Run("empty storage redirects once", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)

		out := f.guard.Evaluate(ctx, Location{})
		if out.State != Redirecting {
			t.Fatalf("expected Redirecting, got %v (err %v)", out.State, out.Err)
		}

		verifier, ok := f.value(t, KeyCodeVerifier)
		if !ok || !ValidVerifier(verifier) {
			t.Fatalf("expected a valid stored verifier, got %q", verifier)
		}
		state, _ := f.value(t, KeyAuthState)
		if _, ok := f.value(t, KeyRedirected); !ok {
			t.Error("redirected flag should be set")
		}

		u, err := url.Parse(out.RedirectURL)
		if err != nil {
			t.Fatalf("invalid redirect url: %v", err)
		}
		q := u.Query()
		if q.Get("code_challenge") != DeriveChallenge(verifier) {
			t.Error("challenge should derive from the stored verifier")
		}
		if q.Get("state") != state || state == "" {
			t.Errorf("state %q should match stored %q", q.Get("state"), state)
		}
		if f.guard.State() != AwaitingCallback {
			t.Errorf("guard should await the callback, got %v", f.guard.State())
		}
		if !f.recorder.has(Unauthenticated, Redirecting) || !f.recorder.has(Redirecting, AwaitingCallback) {
			t.Errorf("transitions not recorded: %v", f.recorder.events)
		}

		again := f.guard.Evaluate(ctx, Location{})
		if again.State != Unauthenticated || again.RedirectURL != "" {
			t.Errorf("no second redirect while flag is set, got %+v", again)
		}
		if f.server.Requests() != 0 {
			t.Error("redirecting must not contact the token endpoint")
		}
	})

	t.Run("lost claim", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		racing := &racingStorage{MemoryStorage: f.storage}
		f.guard.store = NewTokenStore(racing)

		out := f.guard.Evaluate(ctx, Location{})
		if out.State != Unauthenticated || out.RedirectURL != "" {
			t.Errorf("losing the claim must not redirect, got %+v", out)
		}
		if _, ok := f.value(t, KeyCodeVerifier); ok {
			t.Error("losing writer must not store a verifier")
		}
	})

	t.Run("random source failure", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse, WithRandom(tu.FailingReader{}))

		out := f.guard.Evaluate(ctx, Location{})
		if out.State != Unauthenticated || !errors.Is(out.Err, shared.ErrRandomSourceUnavailable) {
			t.Fatalf("expected failure with ErrRandomSourceUnavailable, got %+v", out)
		}
		if _, ok := f.value(t, KeyRedirected); ok {
			t.Error("flag must stay unset when no redirect happened")
		}
	})

	t.Run("Login always yields a fresh url", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "old-verifier", "old-state")

		first := f.guard.Login(ctx)
		second := f.guard.Login(ctx)
		if first.State != Redirecting || second.State != Redirecting {
			t.Fatalf("Login should redirect, got %v and %v", first.State, second.State)
		}
		if first.RedirectURL == second.RedirectURL {
			t.Error("each login should use fresh proof material")
		}
		if state, _ := f.value(t, KeyAuthState); state == "old-state" {
			t.Error("login should replace the pending state")
		}
	})
}

func TestGuardCodeExchange(t *testing.T) {
	ctx := context.Background()
	loc := Location{Search: "?code=ABC123&state=xyz"}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")

		out := f.guard.Evaluate(ctx, loc)
		if out.State != Authenticated {
			t.Fatalf("expected Authenticated, got %v (err %v)", out.State, out.Err)
		}

		form := f.server.LastForm()
		if form.Get("code") != "ABC123" || form.Get("code_verifier") != "V" {
			t.Errorf("unexpected exchange body %v", form)
		}

		tok, ok := f.session.Token()
		if !ok || tok.Value != "T1" {
			t.Fatalf("session should report T1, got %+v", tok)
		}
		if tok.ObtainedAt != 4000 {
			t.Errorf("token should be stamped with the clock, got %d", tok.ObtainedAt)
		}

		for _, key := range []string{KeyRedirected, KeyCodeVerifier, KeyAuthState} {
			if _, ok := f.value(t, key); ok {
				t.Errorf("%s should be cleared after success", key)
			}
		}
		if _, ok := f.value(t, KeyAccessToken); !ok {
			t.Error("token should be persisted")
		}
		if !f.recorder.has(Exchanging, Authenticated) {
			t.Errorf("missing exchanging -> authenticated, got %v", f.recorder.events)
		}

		reload := f.guard.Evaluate(ctx, loc)
		if reload.State != Authenticated || f.server.Requests() != 1 {
			t.Errorf("reload should reuse the token without network, got %v after %d requests", reload.State, f.server.Requests())
		}
	})

	t.Run("invalid_grant", func(t *testing.T) {
		f := newFixture(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
		f.seedPending(t, "V", "xyz")

		out := f.guard.Evaluate(ctx, loc)
		if out.State != Unauthenticated {
			t.Fatalf("expected Unauthenticated, got %v", out.State)
		}
		var xerr *ExchangeError
		if !errors.As(out.Err, &xerr) || xerr.Code != "invalid_grant" {
			t.Fatalf("expected ExchangeError invalid_grant, got %v", out.Err)
		}
		if f.server.Requests() != 1 {
			t.Errorf("expected exactly one request, got %d", f.server.Requests())
		}
		if _, ok := f.value(t, KeyCodeVerifier); ok {
			t.Error("verifier should be cleared after a failed exchange")
		}

		again := f.guard.Evaluate(ctx, loc)
		if again.State != Unauthenticated || again.RedirectURL != "" {
			t.Errorf("an attempted code must not loop, got %+v", again)
		}
		if f.server.Requests() != 1 {
			t.Errorf("an attempted code must not be re-exchanged, got %d requests", f.server.Requests())
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "expected")

		out := f.guard.Evaluate(ctx, loc)
		if out.State != Unauthenticated || !errors.Is(out.Err, shared.ErrStateMismatch) {
			t.Fatalf("expected StateMismatch, got %+v", out)
		}
		if f.server.Requests() != 0 {
			t.Error("state mismatch must never call the token endpoint")
		}
		if state, _ := f.value(t, KeyAuthState); state != "expected" {
			t.Errorf("pending state should survive a foreign callback, got %q", state)
		}

		out = f.guard.Evaluate(ctx, Location{Search: "?code=GOOD&state=expected"})
		if out.State != Authenticated {
			t.Fatalf("genuine callback should still complete, got %v (%v)", out.State, out.Err)
		}
		if got := f.server.LastForm().Get("code"); got != "GOOD" {
			t.Errorf("expected code GOOD, got %q", got)
		}
	})

	t.Run("no pending state", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)

		out := f.guard.Evaluate(ctx, loc)
		if !errors.Is(out.Err, shared.ErrStateMismatch) || f.server.Requests() != 0 {
			t.Errorf("a code without a pending attempt must be rejected, got %+v", out)
		}
	})

	t.Run("missing verifier", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.storage.Set(ctx, KeyAuthState, "xyz"); err != nil {
			t.Fatal(err)
		}

		out := f.guard.Evaluate(ctx, loc)
		if !errors.Is(out.Err, shared.ErrMissingVerifier) || f.server.Requests() != 0 {
			t.Errorf("expected ErrMissingVerifier without exchange, got %+v", out)
		}
	})

	t.Run("concurrent evaluations exchange once", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")
		f.server.SetDelay(20 * time.Millisecond)

		var wg sync.WaitGroup
		outcomes := make([]Outcome, 8)
		for i := range outcomes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[i] = f.guard.Evaluate(ctx, loc)
			}()
		}
		wg.Wait()

		if f.server.Requests() != 1 {
			t.Errorf("expected one exchange, got %d", f.server.Requests())
		}
		for i, out := range outcomes {
			if out.State != Authenticated {
				t.Errorf("evaluation %d: expected Authenticated, got %v", i, out.State)
			}
		}
	})

	t.Run("logout then reload redirects again", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")

		if out := f.guard.Evaluate(ctx, loc); out.State != Authenticated {
			t.Fatalf("expected Authenticated, got %v", out.State)
		}
		if err := f.guard.Logout(ctx); err != nil {
			t.Fatalf("Logout() error = %v", err)
		}
		keys, _ := f.storage.Keys(ctx)
		if len(keys) != 0 {
			t.Errorf("logout should clear storage, left %v", keys)
		}
		if _, ok := f.session.Token(); ok {
			t.Error("logout should clear the session")
		}

		if out := f.guard.Evaluate(ctx, Location{}); out.State != Redirecting {
			t.Errorf("expected redirect after logout, got %v", out.State)
		}
	})
}

func TestGuardImplicitToken(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted with matching state", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")

		out := f.guard.Evaluate(ctx, Location{Hash: "#access_token=H1&token_type=Bearer&expires_in=60&state=xyz"})
		if out.State != Authenticated {
			t.Fatalf("expected Authenticated, got %v (%v)", out.State, out.Err)
		}
		if out.Token.Value != "H1" || out.Token.ExpiresIn != 60 || out.Token.ObtainedAt != 4000 {
			t.Errorf("unexpected token %+v", out.Token)
		}
		if _, ok := f.value(t, KeyRedirected); ok {
			t.Error("flag should be cleared")
		}
		if f.server.Requests() != 0 {
			t.Error("implicit tokens need no exchange")
		}
	})

	t.Run("rejected with wrong state", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")

		out := f.guard.Evaluate(ctx, Location{Hash: "#access_token=H1&state=forged"})
		if !errors.Is(out.Err, shared.ErrStateMismatch) {
			t.Errorf("expected StateMismatch, got %+v", out)
		}
		if _, ok := f.session.Token(); ok {
			t.Error("forged token must not reach the session")
		}

		out = f.guard.Evaluate(ctx, Location{Hash: "#access_token=H2&state=xyz"})
		if out.State != Authenticated || out.Token.Value != "H2" {
			t.Errorf("genuine token should still be accepted, got %+v", out)
		}
	})
}

func TestGuardCallbackError(t *testing.T) {
	f := newFixture(t, http.StatusOK, tokenResponse)

	out := f.guard.Evaluate(context.Background(), Location{Search: "?error=access_denied"})
	if out.State != Unauthenticated || !errors.Is(out.Err, shared.ErrCallbackParse) {
		t.Fatalf("expected ErrCallbackParse, got %+v", out)
	}
	if out.RedirectURL != "" {
		t.Error("a rejected callback must never redirect")
	}
	if _, ok := f.value(t, KeyRedirected); ok {
		t.Error("flag should stay unset")
	}
}

func TestGuardExpiry(t *testing.T) {
	ctx := context.Background()
	expired := &Token{Value: "T0", TokenType: "Bearer", ObtainedAt: 0, ExpiresIn: 3600}

	t.Run("expired token is cleared", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.store.Save(ctx, expired); err != nil {
			t.Fatal(err)
		}

		out := f.guard.Evaluate(ctx, Location{})
		if out.State != Expired {
			t.Fatalf("expected Expired, got %v", out.State)
		}
		if _, ok := f.value(t, KeyAccessToken); ok {
			t.Error("expired token should be removed")
		}
		if _, ok := f.session.Token(); ok {
			t.Error("session should be empty")
		}
	})

	t.Run("Resolve re-enters the flow", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.store.Save(ctx, expired); err != nil {
			t.Fatal(err)
		}

		out := f.guard.Resolve(ctx, Location{})
		if out.State != Redirecting {
			t.Errorf("expected a redirect after expiry, got %v", out.State)
		}
	})

	t.Run("valid token is reused without network", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		valid := &Token{Value: "T2", TokenType: "Bearer", ObtainedAt: 3000, ExpiresIn: 3600}
		if err := f.store.Save(ctx, valid); err != nil {
			t.Fatal(err)
		}

		out := f.guard.Evaluate(ctx, Location{Search: "?code=ignored&state=x"})
		if out.State != Authenticated || out.Token.Value != "T2" {
			t.Fatalf("expected Authenticated with T2, got %+v", out)
		}
		if tok, _ := f.session.Token(); tok == nil || tok.Value != "T2" {
			t.Error("session should be hydrated from storage")
		}
		if f.server.Requests() != 0 {
			t.Error("no network call expected")
		}
	})
}

func TestGuardToken(t *testing.T) {
	ctx := context.Background()

	t.Run("not authenticated", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if _, err := f.guard.Token(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("hydrates from storage", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.store.Save(ctx, &Token{Value: "T3", ObtainedAt: 4000, ExpiresIn: 10}); err != nil {
			t.Fatal(err)
		}

		v, err := f.guard.Token(ctx)
		if err != nil || v != "T3" {
			t.Fatalf("Token() = %q, %v", v, err)
		}
		if f.guard.State() != Authenticated {
			t.Errorf("expected Authenticated, got %v", f.guard.State())
		}

		f.clock.Advance(10 * time.Second)
		if _, err := f.guard.Token(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if f.guard.State() != Expired {
			t.Errorf("expected Expired, got %v", f.guard.State())
		}
	})

	t.Run("expiry storage failure is reported", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.store.Save(ctx, &Token{Value: "T5", ObtainedAt: 4000, ExpiresIn: 10}); err != nil {
			t.Fatal(err)
		}
		if _, err := f.guard.Token(ctx); err != nil {
			t.Fatalf("Token() error = %v", err)
		}

		f.guard.store = NewTokenStore(brokenStorage{})
		f.clock.Advance(time.Minute)

		_, err := f.guard.Token(ctx)
		if !errors.Is(err, shared.ErrTokenExpired) || !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrTokenExpired and ErrStorage, got %v", err)
		}
	})

	t.Run("Invalidate forces expiry", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		if err := f.session.SetToken(ctx, &Token{Value: "T4"}); err != nil {
			t.Fatal(err)
		}

		bound, cancel := f.session.Bind(ctx)
		defer cancel()

		if err := f.guard.Invalidate(ctx); err != nil {
			t.Fatalf("Invalidate() error = %v", err)
		}
		if f.guard.State() != Expired {
			t.Errorf("expected Expired, got %v", f.guard.State())
		}
		if _, ok := f.value(t, KeyAccessToken); ok {
			t.Error("invalidated token should be removed")
		}
		select {
		case <-bound.Done():
		case <-time.After(time.Second):
			t.Error("bound work should be cancelled when the token is invalidated")
		}
	})
}

func TestSessionSetTokenThroughGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, http.StatusOK, tokenResponse)
	if _, err := f.store.ClaimRedirect(ctx); err != nil {
		t.Fatal(err)
	}

	if err := f.session.SetToken(ctx, &Token{Value: "S1"}); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	stored, err := f.store.Load(ctx)
	if err != nil || stored == nil {
		t.Fatalf("Load() = %+v, %v", stored, err)
	}
	if stored.Value != "S1" || stored.ObtainedAt != 4000 || stored.ExpiresIn != DefaultExpiresIn {
		t.Errorf("unexpected stored token %+v", stored)
	}
	if _, ok := f.value(t, KeyRedirected); ok {
		t.Error("setting a token should clear the flag")
	}

	if err := f.session.SetToken(ctx, nil); err != nil {
		t.Fatalf("SetToken(nil) error = %v", err)
	}
	if stored, _ := f.store.Load(ctx); stored != nil {
		t.Error("nil token should clear storage")
	}
}

func TestGuardSubscribers(t *testing.T) {
	ctx := context.Background()

	t.Run("subscriber may call back into the guard", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)
		f.seedPending(t, "V", "xyz")

		var mu sync.Mutex
		var seen []State
		cancel := f.session.Subscribe(func(tok *Token) {
			st := f.guard.State()
			if tok != nil {
				if _, err := f.guard.Token(ctx); err != nil {
					t.Errorf("Token() inside subscriber error = %v", err)
				}
			}
			mu.Lock()
			seen = append(seen, st)
			mu.Unlock()
		})
		defer cancel()

		done := make(chan Outcome, 1)
		go func() { done <- f.guard.Evaluate(ctx, Location{Search: "?code=ABC123&state=xyz"}) }()

		select {
		case out := <-done:
			if out.State != Authenticated {
				t.Fatalf("expected Authenticated, got %v (%v)", out.State, out.Err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Evaluate did not return while a subscriber re-entered the guard")
		}

		mu.Lock()
		defer mu.Unlock()
		if len(seen) != 1 || seen[0] != Authenticated {
			t.Errorf("expected one notification after the exchange, got %v", seen)
		}
	})

	t.Run("SetToken from a subscriber", func(t *testing.T) {
		f := newFixture(t, http.StatusOK, tokenResponse)

		var once sync.Once
		cancel := f.session.Subscribe(func(tok *Token) {
			if tok != nil && tok.Value == "S1" {
				once.Do(func() {
					if err := f.session.SetToken(ctx, &Token{Value: "S2"}); err != nil {
						t.Errorf("SetToken() inside subscriber error = %v", err)
					}
				})
			}
		})
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- f.session.SetToken(ctx, &Token{Value: "S1"}) }()

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("SetToken() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("SetToken did not return while a subscriber replaced the token")
		}

		if tok, _ := f.session.Token(); tok == nil || tok.Value != "S2" {
			t.Errorf("expected S2 in the session, got %+v", tok)
		}
	})
}

func TestGuardStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, http.StatusOK, tokenResponse)

	f.guard.Evaluate(ctx, Location{})
	st, err := f.guard.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.State != AwaitingCallback || !st.Redirected || !st.Pending || st.Token != nil {
		t.Errorf("unexpected status %+v", st)
	}

	if err := f.store.Save(ctx, &Token{Value: "T", ObtainedAt: 0, ExpiresIn: 60}); err != nil {
		t.Fatal(err)
	}
	if st, _ := f.guard.Status(ctx); st.State != Expired {
		t.Errorf("expected Expired status, got %v", st.State)
	}
}

func TestGuardStorageFailure(t *testing.T) {
	f := newFixture(t, http.StatusOK, tokenResponse)
	f.guard.store = NewTokenStore(brokenStorage{})

	out := f.guard.Evaluate(context.Background(), Location{})
	if out.State != Unauthenticated || !errors.Is(out.Err, shared.ErrStorage) {
		t.Errorf("expected storage failure, got %+v", out)
	}
	if err := f.guard.Logout(context.Background()); !errors.Is(err, shared.ErrStorage) {
		t.Errorf("expected Logout() storage failure, got %v", err)
	}
}

func TestTokenStoreCorruptRecord(t *testing.T) {
	ctx := context.Background()
	s := repositories.NewMemoryStorage()
	if err := s.Set(ctx, KeyAccessToken, "{not json"); err != nil {
		t.Fatal(err)
	}

	tok, err := NewTokenStore(s).Load(ctx)
	if err != nil || tok != nil {
		t.Fatalf("Load() = %+v, %v; want nil, nil", tok, err)
	}
	if _, ok, _ := s.Get(ctx, KeyAccessToken); ok {
		t.Error("corrupt record should be discarded")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Unauthenticated:  "unauthenticated",
		Redirecting:      "redirecting",
		AwaitingCallback: "awaiting_callback",
		Exchanging:       "exchanging",
		Authenticated:    "authenticated",
		Expired:          "expired",
		State(99):        "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %s, want %s", s, s.String(), want)
		}
	}
}

// racingStorage reports the flag absent but loses every claim, as if another client won in between.
type racingStorage struct {
	*repositories.MemoryStorage
}

func (r *racingStorage) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return false, nil
}

type brokenStorage struct{}

func (brokenStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, shared.ErrStorage
}

func (brokenStorage) Set(ctx context.Context, key, value string) error {
	return shared.ErrStorage
}

func (brokenStorage) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	return false, shared.ErrStorage
}

func (brokenStorage) Remove(ctx context.Context, keys ...string) error {
	return shared.ErrStorage
}
