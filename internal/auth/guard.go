package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/shared"
)

// State is a lifecycle guard state.
type State int

const (
	Unauthenticated State = iota
	Redirecting
	AwaitingCallback
	Exchanging
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Redirecting:
		return "redirecting"
	case AwaitingCallback:
		return "awaiting_callback"
	case Exchanging:
		return "exchanging"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Location is the query and fragment of the URL the client was loaded with.
type Location struct {
	Search string
	Hash   string
}

// Outcome is the result of one evaluation.
//
// RedirectURL is set only for [Redirecting]; the caller navigates there and stops. Token is set only for
// [Authenticated]. Err explains an [Unauthenticated] outcome when there was a failure.
type Outcome struct {
	State       State
	RedirectURL string
	Token       *Token
	Err         error
}

// Status is a snapshot for status displays.
type Status struct {
	State      State
	Token      *Token
	Redirected bool
	Pending    bool
}

// Authorizer is the provider side of the flow.
type Authorizer interface {
	AuthorizationURL(state, challenge string) string
	Exchange(ctx context.Context, code, verifier string) (*Token, error)
}

// TransitionRecorder receives every state change.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, from, to, detail string) error
}

// GuardOption configures a [Guard].
type GuardOption func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithRandom replaces crypto/rand as the proof material source.
func WithRandom(r io.Reader) GuardOption {
	return func(g *Guard) { g.random = r }
}

// WithLogger sets the guard's logger.
func WithLogger(l *log.Logger) GuardOption {
	return func(g *Guard) { g.logger = l }
}

// WithRecorder persists transitions.
func WithRecorder(r TransitionRecorder) GuardOption {
	return func(g *Guard) { g.recorder = r }
}

// Guard drives the token lifecycle. All methods are safe for concurrent use and are serialized,
// so one authorization code is never exchanged twice by the same process.
type Guard struct {
	mu sync.Mutex

	provider Authorizer
	store    *TokenStore
	session  *Session
	logger   *log.Logger
	recorder TransitionRecorder
	now      func() time.Time
	random   io.Reader

	state     State
	attempted map[string]struct{}
	outbox    []func()
}

// NewGuard builds a guard and attaches it to session so [Session.SetToken] persists through the store.
func NewGuard(provider Authorizer, store *TokenStore, session *Session, opts ...GuardOption) *Guard {
	g := &Guard{
		provider:  provider,
		store:     store,
		session:   session,
		logger:    log.Default(),
		now:       time.Now,
		random:    rand.Reader,
		state:     Unauthenticated,
		attempted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = shared.WithLogger(g.logger, "component", "auth")
	session.attach(g.setToken)
	return g
}

// Session returns the session the guard publishes to.
func (g *Guard) Session() *Session {
	return g.session
}

// State returns the current state.
func (g *Guard) State() State {
	g.lock()
	defer g.unlock()
	return g.state
}

// lock and unlock bracket every public method. Session notifications queued while the lock is held
// are delivered after it is released, so subscribers may call back into the guard.
func (g *Guard) lock() {
	g.mu.Lock()
}

func (g *Guard) unlock() {
	outbox := g.outbox
	g.outbox = nil
	g.mu.Unlock()

	for _, notify := range outbox {
		notify()
	}
}

// publish swaps tok into the session and queues its notification. Callers hold g.mu.
func (g *Guard) publish(tok *Token) bool {
	notify, changed := g.session.swap(tok)
	if changed {
		g.outbox = append(g.outbox, notify)
	}
	return changed
}

// Evaluate runs one page-load decision for loc.
func (g *Guard) Evaluate(ctx context.Context, loc Location) Outcome {
	g.lock()
	defer g.unlock()
	return g.evaluate(ctx, loc)
}

// Resolve evaluates loc and, when the stored token turned out to be expired, evaluates once more
// so the flow restarts from the top.
func (g *Guard) Resolve(ctx context.Context, loc Location) Outcome {
	g.lock()
	defer g.unlock()

	out := g.evaluate(ctx, loc)
	if out.State == Expired {
		out = g.evaluate(ctx, loc)
	}
	return out
}

// Login re-arms the automatic redirect and starts a fresh authorization attempt.
func (g *Guard) Login(ctx context.Context) Outcome {
	g.lock()
	defer g.unlock()

	if err := g.store.ClearRedirect(ctx); err != nil {
		return g.fail(ctx, err)
	}
	return g.redirect(ctx)
}

// Logout removes every authorization record and signs the session out.
func (g *Guard) Logout(ctx context.Context) error {
	g.lock()
	defer g.unlock()

	if err := g.store.ClearAll(ctx); err != nil {
		g.logger.Error("failed to clear client storage", "error", err)
		return err
	}
	g.publish(nil)
	g.transition(ctx, Unauthenticated, "logout")
	return nil
}

// Token returns the bearer value for resource requests.
func (g *Guard) Token(ctx context.Context) (string, error) {
	g.lock()
	defer g.unlock()

	tok, ok := g.session.Token()
	if !ok {
		stored, err := g.store.Load(ctx)
		if err != nil {
			return "", err
		}
		if stored == nil {
			return "", shared.ErrNotAuthenticated
		}
		tok = stored
	}

	if tok.Expired(g.now()) {
		if err := g.expire(ctx, "token expired before use"); err != nil {
			g.logger.Error("failed to clear expired token", "error", err)
			return "", errors.Join(shared.ErrTokenExpired, shared.ErrStorage, err)
		}
		return "", shared.ErrTokenExpired
	}

	if g.publish(tok) || g.state != Authenticated {
		g.transition(ctx, Authenticated, "token hydrated")
	}
	return tok.Value, nil
}

// Invalidate discards the token after the resource API rejected it.
func (g *Guard) Invalidate(ctx context.Context) error {
	g.lock()
	defer g.unlock()
	return g.expire(ctx, "resource API rejected token")
}

// Status reports the current state and records.
func (g *Guard) Status(ctx context.Context) (Status, error) {
	g.lock()
	defer g.unlock()

	tok, err := g.store.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	redirected, err := g.store.Redirected(ctx)
	if err != nil {
		return Status{}, err
	}
	verifier, _, err := g.store.Pending(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{State: g.state, Token: tok, Redirected: redirected, Pending: verifier != ""}
	switch {
	case tok != nil && tok.Expired(g.now()):
		st.State = Expired
	case tok != nil:
		st.State = Authenticated
	case g.state == Authenticated:
		// another process signed out
		st.State = Unauthenticated
	}
	return st, nil
}

func (g *Guard) evaluate(ctx context.Context, loc Location) Outcome {
	tok, err := g.store.Load(ctx)
	if err != nil {
		return g.fail(ctx, err)
	}

	if tok != nil {
		if !tok.Expired(g.now()) {
			g.publish(tok)
			g.transition(ctx, Authenticated, "stored token reused")
			return Outcome{State: Authenticated, Token: tok.clone()}
		}
		if err := g.expire(ctx, "stored token expired"); err != nil {
			return g.fail(ctx, err)
		}
		return Outcome{State: Expired}
	}

	cb := ParseCallback(loc.Search, loc.Hash)
	switch cb.Kind {
	case CallbackCode:
		if _, seen := g.attempted[cb.Code]; !seen {
			return g.consumeCode(ctx, cb)
		}
		g.logger.Debug("ignoring authorization code already attempted")
	case CallbackToken:
		return g.consumeToken(ctx, cb)
	case CallbackError:
		err := cb.Err()
		g.logger.Warn("authorization callback rejected", "error", err)
		g.transition(ctx, Unauthenticated, err.Error())
		return Outcome{State: Unauthenticated, Err: err}
	}

	redirected, err := g.store.Redirected(ctx)
	if err != nil {
		return g.fail(ctx, err)
	}
	if redirected {
		g.transition(ctx, Unauthenticated, "redirect already attempted")
		return Outcome{State: Unauthenticated}
	}
	return g.redirect(ctx)
}

func (g *Guard) consumeCode(ctx context.Context, cb CallbackResult) Outcome {
	g.attempted[cb.Code] = struct{}{}
	g.transition(ctx, AwaitingCallback, "authorization code received")

	verifier, state, err := g.store.Pending(ctx)
	if err != nil {
		return g.fail(ctx, err)
	}

	if state == "" {
		return g.abandon(ctx, shared.ErrStateMismatch)
	}
	if cb.State != state {
		return g.reject(ctx, shared.ErrStateMismatch)
	}
	if verifier == "" {
		return g.abandon(ctx, shared.ErrMissingVerifier)
	}

	g.transition(ctx, Exchanging, "")
	tok, err := g.provider.Exchange(ctx, cb.Code, verifier)

	if clearErr := g.store.ClearPending(ctx); clearErr != nil {
		g.logger.Warn("failed to clear pending authorization", "error", clearErr)
	}

	if err != nil {
		g.logger.Error("token exchange failed", "error", err)
		g.transition(ctx, Unauthenticated, err.Error())
		return Outcome{State: Unauthenticated, Err: err}
	}

	tok.ObtainedAt = g.now().Unix()
	if err := g.adopt(ctx, tok, "code exchanged"); err != nil {
		return g.fail(ctx, err)
	}
	return Outcome{State: Authenticated, Token: tok.clone()}
}

func (g *Guard) consumeToken(ctx context.Context, cb CallbackResult) Outcome {
	g.transition(ctx, AwaitingCallback, "access token received")

	_, state, err := g.store.Pending(ctx)
	if err != nil {
		return g.fail(ctx, err)
	}
	if state == "" {
		return g.abandon(ctx, shared.ErrStateMismatch)
	}
	if cb.State != state {
		return g.reject(ctx, shared.ErrStateMismatch)
	}
	if err := g.store.ClearPending(ctx); err != nil {
		g.logger.Warn("failed to clear pending authorization", "error", err)
	}

	tokenType := cb.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	tok := &Token{
		Value:      cb.AccessToken,
		TokenType:  tokenType,
		ObtainedAt: g.now().Unix(),
		ExpiresIn:  cb.ExpiresIn,
		Scope:      cb.Scope,
	}
	if err := g.adopt(ctx, tok, "implicit token accepted"); err != nil {
		return g.fail(ctx, err)
	}
	return Outcome{State: Authenticated, Token: tok.clone()}
}

// redirect claims the redirected flag first so a losing writer never overwrites the winner's verifier.
func (g *Guard) redirect(ctx context.Context) Outcome {
	proof, err := NewProof(g.random)
	if err != nil {
		g.logger.Error("cannot generate proof material", "error", err)
		g.transition(ctx, Unauthenticated, err.Error())
		return Outcome{State: Unauthenticated, Err: err}
	}

	claimed, err := g.store.ClaimRedirect(ctx)
	if err != nil {
		return g.fail(ctx, err)
	}
	if !claimed {
		g.transition(ctx, Unauthenticated, "redirect claimed by another client")
		return Outcome{State: Unauthenticated}
	}

	if err := g.store.SavePending(ctx, proof.Verifier, proof.State); err != nil {
		if clearErr := g.store.ClearRedirect(ctx); clearErr != nil {
			g.logger.Warn("failed to release redirect flag", "error", clearErr)
		}
		return g.fail(ctx, err)
	}

	target := g.provider.AuthorizationURL(proof.State, proof.Challenge)
	g.transition(ctx, Redirecting, "")
	g.transition(ctx, AwaitingCallback, "")
	return Outcome{State: Redirecting, RedirectURL: target}
}

// adopt persists tok, re-arms the redirect and publishes. Callers hold g.mu.
func (g *Guard) adopt(ctx context.Context, tok *Token, detail string) error {
	if err := g.store.Save(ctx, tok); err != nil {
		return err
	}
	if err := g.store.ClearRedirect(ctx); err != nil {
		g.logger.Warn("failed to clear redirect flag", "error", err)
	}
	g.publish(tok.clone())
	g.transition(ctx, Authenticated, detail)
	return nil
}

func (g *Guard) setToken(ctx context.Context, tok *Token) error {
	g.lock()
	defer g.unlock()

	if tok == nil {
		if err := g.store.Clear(ctx); err != nil {
			return err
		}
		g.publish(nil)
		g.transition(ctx, Unauthenticated, "token cleared")
		return nil
	}
	if tok.ObtainedAt == 0 {
		tok.ObtainedAt = g.now().Unix()
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = DefaultExpiresIn
	}
	return g.adopt(ctx, tok, "token set")
}

func (g *Guard) expire(ctx context.Context, detail string) error {
	if err := g.store.Clear(ctx); err != nil {
		return err
	}
	g.publish(nil)
	g.transition(ctx, Expired, detail)
	return nil
}

// abandon drops the pending attempt without contacting the provider.
func (g *Guard) abandon(ctx context.Context, cause error) Outcome {
	if err := g.store.ClearPending(ctx); err != nil {
		g.logger.Warn("failed to clear pending authorization", "error", err)
	}
	g.logger.Warn("authorization callback abandoned", "error", cause)
	g.transition(ctx, Unauthenticated, cause.Error())
	return Outcome{State: Unauthenticated, Err: cause}
}

// reject refuses a callback that does not belong to the pending attempt and leaves that attempt intact,
// so the genuine callback can still complete it.
func (g *Guard) reject(ctx context.Context, cause error) Outcome {
	g.logger.Warn("authorization callback rejected", "error", cause)
	g.transition(ctx, Unauthenticated, cause.Error())
	return Outcome{State: Unauthenticated, Err: cause}
}

func (g *Guard) fail(ctx context.Context, err error) Outcome {
	if !errors.Is(err, shared.ErrStorage) {
		err = errors.Join(shared.ErrStorage, err)
	}
	g.logger.Error("client storage failure", "error", err)
	g.transition(ctx, Unauthenticated, err.Error())
	return Outcome{State: Unauthenticated, Err: err}
}

func (g *Guard) transition(ctx context.Context, to State, detail string) {
	from := g.state
	if from == to {
		return
	}
	g.state = to
	g.logger.Debug("auth transition", "from", from, "to", to, "detail", detail)

	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordTransition(ctx, from.String(), to.String(), detail); err != nil {
		g.logger.Warn("failed to record auth transition", "error", err)
	}
}
