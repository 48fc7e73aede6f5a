package auth

import (
	"context"
	"sync"
)

// Session holds the current token for one running application and notifies subscribers when it changes.
type Session struct {
	mu     sync.RWMutex
	token  *Token
	subs   map[int]func(*Token)
	nextID int

	gen    context.Context
	cancel context.CancelFunc

	sink func(context.Context, *Token) error
}

func NewSession() *Session {
	gen, cancel := context.WithCancel(context.Background())
	return &Session{subs: make(map[int]func(*Token)), gen: gen, cancel: cancel}
}

// Token returns a copy of the current token.
func (s *Session) Token() (*Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.clone(), s.token != nil
}

// SetToken stores tok durably and then publishes it. A nil token signs the session out.
//
// Without an attached [Guard] the token is only published.
func (s *Session) SetToken(ctx context.Context, tok *Token) error {
	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()

	if sink != nil {
		return sink(ctx, tok.clone())
	}
	s.publish(tok.clone())
	return nil
}

// Subscribe registers fn to be called after every token change. The returned func unregisters it.
func (s *Session) Subscribe(fn func(*Token)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
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

// Bind derives a context that is cancelled when ctx is done or the token changes.
func (s *Session) Bind(ctx context.Context) (context.Context, context.CancelFunc) {
	s.mu.RLock()
	gen := s.gen
	s.mu.RUnlock()

	child, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(gen, cancel)
	return child, func() {
		stop()
		cancel()
	}
}

func (s *Session) attach(sink func(context.Context, *Token) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// publish swaps tok in and notifies subscribers. Identical tokens are a no-op.
func (s *Session) publish(tok *Token) bool {
	notify, changed := s.swap(tok)
	notify()
	return changed
}

// swap installs tok and ends the previous generation. The returned notify delivers the change to the
// subscribers registered at swap time; callers run it without holding locks a subscriber may take.
func (s *Session) swap(tok *Token) (notify func(), changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sameToken(s.token, tok) {
		return func() {}, false
	}

	s.token = tok
	s.cancel()
	s.gen, s.cancel = context.WithCancel(context.Background())

	subs := make([]func(*Token), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return func() {
		for _, fn := range subs {
			fn(tok.clone())
		}
	}, true
}
