package auth

import (
	"context"
	"testing"
	"time"
)

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		if tok, ok := NewSession().Token(); ok || tok != nil {
			t.Errorf("expected no token, got %+v", tok)
		}
	})

	t.Run("SetToken without guard publishes", func(t *testing.T) {
		s := NewSession()
		if err := s.SetToken(ctx, &Token{Value: "T1"}); err != nil {
			t.Fatalf("SetToken() error = %v", err)
		}
		tok, ok := s.Token()
		if !ok || tok.Value != "T1" {
			t.Errorf("expected T1, got %+v", tok)
		}
	})

	t.Run("Token returns a copy", func(t *testing.T) {
		s := NewSession()
		s.publish(&Token{Value: "T1"})
		tok, _ := s.Token()
		tok.Value = "mutated"
		if again, _ := s.Token(); again.Value != "T1" {
			t.Error("callers must not be able to mutate the session token")
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		s := NewSession()
		var got []string
		cancel := s.Subscribe(func(tok *Token) {
			if tok == nil {
				got = append(got, "<nil>")
				return
			}
			got = append(got, tok.Value)
		})

		s.publish(&Token{Value: "T1"})
		s.publish(&Token{Value: "T1"})
		s.publish(nil)
		cancel()
		cancel()
		s.publish(&Token{Value: "T2"})

		if len(got) != 2 || got[0] != "T1" || got[1] != "<nil>" {
			t.Errorf("unexpected notifications %v", got)
		}
	})

	t.Run("Bind cancels on token change", func(t *testing.T) {
		s := NewSession()
		s.publish(&Token{Value: "T1"})

		bound, cancel := s.Bind(ctx)
		defer cancel()

		s.publish(&Token{Value: "T1"})
		select {
		case <-bound.Done():
			t.Fatal("republishing the same token must not cancel bound work")
		default:
		}

		s.publish(&Token{Value: "T2"})
		select {
		case <-bound.Done():
		case <-time.After(time.Second):
			t.Fatal("bound context should be cancelled when the token changes")
		}

		fresh, cancelFresh := s.Bind(ctx)
		defer cancelFresh()
		if fresh.Err() != nil {
			t.Error("contexts bound after the change should be live")
		}
	})

	t.Run("Bind follows parent", func(t *testing.T) {
		s := NewSession()
		parent, cancelParent := context.WithCancel(ctx)
		bound, cancel := s.Bind(parent)
		defer cancel()

		cancelParent()
		<-bound.Done()
	})
}

func TestToken(t *testing.T) {
	tok := &Token{Value: "abcdefghijkl", ObtainedAt: 0, ExpiresIn: 3600, Scope: "a b"}

	if tok.Expired(time.Unix(3599, 0)) {
		t.Error("token should be valid one second before expiry")
	}
	if !tok.Expired(time.Unix(3600, 0)) {
		t.Error("token should be expired at obtained_at + expires_in")
	}
	if !tok.Expired(time.Unix(4000, 0)) {
		t.Error("token should be expired at t=4000")
	}
	if got := tok.Remaining(time.Unix(3000, 0)); got != 600*time.Second {
		t.Errorf("Remaining() = %v", got)
	}
	if got := tok.Remaining(time.Unix(5000, 0)); got != 0 {
		t.Errorf("Remaining() after expiry = %v", got)
	}
	if got := tok.Scopes(); len(got) != 2 {
		t.Errorf("Scopes() = %v", got)
	}
	if got := tok.Redacted(); got != "abcd…ijkl" {
		t.Errorf("Redacted() = %s", got)
	}

	var nilTok *Token
	if !nilTok.Expired(time.Unix(0, 0)) {
		t.Error("nil token is expired")
	}
	if (&Token{Value: "short"}).Redacted() != "****" {
		t.Error("short tokens should be fully masked")
	}
}
