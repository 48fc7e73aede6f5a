package auth

import (
	"strings"
	"time"
)

// DefaultExpiresIn is assumed when the provider omits expires_in.
const DefaultExpiresIn int64 = 3600

// Token is the persisted access token record.
//
// ObtainedAt and ExpiresIn are seconds; the token is expired once now >= ObtainedAt + ExpiresIn.
type Token struct {
	Value      string `json:"value"`
	TokenType  string `json:"token_type"`
	ObtainedAt int64  `json:"obtained_at"`
	ExpiresIn  int64  `json:"expires_in"`
	Scope      string `json:"scope,omitempty"`
}

// ExpiresAt returns the instant the token stops being usable.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.ObtainedAt+t.ExpiresIn, 0)
}

// Expired reports whether the token is unusable at now. A nil token is expired.
func (t *Token) Expired(now time.Time) bool {
	if t == nil || t.Value == "" {
		return true
	}
	return now.Unix() >= t.ObtainedAt+t.ExpiresIn
}

// Remaining returns the time left before expiry, never negative.
func (t *Token) Remaining(now time.Time) time.Duration {
	if t.Expired(now) {
		return 0
	}
	return t.ExpiresAt().Sub(now)
}

// Scopes splits the granted scope string.
func (t *Token) Scopes() []string {
	return strings.Fields(t.Scope)
}

// Redacted returns a short, log-safe form of the bearer value.
func (t *Token) Redacted() string {
	if t == nil || t.Value == "" {
		return ""
	}
	if len(t.Value) <= 8 {
		return "****"
	}
	return t.Value[:4] + "…" + t.Value[len(t.Value)-4:]
}

func (t *Token) clone() *Token {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sameToken(a, b *Token) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
