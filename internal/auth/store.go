package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/spotipro/internal/shared"
)

// Durable storage keys.
const (
	KeyCodeVerifier = "code_verifier"
	KeyAuthState    = "auth_state"
	KeyAccessToken  = "spotify_access_token"
	KeyRedirected   = "redirected"
)

var allKeys = []string{KeyCodeVerifier, KeyAuthState, KeyAccessToken, KeyRedirected}

// Storage is durable client key/value storage shared by every process using the same backend.
//
// SetIfAbsent must be atomic with respect to other writers and reports whether this call stored the value.
// Remove deletes all keys together.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)
	Remove(ctx context.Context, keys ...string) error
}

// TokenStore maps the authorization flow's records onto a [Storage].
type TokenStore struct {
	storage Storage
}

func NewTokenStore(s Storage) *TokenStore {
	return &TokenStore{storage: s}
}

// Load returns the stored token, or nil when there is none.
//
// A record that cannot be decoded is removed and treated as absent.
func (s *TokenStore) Load(ctx context.Context) (*Token, error) {
	raw, ok, err := s.storage.Get(ctx, KeyAccessToken)
	if err != nil || !ok {
		return nil, err
	}

	var tok Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil || tok.Value == "" {
		return nil, s.Clear(ctx)
	}
	return &tok, nil
}

// Save persists tok as the current token.
func (s *TokenStore) Save(ctx context.Context, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("%w: failed to encode token: %v", shared.ErrStorage, err)
	}
	return s.storage.Set(ctx, KeyAccessToken, string(data))
}

// Clear removes the stored token.
func (s *TokenStore) Clear(ctx context.Context) error {
	return s.storage.Remove(ctx, KeyAccessToken)
}

// SavePending stores the verifier and state of an outstanding authorization.
func (s *TokenStore) SavePending(ctx context.Context, verifier, state string) error {
	if err := s.storage.Set(ctx, KeyCodeVerifier, verifier); err != nil {
		return err
	}
	return s.storage.Set(ctx, KeyAuthState, state)
}

// Pending returns the outstanding verifier and state, empty when absent.
func (s *TokenStore) Pending(ctx context.Context) (verifier, state string, err error) {
	if verifier, _, err = s.storage.Get(ctx, KeyCodeVerifier); err != nil {
		return "", "", err
	}
	if state, _, err = s.storage.Get(ctx, KeyAuthState); err != nil {
		return "", "", err
	}
	return verifier, state, nil
}

// ClearPending removes the verifier and state.
func (s *TokenStore) ClearPending(ctx context.Context) error {
	return s.storage.Remove(ctx, KeyCodeVerifier, KeyAuthState)
}

// ClaimRedirect sets the redirected flag if no writer has, reporting whether this call won.
func (s *TokenStore) ClaimRedirect(ctx context.Context) (bool, error) {
	return s.storage.SetIfAbsent(ctx, KeyRedirected, "true")
}

// Redirected reports whether an automatic redirect already happened.
func (s *TokenStore) Redirected(ctx context.Context) (bool, error) {
	_, ok, err := s.storage.Get(ctx, KeyRedirected)
	return ok, err
}

// ClearRedirect re-arms the automatic redirect.
func (s *TokenStore) ClearRedirect(ctx context.Context) error {
	return s.storage.Remove(ctx, KeyRedirected)
}

// ClearAll removes every authorization record in one call.
func (s *TokenStore) ClearAll(ctx context.Context) error {
	return s.storage.Remove(ctx, allKeys...)
}
