package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/desertthunder/spotipro/internal/shared"
	"golang.org/x/oauth2"
)

const (
	verifierBytes = 32
	stateBytes    = 16

	MinVerifierLength = 43
	MaxVerifierLength = 128
)

// Proof is one authorization attempt's PKCE material and CSRF state.
type Proof struct {
	Verifier  string
	Challenge string
	State     string
}

// NewProof generates a verifier, derives its challenge and generates a state token from r.
func NewProof(r io.Reader) (Proof, error) {
	verifier, err := GenerateVerifierFrom(r)
	if err != nil {
		return Proof{}, err
	}
	state, err := GenerateStateFrom(r)
	if err != nil {
		return Proof{}, err
	}
	return Proof{Verifier: verifier, Challenge: DeriveChallenge(verifier), State: state}, nil
}

// GenerateVerifier returns a 43 character code verifier from crypto/rand.
func GenerateVerifier() (string, error) {
	return GenerateVerifierFrom(rand.Reader)
}

// GenerateVerifierFrom is [GenerateVerifier] with an explicit source.
func GenerateVerifierFrom(r io.Reader) (string, error) {
	return randomString(r, verifierBytes)
}

// GenerateState returns an unguessable state token from crypto/rand.
func GenerateState() (string, error) {
	return GenerateStateFrom(rand.Reader)
}

// GenerateStateFrom is [GenerateState] with an explicit source.
func GenerateStateFrom(r io.Reader) (string, error) {
	return randomString(r, stateBytes)
}

// DeriveChallenge returns BASE64URL-NOPAD(SHA256(verifier)).
func DeriveChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// ValidVerifier reports whether v has a legal length and only unreserved characters.
func ValidVerifier(v string) bool {
	if len(v) < MinVerifierLength || len(v) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(v); i++ {
		if !unreserved(v[i]) {
			return false
		}
	}
	return true
}

func unreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}

func randomString(r io.Reader, n int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRandomSourceUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
