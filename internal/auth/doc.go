// Package auth implements the Spotify Authorization Code flow with PKCE and the access-token lifecycle.
//
// # Proof Material
//
// [GenerateVerifier] and [GenerateState] draw from crypto/rand and fail closed with
// [shared.ErrRandomSourceUnavailable]. [DeriveChallenge] is the S256 transform.
//
// # Lifecycle Guard
//
// [Guard] is the state machine every entry point drives. A page load (or CLI invocation) calls
// [Guard.Evaluate] with the current [Location]:
//
//   - a stored, unexpired token is reused without any network call
//   - an expired token is cleared and reported as [Expired]
//   - a callback code is checked against the stored state, then exchanged exactly once
//   - with nothing to consume, at most one automatic redirect happens per redirected flag lifetime
//
// The flag is cleared by a successful exchange, by [Guard.Login] and by [Guard.Logout].
//
// # Durable Storage
//
// [Storage] is a narrow key/value contract. [TokenStore] owns the four keys the flow uses:
//   - code_verifier
//   - auth_state
//   - spotify_access_token
//   - redirected
//
// # Session
//
// [Session] is the in-process view of the current token. Consumers read it synchronously,
// subscribe to changes, and bind request contexts to it so work started under one token is
// cancelled when the token changes.
package auth
