// Package tasks loads the listening dashboard concurrently with real-time progress reporting.
//
// # Dashboard Loading
//
// [DashboardLoader.Load] fetches every [Section] of the dashboard through a bounded worker pool:
//   - profile, now playing, top artists, top tracks, recently played, playlists
//   - requests are paced by a golang.org/x/time/rate limiter
//   - a failing section is recorded on the [Dashboard] and the rest still load
//   - a rejected token aborts the whole load with [shared.ErrUnauthorized]
//
// # Session Binding
//
// The load runs under a context bound to the auth session, so a token change (logout, expiry,
// re-login) cancels in-flight requests and the stale result is discarded with [ErrStaleSession].
//
// # Progress Reporting
//
// Progress updates use non-blocking channel sends.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
