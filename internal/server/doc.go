// Package server provides HTTP routing, middleware, and the handlers of the local web client.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Page Loads
//
// Every page load hands its query string to the auth guard, which decides what happens:
//
//	GET  /           → redirect to Spotify, "Login to Spotify", or the dashboard
//	GET  /callback   → finish the authorization, then back to /
//	GET  /login      → fresh authorization attempt
//	POST /logout     → clear client storage
//
// The callback path follows the configured redirect URI.
//
// # JSON API
//
// Routes under /api proxy the resource API and answer 401 while signed out:
//
//	GET /api/session
//	GET /api/me
//	GET /api/now-playing
//	GET /api/top/artists
//	GET /api/top/tracks
//	GET /api/recent
//	GET /api/playlists
//	GET /api/playlists/{id}/tracks
//
// # CLI Login
//
// [CallbackWaiter] serves only the redirect URI. `auth login` starts a temporary server on the redirect URI's
// host and port, opens the browser, and shuts down after the first callback.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
