// Package web renders the HTML pages of the local web client.
//
// # Pages
//
// Two pages exist, both rendered from embedded [html/template] files:
//
//   - login.html: the "Login to Spotify" action, with the reason the last attempt failed when there was one
//   - dashboard.html: the signed-in view built from a [tasks.Dashboard]
//
// The page decision belongs to the auth guard; this package only turns its outcome into markup.
//
// # Templates
//
//   - layout.html: shared document shell and styles
//   - login.html: signed-out view
//   - dashboard.html: profile, now playing, top items, recently played and playlists
//
// Section failures are listed on the dashboard page rather than failing the whole render.
package web
