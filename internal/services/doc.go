// Package services implements the Spotify Web API resource client.
//
// # Service Interface
//
// [Service] is the read-only listening data surface the CLI, the local web client and the TUI use.
// [SpotifyService] implements it against https://api.spotify.com/v1.
//
// # Authentication
//
// Requests carry a bearer obtained from a [TokenSource] on every call, so a token rotated by the
// authorization flow is picked up immediately. The service never authorizes on its own.
//
// A 401 response invalidates the token through [TokenSource.Invalidate] and returns
// [shared.ErrUnauthorized]; the next page load re-enters the authorization flow.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token available
//   - [shared.ErrTokenExpired] : token expired before the request
//   - [shared.ErrUnauthorized] : the API rejected the token
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrServiceUnavailable] : rate limited or server error
//   - [shared.ErrAPIRequest] : any other failure
//
// # API Mappings
//
// Spotify JSON responses are mapped to models DTOs:
//   - [SpotifyUser] → [models.Profile]
//   - [SpotifyTrack] → [models.Track]
//   - [SpotifyArtist] → [models.Artist]
//   - [SpotifySimplePlaylist] → [models.Playlist]
//
// Paged collections keep the provider's next cursor. The All* helpers follow it to the end.
package services
