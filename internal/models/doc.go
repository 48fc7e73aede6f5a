// Package models defines the listening data the client displays and the records it keeps about itself.
//
// 1. Data Transfer Objects (DTOs): provider-neutral structs mapped from Spotify Web API responses
//   - [Profile] : the signed-in user
//   - [NowPlaying] : the current playback item, enriched with the first artist's genres
//   - [Artist], [Track], [Playlist], [PlayedTrack]
//   - [Page] : one fetched slice of a paged collection with its next cursor
//
// 2. Local records
//   - [AuthEvent] : one lifecycle transition from the auth_events table
package models
