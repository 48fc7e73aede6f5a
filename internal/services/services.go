// package services defines interface Service for reading listening data
package services

import (
	"context"

	"github.com/desertthunder/spotipro/internal/models"
)

// Spotify top-items time ranges.
const (
	ShortTerm  = "short_term"
	MediumTerm = "medium_term"
	LongTerm   = "long_term"
)

// TokenSource supplies the bearer for each request and is told when the API rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// PageOptions selects one page of a collection. Zero values use the endpoint defaults.
type PageOptions struct {
	Limit     int
	Offset    int
	TimeRange string
}

// Service defines the listening data the client displays.
type Service interface {
	// Profile returns the signed-in user.
	Profile(ctx context.Context) (*models.Profile, error)

	// NowPlaying returns the current playback item, or nil when nothing is playing.
	NowPlaying(ctx context.Context) (*models.NowPlaying, error)

	// Artist returns one artist by ID.
	Artist(ctx context.Context, artistID string) (*models.Artist, error)

	// TopArtists returns the user's top artists.
	TopArtists(ctx context.Context, opts PageOptions) (*models.Page[models.Artist], error)

	// TopTracks returns the user's top tracks.
	TopTracks(ctx context.Context, opts PageOptions) (*models.Page[models.Track], error)

	// RecentlyPlayed returns the user's recently played tracks, newest first.
	RecentlyPlayed(ctx context.Context, limit int) (*models.Page[models.PlayedTrack], error)

	// Playlists returns one page of the user's playlists.
	Playlists(ctx context.Context, opts PageOptions) (*models.Page[models.Playlist], error)

	// PlaylistTracks returns one page of a playlist's tracks.
	PlaylistTracks(ctx context.Context, playlistID string, opts PageOptions) (*models.Page[models.Track], error)

	// Name returns the name of the service
	Name() string
}
