// package models defines the data model for the listening dashboard
package models

import (
	"strings"
	"time"
)

// Image is an artwork or avatar reference.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Profile is the signed-in user's public profile.
type Profile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email,omitempty"`
	Country     string  `json:"country,omitempty"`
	Product     string  `json:"product,omitempty"`
	Followers   int     `json:"followers"`
	Images      []Image `json:"images,omitempty"`
}

// Name returns the display name, falling back to the user id.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// Artist is an artist summary.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
	Images     []Image  `json:"images,omitempty"`
}

// Track is a track summary.
type Track struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Artists    []string      `json:"artists"`
	ArtistIDs  []string      `json:"artist_ids,omitempty"`
	Album      string        `json:"album"`
	AlbumArt   string        `json:"album_art,omitempty"`
	Duration   time.Duration `json:"duration"`
	Popularity int           `json:"popularity"`
	Explicit   bool          `json:"explicit"`
	URI        string        `json:"uri,omitempty"`
}

// ArtistNames joins the track's artists for display.
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// PlayedTrack is a recently played entry.
type PlayedTrack struct {
	Track    Track     `json:"track"`
	PlayedAt time.Time `json:"played_at"`
}

// NowPlaying is the current playback item.
type NowPlaying struct {
	Track     Track         `json:"track"`
	Genres    []string      `json:"genres,omitempty"`
	IsPlaying bool          `json:"is_playing"`
	Progress  time.Duration `json:"progress"`
}

// Playlist is playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	Image       string `json:"image,omitempty"`
}

// Page is one fetched slice of a paged collection.
type Page[T any] struct {
	Items []T    `json:"items"`
	Total int    `json:"total"`
	Next  string `json:"next,omitempty"`
}

// HasNext reports whether the provider offered another page.
func (p Page[T]) HasNext() bool {
	return p.Next != ""
}

// AuthEvent is one recorded lifecycle transition.
type AuthEvent struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
