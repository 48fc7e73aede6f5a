package tasks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotipro/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Section // Section being loaded
	Step    int     // Sections finished so far
	Total   int     // Total sections in this load
	Message string  // Human-readable message for display
	Data    any     // Section payload once loaded
	Err     error   // Section failure, if any
}

// Section enumerates the dashboard sections.
type Section int

const (
	FetchProfile Section = iota
	FetchNowPlaying
	FetchTopArtists
	FetchTopTracks
	FetchRecent
	FetchPlaylists
)

// AllSections is the default load order.
var AllSections = []Section{FetchProfile, FetchNowPlaying, FetchTopArtists, FetchTopTracks, FetchRecent, FetchPlaylists}

func (s Section) String() string {
	switch s {
	case FetchProfile:
		return "profile"
	case FetchNowPlaying:
		return "now_playing"
	case FetchTopArtists:
		return "top_artists"
	case FetchTopTracks:
		return "top_tracks"
	case FetchRecent:
		return "recently_played"
	case FetchPlaylists:
		return "playlists"
	default:
		return ""
	}
}

// ParseSection maps a section name such as "top_tracks" to its [Section].
func ParseSection(name string) (Section, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllSections {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown section %q", shared.ErrInvalidArgument, name)
}

// Title is the display name of the section.
func (s Section) Title() string {
	switch s {
	case FetchProfile:
		return "Profile"
	case FetchNowPlaying:
		return "Now Playing"
	case FetchTopArtists:
		return "Top Artists"
	case FetchTopTracks:
		return "Top Tracks"
	case FetchRecent:
		return "Recently Played"
	case FetchPlaylists:
		return "Playlists"
	default:
		return "Unknown"
	}
}

func fetchingUpdate(s Section, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   s,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching %s...", s.Title()),
	}
}

func fetchedUpdate(s Section, step, total int, data any) ProgressUpdate {
	return ProgressUpdate{
		Phase:   s,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, s.Title()),
		Data:    data,
	}
}

func failedUpdate(s Section, step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   s,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, s.Title(), err),
		Err:     err,
	}
}
