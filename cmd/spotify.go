package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/spotipro/internal/formatter"
	"github.com/desertthunder/spotipro/internal/services"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/urfave/cli/v3"
)

// Me prints the signed-in user's profile.
func (r *Runner) Me(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	profile, err := r.spotify.Profile(ctx)
	if err != nil {
		return signInHint(err)
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Profile(w, f, profile)
	})
}

// NowPlaying prints the current playback item.
func (r *Runner) NowPlaying(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	np, err := r.spotify.NowPlaying(ctx)
	if err != nil {
		return signInHint(err)
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.NowPlaying(w, f, np)
	})
}

// TopArtists prints one page of the user's top artists.
func (r *Runner) TopArtists(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	r.logger.Debug("fetching top artists", "time_range", cmd.String("time-range"))
	page, err := r.spotify.TopArtists(ctx, services.PageOptions{TimeRange: cmd.String("time-range")})
	if err != nil {
		return signInHint(err)
	}

	items, offset, err := pageOf(cmd, page.Items, formatter.ArtistsPerPage)
	if err != nil {
		return err
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Artists(w, f, "Top Artists", items, offset)
	})
}

// TopTracks prints one page of the user's top tracks.
func (r *Runner) TopTracks(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	r.logger.Debug("fetching top tracks", "time_range", cmd.String("time-range"))
	page, err := r.spotify.TopTracks(ctx, services.PageOptions{TimeRange: cmd.String("time-range")})
	if err != nil {
		return signInHint(err)
	}

	items, offset, err := pageOf(cmd, page.Items, formatter.TracksPerPage)
	if err != nil {
		return err
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Tracks(w, f, "Top Tracks", items, offset)
	})
}

// Recent prints one page of recently played tracks.
func (r *Runner) Recent(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	page, err := r.spotify.RecentlyPlayed(ctx, 0)
	if err != nil {
		return signInHint(err)
	}

	items, offset, err := pageOf(cmd, page.Items, formatter.RecentPerPage)
	if err != nil {
		return err
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Recent(w, f, items, offset)
	})
}

// Playlists prints the user's playlists, following every next cursor.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	playlists, err := r.spotify.AllPlaylists(ctx)
	if err != nil {
		return signInHint(err)
	}
	r.logger.Info("fetched playlists", "count", len(playlists))

	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Playlists(w, f, playlists, 0)
	})
}

// PlaylistTracks prints every track of one playlist.
func (r *Runner) PlaylistTracks(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.prepare(ctx); err != nil {
		return err
	}

	tracks, err := r.spotify.AllPlaylistTracks(ctx, id)
	if err != nil {
		return signInHint(err)
	}
	r.logger.Info("fetched playlist tracks", "playlist", id, "count", len(tracks))

	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		return formatter.Tracks(w, f, "Playlist Tracks", tracks, 0)
	})
}

// pageOf applies the 1-based --page flag to items.
func pageOf[T any](cmd *cli.Command, items []T, size int) ([]T, int, error) {
	page := cmd.Int("page")
	if page < 1 {
		return nil, 0, fmt.Errorf("%w: page must be 1 or greater", shared.ErrInvalidArgument)
	}

	selected, pages := formatter.Paginate(items, page-1, size)
	if pages > 0 && page > pages {
		return nil, 0, fmt.Errorf("%w: page %d of %d", shared.ErrInvalidArgument, page, pages)
	}
	return selected, (page - 1) * size, nil
}
