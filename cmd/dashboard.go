package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/spotipro/internal/formatter"
	"github.com/desertthunder/spotipro/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Dashboard loads the selected sections concurrently and prints each one.
//
// Section failures are printed in place of the section; only a rejected or missing session fails the command.
func (r *Runner) Dashboard(ctx context.Context, cmd *cli.Command) error {
	opts := tasks.LoaderOpts{TimeRange: cmd.String("time-range")}
	for _, value := range cmd.StringSlice("sections") {
		for _, name := range strings.Split(value, ",") {
			s, err := tasks.ParseSection(name)
			if err != nil {
				return err
			}
			opts.Sections = append(opts.Sections, s)
		}
	}

	if err := r.prepare(ctx); err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, len(tasks.AllSections)*2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if update.Err != nil {
				r.logger.Warn(update.Message, "section", update.Phase, "error", update.Err)
				continue
			}
			r.logger.Debug(update.Message, "section", update.Phase)
		}
	}()

	dash, err := r.loader(opts).Load(ctx, progress)
	close(progress)
	<-done
	if err != nil {
		return signInHint(err)
	}

	sections := opts.Sections
	if len(sections) == 0 {
		sections = tasks.AllSections
	}
	return r.emit(cmd, func(w io.Writer, f formatter.Format) error {
		for i, s := range sections {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := drawSection(w, f, dash, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func drawSection(w io.Writer, f formatter.Format, dash *tasks.Dashboard, s tasks.Section) error {
	if err, failed := dash.Errors[s]; failed {
		_, werr := fmt.Fprintf(w, "%s\n\n✗ %v\n", s.Title(), err)
		return werr
	}

	switch s {
	case tasks.FetchProfile:
		if dash.Profile == nil {
			return nil
		}
		return formatter.Profile(w, f, dash.Profile)
	case tasks.FetchNowPlaying:
		return formatter.NowPlaying(w, f, dash.NowPlaying)
	case tasks.FetchTopArtists:
		items, _ := formatter.Paginate(dash.TopArtists, 0, formatter.ArtistsPerPage)
		return formatter.Artists(w, f, s.Title(), items, 0)
	case tasks.FetchTopTracks:
		items, _ := formatter.Paginate(dash.TopTracks, 0, formatter.TracksPerPage)
		return formatter.Tracks(w, f, s.Title(), items, 0)
	case tasks.FetchRecent:
		items, _ := formatter.Paginate(dash.Recent, 0, formatter.RecentPerPage)
		return formatter.Recent(w, f, items, 0)
	case tasks.FetchPlaylists:
		return formatter.Playlists(w, f, dash.Playlists, 0)
	default:
		return nil
	}
}
