// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/spotipro/internal/formatter"
	"github.com/desertthunder/spotipro/internal/services"
	"github.com/urfave/cli/v3"
)

// newApp builds the root command around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotipro",
		Usage:   "Sign in to Spotify and browse your listening data",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep the session in memory instead of the storage database",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		After:    r.After,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, authCommand,
		meCommand, nowPlayingCommand, topCommand, recentCommand, playlistsCommand, playlistCommand,
		dashboardCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// outputFlags are shared by every command that prints listening data.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (" + strings.Join(formatter.Formats, ", ") + ")",
			Value:   string(formatter.Text),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to a file instead of stdout",
		},
	}
}

func pageFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "page",
		Aliases: []string{"p"},
		Usage:   "Page to show, starting at 1",
		Value:   1,
	}
}

func timeRangeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "time-range",
		Usage: "Affinity window (" + strings.Join([]string{services.ShortTerm, services.MediumTerm, services.LongTerm}, ", ") + ")",
		Value: services.MediumTerm,
	}
}

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the storage database",
		Action: r.Setup,
	}
}

// serveCommand runs the local web client.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the local web client on the redirect URI host",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override the configured listen host",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the configured listen port",
			},
		},
		Action: r.Serve,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Authorize with Spotify in the browser (PKCE)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL without opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: defaultLoginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Sign out and remove stored authorization records",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the current session",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "history",
						Usage: "Also list this many recent session transitions",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:  "callback",
				Usage: "Complete a login from a pasted redirect URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Action: r.AuthCallback,
			},
		},
	}
}

func meCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "me",
		Usage:  "Show your Spotify profile",
		Flags:  outputFlags(),
		Action: r.Me,
	}
}

func nowPlayingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "now-playing",
		Aliases: []string{"np"},
		Usage:   "Show the current track",
		Flags:   outputFlags(),
		Action:  r.NowPlaying,
	}
}

func topCommand(r *Runner) *cli.Command {
	flags := func() []cli.Flag {
		return append(outputFlags(), pageFlag(), timeRangeFlag())
	}
	return &cli.Command{
		Name:  "top",
		Usage: "Show your top artists or tracks",
		Commands: []*cli.Command{
			{
				Name:   "artists",
				Usage:  "Show your top artists",
				Flags:  flags(),
				Action: r.TopArtists,
			},
			{
				Name:   "tracks",
				Usage:  "Show your top tracks",
				Flags:  flags(),
				Action: r.TopTracks,
			},
		},
	}
}

func recentCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "recent",
		Usage:  "Show recently played tracks",
		Flags:  append(outputFlags(), pageFlag()),
		Action: r.Recent,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "playlists",
		Usage:  "List your playlists",
		Flags:  outputFlags(),
		Action: r.Playlists,
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "tracks",
				Usage: "List every track in a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  outputFlags(),
				Action: r.PlaylistTracks,
			},
		},
	}
}

func dashboardCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Load every dashboard section concurrently and print it",
		Flags: append(outputFlags(),
			timeRangeFlag(),
			&cli.StringSliceFlag{
				Name:  "sections",
				Usage: "Sections to load (profile, now_playing, top_artists, top_tracks, recently_played, playlists)",
			},
		),
		Action: r.Dashboard,
	}
}

// tuiCommand returns the top-level TUI command for the interactive dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive dashboard",
		Action:  r.TUI,
	}
}
