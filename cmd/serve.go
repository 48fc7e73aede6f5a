package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotipro/internal/server"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/desertthunder/spotipro/internal/tasks"
	"github.com/desertthunder/spotipro/internal/web"
	"github.com/urfave/cli/v3"
)

// Serve runs the local web client until the context is cancelled.
//
// The listen address should match the redirect URI host so Spotify returns to this server.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}

	if addr, err := server.CallbackAddr(r.config.Spotify.RedirectURI); err == nil && addr != cfg.Addr() {
		r.logger.Warn("listen address differs from the redirect URI host", "listen", cfg.Addr(), "redirect", addr)
	}

	pages, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	app := server.NewApp(server.AppOpts{
		Guard:        r.guard,
		Service:      r.spotify,
		Loader:       r.loader(tasks.LoaderOpts{}),
		Pages:        pages,
		CallbackPath: server.CallbackPath(r.config.Spotify.RedirectURI),
		Logger:       shared.WithLogger(r.logger, "component", "server"),
	})

	srv := server.NewServer(cfg.Addr(), app.Handler(), r.logger)
	r.writePlain("→ Serving on http://%s/ (Ctrl+C to stop)\n", cfg.Addr())
	return srv.Run(ctx)
}
