package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotipro/internal/auth"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/desertthunder/spotipro/internal/tasks"
	"github.com/desertthunder/spotipro/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	path := r.config.Log.File
	if path == "" {
		path = "./tmp/spotipro-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	if err := r.prepare(ctx); err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.loader(tasks.LoaderOpts{}), r.spotify)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := r.guard.Session().Subscribe(func(tok *auth.Token) {
		p.Send(ui.SessionChanged(tok != nil))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
