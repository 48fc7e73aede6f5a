package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes config.toml from the embedded template when missing and initializes the storage database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", path)
		if err := shared.CreateConfigFile(path); err != nil {
			return err
		}
		config, err := shared.ResolveConfig(path, ".env")
		if err != nil {
			return err
		}
		r.config = config
		r.writePlain("✓ Created %s\n", path)
	}

	if err := r.config.Validate(); err != nil {
		r.logger.Warn("configuration incomplete", "error", err)
		r.writePlain("⚠ Set spotify.client_id in %s (or SPOTIPRO_SPOTIFY_CLIENT_ID) before logging in\n", path)
	}

	if r.config.Storage.Driver == "memory" {
		return r.writePlain("✓ Using in-memory storage, nothing to initialize\n")
	}

	r.logger.Info("initializing database", "path", r.config.Storage.Path)
	db, err := shared.OpenStorageDatabase(r.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Storage.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Storage.Path)
}
