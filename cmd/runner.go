package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/auth"
	"github.com/desertthunder/spotipro/internal/formatter"
	"github.com/desertthunder/spotipro/internal/repositories"
	"github.com/desertthunder/spotipro/internal/services"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/desertthunder/spotipro/internal/tasks"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The auth stack is built on first use so that commands like setup run without a valid config.
type Runner struct {
	config       *shared.Config
	configPath   string
	httpClient   *http.Client
	logger       *log.Logger
	output       io.Writer
	openBrowser  func(string) error
	loginTimeout time.Duration

	storage auth.Storage
	db      *sql.DB
	events  *repositories.AuthEventRepository
	guard   *auth.Guard
	spotify *services.SpotifyService
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	HTTPClient   *http.Client
	Logger       *log.Logger
	Output       io.Writer
	Storage      auth.Storage
	OpenBrowser  func(string) error
	LoginTimeout time.Duration
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		httpClient:   opts.HTTPClient,
		logger:       opts.Logger,
		output:       opts.Output,
		storage:      opts.Storage,
		openBrowser:  opts.OpenBrowser,
		loginTimeout: opts.LoginTimeout,
	}
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Before resolves configuration from the global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if r.config == nil {
		config, err := shared.ResolveConfig(r.configPath, ".env")
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if cmd.Bool("ephemeral") {
		r.config.Storage.Driver = "memory"
	}

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// After releases the storage database, if one was opened.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases the storage database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// prepare builds the storage, guard, and resource client on first use.
func (r *Runner) prepare(ctx context.Context) error {
	if r.guard != nil {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	if err := r.openStorage(); err != nil {
		return err
	}

	opts := []auth.GuardOption{auth.WithLogger(r.logger)}
	if r.events != nil {
		opts = append(opts, auth.WithRecorder(r.events))
	}

	provider := auth.NewProvider(r.config.Spotify, r.httpClient)
	r.guard = auth.NewGuard(provider, auth.NewTokenStore(r.storage), auth.NewSession(), opts...)
	r.spotify = services.NewSpotifyService(r.config.Spotify.APIURL, r.guard, r.httpClient, r.logger)

	r.logger.Debug("runner prepared", "storage", r.config.Storage.Driver, "api", r.config.Spotify.APIURL)
	return nil
}

func (r *Runner) openStorage() error {
	if r.storage != nil {
		return nil
	}

	if r.config.Storage.Driver == "memory" {
		r.logger.Warn("using in-memory storage; the session ends with this process")
		r.storage = repositories.NewMemoryStorage()
		return nil
	}

	db, err := shared.OpenStorageDatabase(r.config.Storage)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	r.db = db
	r.storage = repositories.NewSQLiteStorage(db)
	r.events = repositories.NewAuthEventRepository(db)
	return nil
}

// loader builds a dashboard loader bound to the guard's session.
func (r *Runner) loader(opts tasks.LoaderOpts) *tasks.DashboardLoader {
	if opts.Workers == 0 {
		opts.Workers = r.config.Dashboard.Workers
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = r.config.Dashboard.RateLimit
	}
	return tasks.NewDashboardLoader(r.spotify, r.guard.Session(), opts)
}

// signInHint adds the login command to errors that need a new session.
func signInHint(err error) error {
	if errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrUnauthorized) {
		return fmt.Errorf("%w (run `spotipro auth login`)", err)
	}
	return err
}

// emit renders with draw in the --format encoding, to --output when set.
func (r *Runner) emit(cmd *cli.Command, draw func(io.Writer, formatter.Format) error) error {
	f, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if path == "" {
		return draw(r.output, f)
	}

	if err := formatter.WriteFile(path, func(w io.Writer) error { return draw(w, f) }); err != nil {
		return err
	}
	r.logger.Info("output written", "path", path, "format", f)
	return r.writePlain("✓ Saved to %s\n", path)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	output = append(output, '\n')
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
