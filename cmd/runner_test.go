package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/auth"
	"github.com/desertthunder/spotipro/internal/repositories"
	"github.com/desertthunder/spotipro/internal/shared"
	tu "github.com/desertthunder/spotipro/internal/testing"
)

const tokenResponse = `{"access_token":"T1","token_type":"Bearer","expires_in":3600,"scope":"user-top-read user-read-recently-played"}`

var apiBodies = map[string]string{
	"/v1/me":                        `{"id":"user-1","display_name":"Listener","followers":{"total":3}}`,
	"/v1/me/top/artists":            `{"items":[{"id":"a1","name":"Top Artist","genres":["indie"]}],"total":1}`,
	"/v1/me/top/tracks":             `{"items":[{"id":"t1","name":"Top Track","artists":[{"id":"a1","name":"Top Artist"}]}],"total":1}`,
	"/v1/me/player/recently-played": `{"items":[]}`,
	"/v1/me/playlists":              `{"items":[{"id":"p1","name":"Road Trip","tracks":{"total":42}}],"total":1}`,
	"/v1/playlists/p1/tracks":       `{"items":[{"track":{"id":"t9","name":"Highway Song","duration_ms":61000}}],"total":1}`,
}

// newResourceAPI serves apiBodies; currently-playing answers 204 and unknown paths 404.
func newResourceAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/me/player/currently-playing" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		body, ok := apiBodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"status":404,"message":"Not found."}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()
	return ln.Addr().String()
}

// fakeBrowser follows the authorization URL straight back to the redirect URI with a code.
type fakeBrowser struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (b *fakeBrowser) open(authURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.urls = append(b.urls, authURL)

	u, err := url.Parse(authURL)
	if err != nil {
		b.err = err
		return nil
	}
	q := u.Query()
	resp, err := http.Get(q.Get("redirect_uri") + "?code=ABC123&state=" + url.QueryEscape(q.Get("state")))
	if err != nil {
		b.err = err
		return nil
	}
	resp.Body.Close()
	return nil
}

type cliFixture struct {
	runner  *Runner
	out     *bytes.Buffer
	tokens  *tu.TokenServer
	browser *fakeBrowser
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{
		out:     &bytes.Buffer{},
		tokens:  tu.NewTokenServer(t, http.StatusOK, tokenResponse),
		browser: &fakeBrowser{},
	}
	api := newResourceAPI(t)

	config := shared.DefaultConfig()
	config.Spotify.ClientID = "client-123"
	config.Spotify.TokenURL = f.tokens.URL
	config.Spotify.APIURL = api.URL + "/v1"
	config.Spotify.RedirectURI = "http://" + freeAddr(t) + "/callback"
	config.Storage.Driver = "memory"

	f.runner = NewRunner(RunnerOpts{
		Config:       config,
		Logger:       log.New(io.Discard),
		Output:       f.out,
		Storage:      repositories.NewMemoryStorage(),
		OpenBrowser:  f.browser.open,
		LoginTimeout: 5 * time.Second,
	})
	return f
}

func (f *cliFixture) run(args ...string) error {
	f.out.Reset()
	app := newApp(f.runner)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	return app.Run(context.Background(), append([]string{"spotipro"}, args...))
}

func (f *cliFixture) login(t *testing.T) {
	t.Helper()
	if err := f.run("auth", "login"); err != nil {
		t.Fatalf("auth login error = %v", err)
	}
	if f.browser.err != nil {
		t.Fatalf("browser error = %v", f.browser.err)
	}
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			storage := repositories.NewMemoryStorage()

			runner := NewRunner(RunnerOpts{
				Config:       config,
				ConfigPath:   "/test/path/config.toml",
				Logger:       logger,
				Output:       output,
				HTTPClient:   httpClient,
				Storage:      storage,
				LoginTimeout: time.Second,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.storage != storage {
				t.Error("expected storage to be set")
			}
			if runner.loginTimeout != time.Second {
				t.Errorf("expected loginTimeout 1s, got %s", runner.loginTimeout)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.openBrowser == nil {
				t.Error("expected openBrowser to be set")
			}
			if runner.loginTimeout != defaultLoginTimeout {
				t.Errorf("expected default login timeout, got %s", runner.loginTimeout)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"n": 1}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "{\"n\":1}\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})

		t.Run("returns error for unmarshalable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected marshal error")
			}
		})

		t.Run("returns error on write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err == nil {
				t.Error("expected write error")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})
		if err := runner.writePlain("Hello %s\n", "World"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "Hello World\n" {
			t.Errorf("unexpected output %q", output.String())
		}

		runner = NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writePlain("test"); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("signInHint", func(t *testing.T) {
		for _, err := range []error{shared.ErrNotAuthenticated, shared.ErrTokenExpired, shared.ErrUnauthorized} {
			got := signInHint(err)
			if !errors.Is(got, err) || !strings.Contains(got.Error(), "spotipro auth login") {
				t.Errorf("signInHint(%v) = %v", err, got)
			}
		}
		if got := signInHint(shared.ErrAPIRequest); got != shared.ErrAPIRequest {
			t.Errorf("expected other errors unchanged, got %v", got)
		}
	})
}

func TestGlobalFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := shared.CreateConfigFile(path); err != nil {
		t.Fatalf("CreateConfigFile() error = %v", err)
	}

	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: &bytes.Buffer{}})
	app := newApp(runner)
	app.Writer = io.Discard
	app.ErrWriter = io.Discard

	err := app.Run(context.Background(), []string{"spotipro", "--config", path, "--ephemeral", "--verbose", "auth", "status"})
	if !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected placeholder client id to be rejected, got %v", err)
	}
	if runner.configPath != path {
		t.Errorf("expected config path %s, got %s", path, runner.configPath)
	}
	if runner.config.Storage.Driver != "memory" {
		t.Errorf("expected --ephemeral to select memory storage, got %s", runner.config.Storage.Driver)
	}
	if runner.logger.GetLevel() != log.DebugLevel {
		t.Errorf("expected --verbose to enable debug, got %v", runner.logger.GetLevel())
	}
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Logger: log.New(io.Discard), Output: out})
	app := newApp(runner)
	app.Writer = io.Discard

	if err := app.Run(context.Background(), []string{"spotipro", "setup"}); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	tu.AssertFileExists(t, filepath.Join(dir, "config.toml"))
	tu.AssertFileExists(t, filepath.Join(dir, "spotipro.db"))
	for _, want := range []string{"Created config.toml", "Set spotify.client_id", "Database ready"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output, got %s", want, out.String())
		}
	}
}

func TestAuthCommands(t *testing.T) {
	t.Run("login exchanges the code", func(t *testing.T) {
		f := newCLIFixture(t)
		f.login(t)

		if !strings.Contains(f.out.String(), "Authorization successful") {
			t.Errorf("unexpected output %s", f.out.String())
		}
		form := f.tokens.LastForm()
		if form.Get("code") != "ABC123" || form.Get("code_verifier") == "" {
			t.Errorf("unexpected exchange form %v", form)
		}
		if len(f.browser.urls) != 1 || !strings.Contains(f.browser.urls[0], "code_challenge_method=S256") {
			t.Errorf("unexpected authorization urls %v", f.browser.urls)
		}
	})

	t.Run("login without browser", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.openBrowser = func(string) error {
			t.Error("browser should not open")
			return nil
		}

		err := f.run("auth", "login", "--no-browser", "--timeout", "50ms")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
		if !strings.Contains(f.out.String(), "accounts.spotify.com/authorize") {
			t.Errorf("expected authorization url in output, got %s", f.out.String())
		}
	})

	t.Run("login times out", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.loginTimeout = 50 * time.Millisecond
		f.runner.openBrowser = func(string) error { return nil }

		if err := f.run("auth", "login"); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("login reports a failed exchange", func(t *testing.T) {
		f := newCLIFixture(t)
		f.tokens.Respond(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)

		err := f.run("auth", "login")
		if !errors.Is(err, shared.ErrTokenExchange) || !strings.Contains(err.Error(), "invalid_grant") {
			t.Errorf("expected invalid_grant exchange error, got %v", err)
		}
		if f.tokens.Requests() != 1 {
			t.Errorf("expected one token request, got %d", f.tokens.Requests())
		}
	})

	t.Run("browser failure prints the url", func(t *testing.T) {
		f := newCLIFixture(t)
		f.runner.loginTimeout = 50 * time.Millisecond
		f.runner.openBrowser = func(string) error { return errors.New("no display") }

		f.run("auth", "login")
		if !strings.Contains(f.out.String(), "Could not open browser") {
			t.Errorf("expected fallback message, got %s", f.out.String())
		}
	})

	t.Run("status and logout", func(t *testing.T) {
		f := newCLIFixture(t)
		f.login(t)

		if err := f.run("auth", "status"); err != nil {
			t.Fatalf("auth status error = %v", err)
		}
		if !strings.Contains(f.out.String(), "✓ Authenticated") || !strings.Contains(f.out.String(), "user-top-read") {
			t.Errorf("unexpected status output %s", f.out.String())
		}

		if err := f.run("auth", "status", "--json"); err != nil {
			t.Fatalf("auth status --json error = %v", err)
		}
		var report sessionReport
		if err := json.Unmarshal(f.out.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON %s: %v", f.out.String(), err)
		}
		if report.State != "authenticated" || report.ExpiresAt == nil {
			t.Errorf("unexpected report %+v", report)
		}

		if err := f.run("auth", "status", "--history", "5"); err != nil {
			t.Fatalf("auth status --history error = %v", err)
		}
		if !strings.Contains(f.out.String(), "only kept with sqlite") {
			t.Errorf("expected history notice for memory storage, got %s", f.out.String())
		}

		if err := f.run("auth", "logout"); err != nil {
			t.Fatalf("auth logout error = %v", err)
		}
		if err := f.run("auth", "status"); err != nil {
			t.Fatalf("auth status error = %v", err)
		}
		if !strings.Contains(f.out.String(), "Not authenticated") {
			t.Errorf("expected signed out status, got %s", f.out.String())
		}

		err := f.run("me")
		if !errors.Is(err, shared.ErrNotAuthenticated) || !strings.Contains(err.Error(), "auth login") {
			t.Errorf("expected ErrNotAuthenticated with hint, got %v", err)
		}
	})

	t.Run("callback", func(t *testing.T) {
		f := newCLIFixture(t)

		if err := f.run("auth", "callback"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if err := f.run("auth", "callback", "http://127.0.0.1/callback"); !errors.Is(err, shared.ErrCallbackParse) {
			t.Errorf("expected ErrCallbackParse, got %v", err)
		}
		if err := f.run("auth", "callback", "http://127.0.0.1/callback?code=X&state=forged"); !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}
		if f.tokens.Requests() != 0 {
			t.Errorf("expected no token requests, got %d", f.tokens.Requests())
		}
	})

	t.Run("callback keeps an encoded fragment token intact", func(t *testing.T) {
		f := newCLIFixture(t)
		ctx := context.Background()
		if err := f.runner.storage.Set(ctx, auth.KeyAuthState, "s"); err != nil {
			t.Fatal(err)
		}

		if err := f.run("auth", "callback", "http://127.0.0.1/callback#access_token=BQ%2Bx%26y&state=s"); err != nil {
			t.Fatalf("auth callback error = %v", err)
		}

		tok, err := auth.NewTokenStore(f.runner.storage).Load(ctx)
		if err != nil || tok == nil {
			t.Fatalf("Load() = %+v, %v", tok, err)
		}
		if tok.Value != "BQ+x&y" {
			t.Errorf("expected token BQ+x&y, got %q", tok.Value)
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	f := newCLIFixture(t)
	f.login(t)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"me", []string{"me"}, []string{"Profile", "Name: Listener", "Followers: 3"}},
		{"now playing", []string{"now-playing"}, []string{"Nothing playing."}},
		{"top artists", []string{"top", "artists"}, []string{"Top Artists", "1. Top Artist - indie"}},
		{"top tracks markdown", []string{"top", "tracks", "--format", "md"}, []string{"# Top Tracks", "| 1 | Top Track | Top Artist |"}},
		{"recent", []string{"recent"}, []string{"Nothing played recently."}},
		{"playlists csv", []string{"playlists", "--format", "csv"}, []string{"ID,Name,Owner,Tracks,Visibility", "p1,Road Trip,,42,Private"}},
		{"playlist tracks", []string{"playlist", "tracks", "p1"}, []string{"1. Highway Song - 1:01"}},
		{"dashboard sections", []string{"dashboard", "--sections", "profile,playlists"}, []string{"Name: Listener", "Road Trip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.run(tt.args...); err != nil {
				t.Fatalf("%v error = %v", tt.args, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(f.out.String(), want) {
					t.Errorf("expected %q in output:\n%s", want, f.out.String())
				}
			}
		})
	}

	t.Run("dashboard omits unselected sections", func(t *testing.T) {
		if err := f.run("dashboard", "--sections", "profile"); err != nil {
			t.Fatalf("dashboard error = %v", err)
		}
		if strings.Contains(f.out.String(), "Top Artists") {
			t.Errorf("expected only the profile, got %s", f.out.String())
		}
	})

	t.Run("json output to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "me.json")
		if err := f.run("me", "--format", "json", "--output", path); err != nil {
			t.Fatalf("me error = %v", err)
		}
		if !strings.Contains(f.out.String(), "Saved to") {
			t.Errorf("expected save notice, got %s", f.out.String())
		}
		if got := tu.MustReadFile(t, path); !strings.Contains(got, `"display_name": "Listener"`) {
			t.Errorf("unexpected file content %s", got)
		}
	})

	t.Run("invalid arguments", func(t *testing.T) {
		cases := [][]string{
			{"top", "artists", "--page", "2"},
			{"top", "artists", "--page", "0"},
			{"top", "tracks", "--time-range", "forever"},
			{"me", "--format", "yaml"},
			{"dashboard", "--sections", "lyrics"},
		}
		for _, args := range cases {
			if err := f.run(args...); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("%v: expected ErrInvalidArgument, got %v", args, err)
			}
		}
	})

	t.Run("missing playlist", func(t *testing.T) {
		if err := f.run("playlist", "tracks", "nope"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if err := f.run("playlist", "tracks"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
