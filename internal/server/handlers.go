package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/auth"
	"github.com/desertthunder/spotipro/internal/services"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/desertthunder/spotipro/internal/tasks"
	"github.com/desertthunder/spotipro/internal/web"
)

// AppOpts contains the dependencies of the web client.
type AppOpts struct {
	Guard        *auth.Guard
	Service      services.Service
	Loader       *tasks.DashboardLoader
	Pages        *web.Renderer
	CallbackPath string
	Logger       *log.Logger
}

// App serves the dashboard pages and the JSON API.
type App struct {
	guard    *auth.Guard
	service  services.Service
	loader   *tasks.DashboardLoader
	pages    *web.Renderer
	callback string
	logger   *log.Logger
}

// NewApp creates the web client.
func NewApp(opts AppOpts) *App {
	callback := opts.CallbackPath
	if callback == "" {
		callback = "/callback"
	}
	return &App{
		guard:    opts.Guard,
		service:  opts.Service,
		loader:   opts.Loader,
		pages:    opts.Pages,
		callback: callback,
		logger:   shared.WithLogger(opts.Logger, "component", "server"),
	}
}

// Register adds every route to r.
func (a *App) Register(r Router) {
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.index))
	r.Handle(http.MethodGet, a.callback, http.HandlerFunc(a.handleCallback))
	r.Handle(http.MethodGet, "/login", http.HandlerFunc(a.login))
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(a.logout))
	r.Handle(http.MethodGet, "/api/session", http.HandlerFunc(a.session))

	r.Handle(http.MethodGet, "/api/me", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		return a.service.Profile(ctx)
	}))
	r.Handle(http.MethodGet, "/api/now-playing", a.api(a.nowPlaying))
	r.Handle(http.MethodGet, "/api/top/artists", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		opts, err := pageOptions(r)
		if err != nil {
			return nil, err
		}
		return a.service.TopArtists(ctx, opts)
	}))
	r.Handle(http.MethodGet, "/api/top/tracks", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		opts, err := pageOptions(r)
		if err != nil {
			return nil, err
		}
		return a.service.TopTracks(ctx, opts)
	}))
	r.Handle(http.MethodGet, "/api/recent", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		opts, err := pageOptions(r)
		if err != nil {
			return nil, err
		}
		return a.service.RecentlyPlayed(ctx, opts.Limit)
	}))
	r.Handle(http.MethodGet, "/api/playlists", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		opts, err := pageOptions(r)
		if err != nil {
			return nil, err
		}
		return a.service.Playlists(ctx, opts)
	}))
	r.Handle(http.MethodGet, "/api/playlists/{id}/tracks", a.api(func(ctx context.Context, r *http.Request) (any, error) {
		opts, err := pageOptions(r)
		if err != nil {
			return nil, err
		}
		return a.service.PlaylistTracks(ctx, r.PathValue("id"), opts)
	}))
}

// Handler builds the router with request id, recovery and logging middleware.
func (a *App) Handler() http.Handler {
	r := NewBasicRouter()
	r.Use(RequestID(), Logger(a.logger), Recover(a.logger))
	a.Register(r)
	return r
}

func location(r *http.Request) auth.Location {
	return auth.Location{Search: r.URL.RawQuery}
}

// index is the page-load decision: redirect, signed-out view or dashboard.
func (a *App) index(w http.ResponseWriter, r *http.Request) {
	out := a.guard.Resolve(r.Context(), location(r))
	switch out.State {
	case auth.Redirecting:
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	case auth.Authenticated:
		a.dashboard(w, r, out.Token)
	default:
		a.renderLogin(w, http.StatusOK, web.LoginPage{Error: errorText(out.Err)})
	}
}

func (a *App) dashboard(w http.ResponseWriter, r *http.Request, tok *auth.Token) {
	dash, err := a.loader.Load(r.Context(), nil)
	switch {
	case errors.Is(err, shared.ErrUnauthorized):
		a.renderLogin(w, http.StatusOK, web.LoginPage{Error: "Your Spotify session has expired. Please log in again."})
		return
	case errors.Is(err, tasks.ErrStaleSession):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	case err != nil:
		a.logger.Error("dashboard load failed", "error", err)
		a.renderLogin(w, http.StatusBadGateway, web.LoginPage{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.pages.Dashboard(w, web.NewDashboardPage(dash, tok.ExpiresAt(), tok.Scopes())); err != nil {
		a.logger.Error("failed to render dashboard", "error", err)
	}
}

// handleCallback finishes an authorization. Success returns to the dashboard; failure shows why.
func (a *App) handleCallback(w http.ResponseWriter, r *http.Request) {
	out := a.guard.Evaluate(r.Context(), location(r))
	switch out.State {
	case auth.Authenticated:
		http.Redirect(w, r, "/", http.StatusFound)
	case auth.Redirecting:
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
	default:
		a.renderLogin(w, http.StatusOK, web.LoginPage{Error: errorText(out.Err)})
	}
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	out := a.guard.Login(r.Context())
	if out.State == auth.Redirecting {
		http.Redirect(w, r, out.RedirectURL, http.StatusFound)
		return
	}
	a.renderLogin(w, http.StatusInternalServerError, web.LoginPage{Error: errorText(out.Err)})
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.guard.Logout(r.Context()); err != nil {
		a.renderLogin(w, http.StatusInternalServerError, web.LoginPage{Error: err.Error()})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SessionStatus is the /api/session payload.
type SessionStatus struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	Scopes        []string   `json:"scopes,omitempty"`
	Redirected    bool       `json:"redirected"`
	Pending       bool       `json:"pending"`
}

func (a *App) session(w http.ResponseWriter, r *http.Request) {
	st, err := a.guard.Status(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	body := SessionStatus{
		State:         st.State.String(),
		Authenticated: st.State == auth.Authenticated,
		Redirected:    st.Redirected,
		Pending:       st.Pending,
	}
	if st.Token != nil && body.Authenticated {
		expires := st.Token.ExpiresAt().UTC()
		body.ExpiresAt = &expires
		body.Scopes = st.Token.Scopes()
	}
	writeJSON(w, http.StatusOK, body)
}

// nowPlaying answers 204 when nothing is playing.
func (a *App) nowPlaying(ctx context.Context, r *http.Request) (any, error) {
	np, err := a.service.NowPlaying(ctx)
	if err != nil || np == nil {
		return nil, err
	}
	return np, nil
}

type apiFunc func(ctx context.Context, r *http.Request) (any, error)

// api requires a live token before calling fn, and maps its errors to JSON responses.
func (a *App) api(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.guard.Token(r.Context()); err != nil {
			writeJSONError(w, statusFor(err), err)
			return
		}

		data, err := fn(r.Context(), r)
		if err != nil {
			a.logger.Warn("api request failed", "path", r.URL.Path, "error", err)
			writeJSONError(w, statusFor(err), err)
			return
		}
		if data == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, data)
	})
}

func pageOptions(r *http.Request) (services.PageOptions, error) {
	q := r.URL.Query()
	opts := services.PageOptions{TimeRange: q.Get("time_range")}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrInvalidArgument, p.name)
		}
		*p.dst = n
	}
	return opts, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrStorage):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (a *App) renderLogin(w http.ResponseWriter, status int, page web.LoginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := a.pages.Login(w, page); err != nil {
		a.logger.Error("failed to render login page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
