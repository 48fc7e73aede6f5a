package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/spotipro/internal/auth"
	"github.com/desertthunder/spotipro/internal/server"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin performs the PKCE authorization flow for Spotify.
//
// Starts a callback server on the redirect URI, opens the browser, and waits for the guard to finish the exchange.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	redirectURI := r.config.Spotify.RedirectURI
	addr, err := server.CallbackAddr(redirectURI)
	if err != nil {
		return err
	}

	waiter := server.NewCallbackWaiter(r.guard, server.CallbackPath(redirectURI))
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(waiter)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for callback on %s: %w", addr, err)
	}

	srvCtx, stop := context.WithCancel(ctx)
	serverErrors := make(chan error, 1)
	srv := server.NewServer(addr, router, r.logger)
	go func() {
		r.logger.Info("starting callback server", "addr", addr)
		serverErrors <- srv.Serve(srvCtx, ln)
	}()
	defer func() {
		stop()
		if err := <-serverErrors; err != nil {
			r.logger.Warn("callback server stopped with error", "error", err)
		}
	}()

	start := r.guard.Login(ctx)
	if start.State != auth.Redirecting {
		return fmt.Errorf("could not start authorization: %w", outcomeErr(start))
	}

	if cmd.Bool("no-browser") {
		r.writePlain("Open this URL in your browser:\n%s\n\n", start.RedirectURL)
	} else {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.openBrowser(start.RedirectURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			r.writePlain("⚠ Could not open browser automatically.\nPlease open this URL in your browser:\n%s\n\n", start.RedirectURL)
		}
	}

	timeout := r.loginTimeout
	if cmd.IsSet("timeout") {
		timeout = cmd.Duration("timeout")
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out auth.Outcome
	select {
	case out = <-waiter.Result():
	case err := <-serverErrors:
		serverErrors <- err
		return fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	return r.reportOutcome(out)
}

// AuthCallback completes a login from a redirect URL pasted by the user.
func (r *Runner) AuthCallback(ctx context.Context, cmd *cli.Command) error {
	raw := strings.TrimSpace(cmd.StringArg("url"))
	if raw == "" {
		return fmt.Errorf("%w: callback url", shared.ErrMissingArgument)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCallbackParse, err)
	}
	if u.RawQuery == "" && u.Fragment == "" {
		return fmt.Errorf("%w: url has no query or fragment", shared.ErrCallbackParse)
	}

	if err := r.prepare(ctx); err != nil {
		return err
	}
	return r.reportOutcome(r.guard.Evaluate(ctx, auth.Location{Search: u.RawQuery, Hash: u.EscapedFragment()}))
}

// AuthLogout signs out and removes every stored authorization record.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}
	if err := r.guard.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return r.writePlain("✓ Signed out\n")
}

// sessionReport is the JSON shape of auth status.
type sessionReport struct {
	State      string     `json:"state"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Scopes     []string   `json:"scopes,omitempty"`
	Redirected bool       `json:"redirected"`
	Pending    bool       `json:"pending"`
}

// AuthStatus reports the stored session and, with --history, recent transitions.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.prepare(ctx); err != nil {
		return err
	}

	st, err := r.guard.Status(ctx)
	if err != nil {
		return err
	}

	report := sessionReport{State: st.State.String(), Redirected: st.Redirected, Pending: st.Pending}
	if st.Token != nil {
		expires := st.Token.ExpiresAt()
		report.ExpiresAt = &expires
		report.Scopes = st.Token.Scopes()
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	switch st.State {
	case auth.Authenticated:
		r.writePlain("✓ Authenticated\n")
		r.writePlain("  Token: %s\n", st.Token.Redacted())
		r.writePlain("  Expires: %s (in %s)\n", report.ExpiresAt.Local().Format(time.DateTime), st.Token.Remaining(time.Now()).Round(time.Second))
		if len(report.Scopes) > 0 {
			r.writePlain("  Scopes: %s\n", strings.Join(report.Scopes, " "))
		}
	case auth.Expired:
		r.writePlain("⚠ Session expired\n")
	default:
		r.writePlain("✗ Not authenticated\n")
	}
	if st.Pending {
		r.writePlain("  An authorization is pending\n")
	}
	if st.Redirected {
		r.writePlain("  Automatic redirect already used\n")
	}

	if n := cmd.Int("history"); n > 0 {
		return r.writeHistory(ctx, n)
	}
	return nil
}

func (r *Runner) writeHistory(ctx context.Context, n int) error {
	if r.events == nil {
		return r.writePlain("\nHistory is only kept with sqlite storage.\n")
	}

	events, err := r.events.Recent(ctx, n)
	if err != nil {
		return err
	}

	r.writePlain("\nRecent transitions:\n")
	for _, e := range events {
		line := fmt.Sprintf("  %s  %s → %s", e.CreatedAt.Local().Format(time.DateTime), e.From, e.To)
		if e.Detail != "" {
			line += "  (" + e.Detail + ")"
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

func (r *Runner) reportOutcome(out auth.Outcome) error {
	switch out.State {
	case auth.Authenticated:
		r.writePlain("✓ Authorization successful\n")
		if out.Token != nil {
			r.writePlain("✓ Token valid until %s\n", out.Token.ExpiresAt().Local().Format(time.DateTime))
		}
		return r.writePlain("\nYou can now use: spotipro dashboard\n")
	case auth.Redirecting:
		return r.writePlain("Authorization required. Open this URL in your browser:\n%s\n", out.RedirectURL)
	default:
		return fmt.Errorf("authorization failed: %w", outcomeErr(out))
	}
}

func outcomeErr(out auth.Outcome) error {
	if out.Err != nil {
		return out.Err
	}
	return errors.New("session is " + out.State.String())
}
