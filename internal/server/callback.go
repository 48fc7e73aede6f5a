package server

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"sync"

	"github.com/desertthunder/spotipro/internal/auth"
)

// Evaluator runs one guard decision for a page load.
type Evaluator interface {
	Evaluate(ctx context.Context, loc auth.Location) auth.Outcome
}

// CallbackWaiter handles the redirect URI for a CLI login and reports the first guard outcome.
// Implements the Handler interface for registration with a Router.
type CallbackWaiter struct {
	guard      Evaluator
	path       string
	resultChan chan auth.Outcome
	once       sync.Once
	mu         sync.Mutex
	hit        bool
}

// NewCallbackWaiter creates a waiter serving path.
func NewCallbackWaiter(guard Evaluator, path string) *CallbackWaiter {
	return &CallbackWaiter{
		guard:      guard,
		path:       path,
		resultChan: make(chan auth.Outcome, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackWaiter) Routes() []string {
	return []string{h.path}
}

// ServeHTTP hands the callback query to the guard and reports the outcome once.
func (h *CallbackWaiter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	out := h.guard.Evaluate(r.Context(), auth.Location{Search: r.URL.RawQuery})
	h.Send(out)

	if out.State == auth.Authenticated {
		writeCallbackPage(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the terminal.")
		return
	}

	msg := "Authorization did not complete."
	if out.Err != nil {
		msg = out.Err.Error()
	}
	writeCallbackPage(w, http.StatusBadRequest, "✗ Authorization Failed", msg)
}

// Send sends the outcome through the channel (only once).
func (h *CallbackWaiter) Send(out auth.Outcome) {
	h.once.Do(func() {
		h.resultChan <- out
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving login completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackWaiter) Result() <-chan auth.Outcome {
	return h.resultChan
}

func writeCallbackPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%[1]s</h1>
        <p>%[2]s</p>
    </div>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}
