package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/tasks"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPage is the signed-out view.
type LoginPage struct {
	Error   string // Why the last attempt failed, if it did
	Message string // Informational notice, e.g. after logout
}

// DashboardPage is the signed-in view.
type DashboardPage struct {
	Dashboard *tasks.Dashboard
	ExpiresAt time.Time
	Scopes    []string
	Errors    []string
}

// NewDashboardPage builds the page for d, listing section failures in load order.
func NewDashboardPage(d *tasks.Dashboard, expiresAt time.Time, scopes []string) DashboardPage {
	page := DashboardPage{Dashboard: d, ExpiresAt: expiresAt, Scopes: scopes}
	for _, s := range tasks.AllSections {
		if err, ok := d.Errors[s]; ok {
			page.Errors = append(page.Errors, fmt.Sprintf("%s: %v", s.Title(), err))
		}
	}
	return page
}

// Renderer executes the embedded page templates.
type Renderer struct {
	login     *template.Template
	dashboard *template.Template
}

var funcs = template.FuncMap{
	"duration": formatDuration,
	"artists":  func(t models.Track) string { return t.ArtistNames() },
	"join":     strings.Join,
	"clock":    func(t time.Time) string { return t.Local().Format("15:04") },
	"date":     func(t time.Time) string { return t.Local().Format("Jan 2 15:04") },
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	login, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse login template: %w", err)
	}

	dashboard, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	return &Renderer{login: login, dashboard: dashboard}, nil
}

// Login renders the signed-out page.
func (r *Renderer) Login(w io.Writer, page LoginPage) error {
	return execute(w, r.login, page)
}

// Dashboard renders the signed-in page.
func (r *Renderer) Dashboard(w io.Writer, page DashboardPage) error {
	return execute(w, r.dashboard, page)
}

// execute renders into a buffer first so a template error never leaves a half-written page.
func execute(w io.Writer, t *template.Template, data any) error {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
