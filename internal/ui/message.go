package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDashboardLoaded MsgKind = iota
	MsgTracksFetched
	MsgProgressUpdate
	MsgSessionChanged
)

type dashboardResult struct {
	dashboard *tasks.Dashboard
	err       error
}

type progressResult struct {
	update tasks.ProgressUpdate
	next   tea.Cmd
}

type tracksResult struct {
	playlist models.Playlist
	tracks   []models.Track
	err      error
}

// dashboardLoadedMsg is the constructor for [MsgDashboardLoaded]
func dashboardLoadedMsg(d *tasks.Dashboard, err error) Msg {
	return Msg{kind: MsgDashboardLoaded, data: dashboardResult{d, err}}
}

// tracksFetchedMsg is the constructor for [MsgTracksFetched]
func tracksFetchedMsg(playlist models.Playlist, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgTracksFetched, data: tracksResult{playlist, tracks, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]. next waits for the following update.
func progressUpdateMsg(update tasks.ProgressUpdate, next tea.Cmd) Msg {
	return Msg{kind: MsgProgressUpdate, data: progressResult{update, next}}
}

// SessionChanged is the constructor for [MsgSessionChanged]. The program sends it whenever the auth session's token changes.
func SessionChanged(signedIn bool) Msg {
	return Msg{kind: MsgSessionChanged, data: signedIn}
}
