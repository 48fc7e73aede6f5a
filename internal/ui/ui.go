package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotipro/internal/formatter"
	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/shared"
	"github.com/desertthunder/spotipro/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	DashboardView
	PlaylistTracksView
	SignedOutView
)

// Loader fetches one dashboard, reporting progress without blocking.
type Loader interface {
	Load(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.Dashboard, error)
}

// TrackLister fetches every track of a playlist.
type TrackLister interface {
	AllPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	loader       Loader
	tracks       TrackLister
	width        int
	height       int
	dashboard    *tasks.Dashboard
	tab          int
	page         int
	progress     tasks.ProgressUpdate
	playlistList list.Model
	trackList    list.Model
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, loader Loader, tracks TrackLister) *Model {
	return &Model{
		ctx:          ctx,
		view:         LoadingView,
		loader:       loader,
		tracks:       tracks,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init starts the first dashboard load.
func (m *Model) Init() tea.Cmd {
	return m.startLoad()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case DashboardView:
			return m.handleDashboardKeys(msg)
		case PlaylistTracksView:
			return m.handleTrackListKeys(msg)
		default:
			return m.handleIdleKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			res := msg.data.(progressResult)
			m.progress = res.update
			return m, res.next
		case MsgDashboardLoaded:
			return m.handleDashboard(msg.data.(dashboardResult))
		case MsgTracksFetched:
			return m.handleTracks(msg.data.(tracksResult))
		case MsgSessionChanged:
			return m.handleSession(msg.data.(bool))
		}
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != SignedOutView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case DashboardView:
		return m.renderDashboard()
	case PlaylistTracksView:
		return m.renderTrackList()
	case SignedOutView:
		return m.renderSignedOut()
	default:
		return ""
	}
}

func (m *Model) handleDashboard(res dashboardResult) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(res.err, tasks.ErrStaleSession):
		return m, m.startLoad()
	case signedOut(res.err):
		m.view = SignedOutView
		m.err = res.err
		return m, nil
	case res.err != nil:
		m.err = res.err
		return m, nil
	}

	m.err = nil
	m.dashboard = res.dashboard
	m.view = DashboardView
	m.page = 0

	items := make([]list.Item, len(res.dashboard.Playlists))
	for i, pl := range res.dashboard.Playlists {
		items[i] = playlistItem{playlist: pl}
	}
	m.playlistList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.playlistList.Title = "Playlists"
	return m, nil
}

func (m *Model) handleTracks(res tracksResult) (tea.Model, tea.Cmd) {
	if res.err != nil {
		m.err = res.err
		if signedOut(res.err) {
			m.view = SignedOutView
		}
		return m, nil
	}

	items := make([]list.Item, len(res.tracks))
	for i, track := range res.tracks {
		items[i] = trackItem{track: track}
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), m.width-4, m.height-8)
	m.trackList.Title = fmt.Sprintf("Tracks in '%s'", res.playlist.Name)
	m.view = PlaylistTracksView
	return m, nil
}

// handleSession follows token changes made outside the current load. A load in flight is left to
// finish, since its bound context already reports a stale session.
func (m *Model) handleSession(signedIn bool) (tea.Model, tea.Cmd) {
	switch {
	case m.view == LoadingView:
		return m, nil
	case !signedIn:
		m.view = SignedOutView
		m.dashboard = nil
		m.err = nil
		return m, nil
	case m.view == SignedOutView:
		m.err = nil
		m.view = LoadingView
		return m, m.startLoad()
	}
	return m, nil
}

func (m *Model) handleIdleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.err = nil
		m.view = LoadingView
		return m, m.startLoad()
	}
	return m, nil
}

func (m *Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	onPlaylists := m.section() == tasks.FetchPlaylists

	if onPlaylists && m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.view = LoadingView
		return m, m.startLoad()
	case key.Matches(msg, m.keys.nextTab):
		m.tab = (m.tab + 1) % len(tasks.AllSections)
		m.page = 0
		return m, nil
	case key.Matches(msg, m.keys.prevTab):
		m.tab = (m.tab + len(tasks.AllSections) - 1) % len(tasks.AllSections)
		m.page = 0
		return m, nil
	case key.Matches(msg, m.keys.nextPage) && !onPlaylists:
		if m.page+1 < m.pages() {
			m.page++
		}
		return m, nil
	case key.Matches(msg, m.keys.prevPage) && !onPlaylists:
		if m.page > 0 {
			m.page--
		}
		return m, nil
	case key.Matches(msg, m.keys.enter) && onPlaylists:
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist)
		}
		return m, nil
	}

	if onPlaylists {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = DashboardView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.view == DashboardView && m.section() == tasks.FetchPlaylists:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case m.view == PlaylistTracksView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) section() tasks.Section {
	return tasks.AllSections[m.tab]
}

// startLoad runs the loader in the background; progress arrives first and the result last.
func (m *Model) startLoad() tea.Cmd {
	m.progress = tasks.ProgressUpdate{}
	progress := make(chan tasks.ProgressUpdate, len(tasks.AllSections)*2)
	done := make(chan dashboardResult, 1)

	go func() {
		dash, err := m.loader.Load(m.ctx, progress)
		done <- dashboardResult{dash, err}
		close(progress)
	}()

	return waitForProgress(progress, done)
}

func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan dashboardResult) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			res := <-done
			return dashboardLoadedMsg(res.dashboard, res.err)
		}
		return progressUpdateMsg(update, waitForProgress(progress, done))
	}
}

func (m *Model) fetchTracks(playlist models.Playlist) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.tracks.AllPlaylistTracks(m.ctx, playlist.ID)
		return tracksFetchedMsg(playlist, tracks, err)
	}
}

func signedOut(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) ||
		errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrUnauthorized)
}

// pages returns the page count of the current tab.
func (m *Model) pages() int {
	if m.dashboard == nil {
		return 0
	}
	var n int
	switch m.section() {
	case tasks.FetchTopArtists:
		_, n = formatter.Paginate(m.dashboard.TopArtists, 0, formatter.ArtistsPerPage)
	case tasks.FetchTopTracks:
		_, n = formatter.Paginate(m.dashboard.TopTracks, 0, formatter.TracksPerPage)
	case tasks.FetchRecent:
		_, n = formatter.Paginate(m.dashboard.Recent, 0, formatter.RecentPerPage)
	default:
		n = 1
	}
	return n
}

func (m *Model) renderLoading() string {
	title := styles.title.Render("Loading your Spotify dashboard")
	msg := m.progress.Message
	if msg == "" {
		msg = "Connecting..."
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, msg, m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(tasks.AllSections))
	for i, s := range tasks.AllSections {
		style := styles.tab
		if i == m.tab {
			style = styles.activeTab
		}
		tabs[i] = style.Render(s.Title())
	}
	return strings.Join(tabs, " ")
}

func (m *Model) renderDashboard() string {
	s := m.section()
	helpKeys := []key.Binding{m.keys.nextTab, m.keys.prevTab, m.keys.refresh, m.keys.quit}

	var body string
	switch {
	case m.dashboard.Errors[s] != nil:
		body = styles.warn.Render(fmt.Sprintf("Could not load %s: %v", s.Title(), m.dashboard.Errors[s]))
	case s == tasks.FetchPlaylists:
		body = m.playlistList.View()
		helpKeys = append([]key.Binding{m.keys.enter}, helpKeys...)
	default:
		body = m.renderSection(s)
		if m.pages() > 1 {
			body += styles.help.Render(fmt.Sprintf("\nPage %d/%d", m.page+1, m.pages()))
			helpKeys = append([]key.Binding{m.keys.nextPage, m.keys.prevPage}, helpKeys...)
		}
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", m.renderTabs(), body, m.help.ShortHelpView(helpKeys))
}

// renderSection draws the current page of a non-list tab with the plain text formatter.
func (m *Model) renderSection(s tasks.Section) string {
	var b strings.Builder
	var err error

	switch s {
	case tasks.FetchProfile:
		if m.dashboard.Profile == nil {
			return styles.help.Render("No profile loaded.")
		}
		err = formatter.Profile(&b, formatter.Text, m.dashboard.Profile)
	case tasks.FetchNowPlaying:
		err = formatter.NowPlaying(&b, formatter.Text, m.dashboard.NowPlaying)
	case tasks.FetchTopArtists:
		items, _ := formatter.Paginate(m.dashboard.TopArtists, m.page, formatter.ArtistsPerPage)
		err = formatter.Artists(&b, formatter.Text, s.Title(), items, m.page*formatter.ArtistsPerPage)
	case tasks.FetchTopTracks:
		items, _ := formatter.Paginate(m.dashboard.TopTracks, m.page, formatter.TracksPerPage)
		err = formatter.Tracks(&b, formatter.Text, s.Title(), items, m.page*formatter.TracksPerPage)
	case tasks.FetchRecent:
		items, _ := formatter.Paginate(m.dashboard.Recent, m.page, formatter.RecentPerPage)
		err = formatter.Recent(&b, formatter.Text, items, m.page*formatter.RecentPerPage)
	}
	if err != nil {
		return styles.err.Render(err.Error())
	}
	return b.String()
}

func (m *Model) renderTrackList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSignedOut() string {
	title := styles.title.Render("Not signed in")
	info := "Run `spotipro auth login` to connect your Spotify account, then press r."
	if m.err != nil {
		info = fmt.Sprintf("%s\n\n%s", styles.warn.Render(m.err.Error()), info)
	}
	helpKeys := []key.Binding{m.keys.refresh, m.keys.quit}
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, m.help.ShortHelpView(helpKeys))
}
