// Package ui implements an interactive terminal dashboard using bubbletea's Elm architecture.
//
// The TUI has four views:
//  1. [LoadingView] : Sections arriving from the dashboard loader
//  2. [DashboardView] : One tab per section, paged client-side
//  3. [PlaylistTracksView] : Tracks of the playlist selected on the Playlists tab
//  4. [SignedOutView] : Shown when there is no usable token; sign in with `spotipro auth login`
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the [tasks.DashboardLoader], providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (h/l tabs, j/k, n/p pages, enter, esc, r, q) with contextual help
// displayed via charmbracelet/bubbles/help.
package ui
