// package formatter renders listening data for the terminal in plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/shared"
)

// Format selects an output encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Page sizes used by the list views.
const (
	ArtistsPerPage = 10
	TracksPerPage  = 10
	RecentPerPage  = 5
)

// Formats lists every supported format name.
var Formats = []string{string(Text), string(Markdown), string(CSV), string(JSON)}

// ParseFormat maps a flag value to a [Format]. Empty selects [Text].
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", "txt", Text:
		return Text, nil
	case "md", Markdown:
		return Markdown, nil
	case CSV, JSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, name, strings.Join(Formats, ", "))
	}
}

// table is the format-independent shape of one view.
//
// A keyed table renders as "Key: value" lines; otherwise rows are numbered from offset+1.
type table struct {
	title   string
	headers []string
	rows    [][]string
	keyed   bool
	offset  int
	empty   string
	data    any
}

// Profile renders the signed-in user.
func Profile(w io.Writer, f Format, p *models.Profile) error {
	t := table{title: "Profile", headers: []string{"Field", "Value"}, keyed: true, data: p}
	t.rows = [][]string{
		{"Name", p.Name()},
		{"ID", p.ID},
		{"Email", p.Email},
		{"Country", p.Country},
		{"Plan", p.Product},
		{"Followers", strconv.Itoa(p.Followers)},
	}
	return render(w, f, t)
}

// NowPlaying renders the current playback item. A nil item renders as nothing playing.
func NowPlaying(w io.Writer, f Format, np *models.NowPlaying) error {
	t := table{title: "Now Playing", headers: []string{"Field", "Value"}, keyed: true, empty: "Nothing playing.", data: np}
	if np != nil {
		status := "Paused"
		if np.IsPlaying {
			status = "Playing"
		}
		t.rows = [][]string{
			{"Track", np.Track.Name},
			{"Artists", np.Track.ArtistNames()},
			{"Album", np.Track.Album},
			{"Progress", FormatDuration(np.Progress) + " / " + FormatDuration(np.Track.Duration)},
			{"Status", status},
			{"Genres", strings.Join(np.Genres, ", ")},
		}
	}
	return render(w, f, t)
}

// Artists renders an artist list, numbered from offset+1.
func Artists(w io.Writer, f Format, title string, artists []models.Artist, offset int) error {
	t := table{title: title, headers: []string{"Name", "Genres", "Popularity"}, offset: offset, empty: "No artists.", data: artists}
	for _, a := range artists {
		t.rows = append(t.rows, []string{a.Name, strings.Join(a.Genres, ", "), strconv.Itoa(a.Popularity)})
	}
	return render(w, f, t)
}

// Tracks renders a track list, numbered from offset+1.
func Tracks(w io.Writer, f Format, title string, tracks []models.Track, offset int) error {
	t := table{
		title:   title,
		headers: []string{"Title", "Artists", "Album", "Duration"},
		offset:  offset,
		empty:   "No tracks.",
		data:    tracks,
	}
	for _, tr := range tracks {
		t.rows = append(t.rows, []string{tr.Name, tr.ArtistNames(), tr.Album, FormatDuration(tr.Duration)})
	}
	return render(w, f, t)
}

// Recent renders recently played tracks, newest first.
func Recent(w io.Writer, f Format, played []models.PlayedTrack, offset int) error {
	t := table{
		title:   "Recently Played",
		headers: []string{"Title", "Artists", "Played At"},
		offset:  offset,
		empty:   "Nothing played recently.",
		data:    played,
	}
	for _, p := range played {
		t.rows = append(t.rows, []string{p.Track.Name, p.Track.ArtistNames(), p.PlayedAt.Local().Format(time.DateTime)})
	}
	return render(w, f, t)
}

// Playlists renders playlist metadata.
func Playlists(w io.Writer, f Format, playlists []models.Playlist, offset int) error {
	t := table{
		title:   "Playlists",
		headers: []string{"ID", "Name", "Owner", "Tracks", "Visibility"},
		offset:  offset,
		empty:   "No playlists.",
		data:    playlists,
	}
	for _, p := range playlists {
		t.rows = append(t.rows, []string{p.ID, p.Name, p.Owner, strconv.Itoa(p.TrackCount), VisibilityString(p.Public)})
	}
	return render(w, f, t)
}

// Paginate returns the zero-based page of items and the page count. Out of range pages are clamped.
func Paginate[T any](items []T, page, size int) ([]T, int) {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil, 0
	}

	pages := (len(items) + size - 1) / size
	page = max(0, min(page, pages-1))
	start := page * size
	return items[start:min(start+size, len(items))], pages
}

// FormatDuration formats d as m:ss.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// VisibilityString returns "Public" or "Private".
func VisibilityString(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// WriteFile renders into the file at path, creating parent directories as needed.
func WriteFile(path string, draw func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func render(w io.Writer, f Format, t table) error {
	var buf bytes.Buffer
	var err error

	switch f {
	case Text, "":
		renderText(&buf, t)
	case Markdown:
		renderMarkdown(&buf, t)
	case CSV:
		err = renderCSV(&buf, t)
	case JSON:
		err = renderJSON(&buf, t)
	default:
		err = fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func renderText(buf *bytes.Buffer, t table) {
	buf.WriteString(t.title + "\n\n")
	if len(t.rows) == 0 {
		buf.WriteString(t.empty + "\n")
		return
	}

	for i, row := range t.rows {
		if t.keyed {
			if row[1] != "" {
				fmt.Fprintf(buf, "%s: %s\n", row[0], row[1])
			}
			continue
		}
		fmt.Fprintf(buf, "%d. %s\n", t.offset+i+1, strings.Join(nonEmpty(row), " - "))
	}
}

func renderMarkdown(buf *bytes.Buffer, t table) {
	fmt.Fprintf(buf, "# %s\n\n", t.title)
	if len(t.rows) == 0 {
		buf.WriteString(t.empty + "\n")
		return
	}

	if t.keyed {
		for _, row := range t.rows {
			if row[1] != "" {
				fmt.Fprintf(buf, "**%s**: %s\n", row[0], row[1])
			}
		}
		return
	}

	buf.WriteString("| # | " + strings.Join(t.headers, " | ") + " |\n")
	buf.WriteString("|---" + strings.Repeat("|---", len(t.headers)) + "|\n")
	for i, row := range t.rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = strings.ReplaceAll(c, "|", `\|`)
		}
		fmt.Fprintf(buf, "| %d | %s |\n", t.offset+i+1, strings.Join(cells, " | "))
	}
}

func renderCSV(buf *bytes.Buffer, t table) error {
	writer := csv.NewWriter(buf)
	if err := writer.Write(t.headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range t.rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func renderJSON(buf *bytes.Buffer, t table) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t.data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func nonEmpty(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
