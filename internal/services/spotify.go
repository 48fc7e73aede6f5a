// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/shared"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

var errNotFound = errors.New("resource not found")

const (
	defaultTopLimit    = 50
	defaultRecentLimit = 20
	defaultPageLimit   = 50
	maxLimit           = 50
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Followers  followers      `json:"followers"`
	Images     []SpotifyImage `json:"images"`
	URI        string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"` // null for removed or local items
}

// SpotifyPlayHistory represents a recently played entry.
type SpotifyPlayHistory struct {
	Track    SpotifyTrack `json:"track"`
	PlayedAt time.Time    `json:"played_at"`
}

// SpotifyCurrentlyPlaying represents the current playback item.
type SpotifyCurrentlyPlaying struct {
	IsPlaying            bool          `json:"is_playing"`
	ProgressMS           int           `json:"progress_ms"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
	Item                 *SpotifyTrack `json:"item"`
}

// SpotifyPaging is the generic paging envelope.
type SpotifyPaging[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

func (p SpotifyPaging[T]) next() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}

// SpotifyService implements the Service interface for Spotify API interactions.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *log.Logger
}

// NewSpotifyService creates a new Spotify service. An empty baseURL uses the public API and a nil client uses [http.DefaultClient].
func NewSpotifyService(baseURL string, tokens TokenSource, client *http.Client, logger *log.Logger) *SpotifyService {
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SpotifyService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		tokens:     tokens,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against endpoint, which is either a path below the base URL or a
// next cursor returned by the API. It reports false when the API answered 204.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) (bool, error) {
	apiURL, err := s.resolve(endpoint)
	if err != nil {
		return false, err
	}

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	s.logger.Debug("spotify request", "path", req.URL.Path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		if err := s.tokens.Invalidate(ctx); err != nil {
			s.logger.Warn("failed to invalidate rejected token", "error", err)
		}
		return false, fmt.Errorf("%w: %s", shared.ErrUnauthorized, apiMessage(resp.Body))
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: %w: %s", shared.ErrAPIRequest, errNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		msg := apiMessage(resp.Body)
		if retry := resp.Header.Get("Retry-After"); retry != "" {
			msg += " (retry after " + retry + "s)"
		}
		return false, fmt.Errorf("%w: status %d: %s", shared.ErrServiceUnavailable, resp.StatusCode, msg)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, apiMessage(resp.Body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return true, nil
}

// resolve keeps the bearer on the API host: absolute cursors must live below the base URL.
func (s *SpotifyService) resolve(endpoint string) (string, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return s.baseURL + endpoint, nil
	}
	if !strings.HasPrefix(endpoint, s.baseURL+"/") {
		return "", fmt.Errorf("%w: refusing to follow cursor outside %s", shared.ErrAPIRequest, s.baseURL)
	}
	return endpoint, nil
}

func apiMessage(body io.Reader) string {
	var payload struct {
		Error struct {
			Status  int    `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if len(data) == 0 {
		return "empty response"
	}
	return strings.TrimSpace(string(data))
}

// Profile retrieves the current authenticated user's profile.
func (s *SpotifyService) Profile(ctx context.Context) (*models.Profile, error) {
	var user SpotifyUser
	if _, err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	p := toProfile(user)
	return &p, nil
}

// NowPlaying retrieves the current playback item enriched with the first artist's genres.
//
// Genre lookup failures other than an auth failure are logged and leave Genres empty.
func (s *SpotifyService) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	var current SpotifyCurrentlyPlaying
	ok, err := s.doRequest(ctx, "/me/player/currently-playing", &current)
	if err != nil {
		return nil, err
	}
	if !ok || current.Item == nil {
		return nil, nil
	}

	np := &models.NowPlaying{
		Track:     toTrack(*current.Item),
		IsPlaying: current.IsPlaying,
		Progress:  time.Duration(current.ProgressMS) * time.Millisecond,
	}

	if len(current.Item.Artists) > 0 && current.Item.Artists[0].ID != "" {
		artist, err := s.Artist(ctx, current.Item.Artists[0].ID)
		switch {
		case errors.Is(err, shared.ErrUnauthorized):
			return nil, err
		case err != nil:
			s.logger.Warn("failed to fetch artist genres", "artist", current.Item.Artists[0].ID, "error", err)
		default:
			np.Genres = artist.Genres
		}
	}
	return np, nil
}

// Artist retrieves an artist by ID.
func (s *SpotifyService) Artist(ctx context.Context, artistID string) (*models.Artist, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	var artist SpotifyArtist
	if _, err := s.doRequest(ctx, "/artists/"+url.PathEscape(artistID), &artist); err != nil {
		return nil, err
	}
	a := toArtist(artist)
	return &a, nil
}

// TopArtists retrieves the user's top artists.
func (s *SpotifyService) TopArtists(ctx context.Context, opts PageOptions) (*models.Page[models.Artist], error) {
	endpoint, err := topEndpoint("artists", opts)
	if err != nil {
		return nil, err
	}
	var response SpotifyPaging[SpotifyArtist]
	if _, err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return toPage(response, toArtist), nil
}

// TopTracks retrieves the user's top tracks.
func (s *SpotifyService) TopTracks(ctx context.Context, opts PageOptions) (*models.Page[models.Track], error) {
	endpoint, err := topEndpoint("tracks", opts)
	if err != nil {
		return nil, err
	}
	var response SpotifyPaging[SpotifyTrack]
	if _, err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return toPage(response, toTrack), nil
}

// RecentlyPlayed retrieves the user's recently played tracks.
func (s *SpotifyService) RecentlyPlayed(ctx context.Context, limit int) (*models.Page[models.PlayedTrack], error) {
	endpoint := "/me/player/recently-played?limit=" + strconv.Itoa(clampLimit(limit, defaultRecentLimit))

	var response SpotifyPaging[SpotifyPlayHistory]
	if _, err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return toPage(response, func(h SpotifyPlayHistory) models.PlayedTrack {
		return models.PlayedTrack{Track: toTrack(h.Track), PlayedAt: h.PlayedAt}
	}), nil
}

// Playlists retrieves one page of the current user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, opts PageOptions) (*models.Page[models.Playlist], error) {
	endpoint := "/me/playlists?" + pageQuery(opts, defaultPageLimit).Encode()
	return s.playlistsPage(ctx, endpoint)
}

// AllPlaylists follows next cursors until every playlist is fetched.
func (s *SpotifyService) AllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	endpoint := "/me/playlists?" + pageQuery(PageOptions{}, defaultPageLimit).Encode()

	for endpoint != "" {
		page, err := s.playlistsPage(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		endpoint = page.Next
	}
	return all, nil
}

func (s *SpotifyService) playlistsPage(ctx context.Context, endpoint string) (*models.Page[models.Playlist], error) {
	var response SpotifyPaging[SpotifySimplePlaylist]
	if _, err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return toPage(response, toPlaylist), nil
}

// PlaylistTracks retrieves one page of a playlist's tracks.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, opts PageOptions) (*models.Page[models.Track], error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks?" + pageQuery(opts, defaultPageLimit).Encode()
	return s.playlistTracksPage(ctx, endpoint)
}

// AllPlaylistTracks follows next cursors until every track of the playlist is fetched.
func (s *SpotifyService) AllPlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	page, err := s.PlaylistTracks(ctx, playlistID, PageOptions{})
	if err != nil {
		return nil, err
	}

	all := page.Items
	for page.Next != "" {
		if page, err = s.playlistTracksPage(ctx, page.Next); err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
	}
	return all, nil
}

func (s *SpotifyService) playlistTracksPage(ctx context.Context, endpoint string) (*models.Page[models.Track], error) {
	var response SpotifyPaging[SpotifyPlaylistTrack]
	if _, err := s.doRequest(ctx, endpoint, &response); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
		}
		return nil, err
	}

	page := &models.Page[models.Track]{Total: response.Total, Next: response.next()}
	for _, item := range response.Items {
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		page.Items = append(page.Items, toTrack(*item.Track))
	}
	return page, nil
}

func topEndpoint(kind string, opts PageOptions) (string, error) {
	q := pageQuery(opts, defaultTopLimit)
	switch opts.TimeRange {
	case "":
	case ShortTerm, MediumTerm, LongTerm:
		q.Set("time_range", opts.TimeRange)
	default:
		return "", fmt.Errorf("%w: time range %q", shared.ErrInvalidArgument, opts.TimeRange)
	}
	return "/me/top/" + kind + "?" + q.Encode(), nil
}

func pageQuery(opts PageOptions, defaultLimit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(clampLimit(opts.Limit, defaultLimit)))
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	return q
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxLimit)
}

func toPage[S, T any](p SpotifyPaging[S], conv func(S) T) *models.Page[T] {
	page := &models.Page[T]{Items: make([]T, 0, len(p.Items)), Total: p.Total, Next: p.next()}
	for _, item := range p.Items {
		page.Items = append(page.Items, conv(item))
	}
	return page
}

func toImages(images []SpotifyImage) []models.Image {
	out := make([]models.Image, 0, len(images))
	for _, img := range images {
		out = append(out, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}
	return out
}

func toProfile(u SpotifyUser) models.Profile {
	return models.Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Country:     u.Country,
		Product:     u.Product,
		Followers:   u.Followers.Total,
		Images:      toImages(u.Images),
	}
}

func toArtist(a SpotifyArtist) models.Artist {
	return models.Artist{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		Followers:  a.Followers.Total,
		Images:     toImages(a.Images),
	}
}

func toTrack(t SpotifyTrack) models.Track {
	track := models.Track{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		Duration:   time.Duration(t.DurationMS) * time.Millisecond,
		Popularity: t.Popularity,
		Explicit:   t.Explicit,
		URI:        t.URI,
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
		track.ArtistIDs = append(track.ArtistIDs, a.ID)
	}
	if len(t.Album.Images) > 0 {
		track.AlbumArt = t.Album.Images[0].URL
	}
	return track
}

func toPlaylist(p SpotifySimplePlaylist) models.Playlist {
	pl := models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
	if pl.Owner == "" {
		pl.Owner = p.Owner.ID
	}
	if len(p.Images) > 0 {
		pl.Image = p.Images[0].URL
	}
	return pl
}
