package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/spotipro/internal/models"
	"github.com/desertthunder/spotipro/internal/services"
	"github.com/desertthunder/spotipro/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 3
	maxWorkers       = 10
	defaultRateLimit = 5.0
)

// ErrStaleSession reports a load discarded because the session token changed while it ran.
var ErrStaleSession = errors.New("session changed during load")

// Binder ties work to the current session token.
type Binder interface {
	Bind(ctx context.Context) (context.Context, context.CancelFunc)
}

// LoaderOpts contains configuration for dashboard loads.
type LoaderOpts struct {
	Workers   int              // Concurrent workers (default: 3, max: 10)
	RateLimit float64          // Requests per second (default: 5)
	Sections  []Section        // Sections to load (default: [AllSections])
	TimeRange string           // Top items time range
	Now       func() time.Time // Clock for LoadedAt
}

// Dashboard is one load's worth of listening data.
type Dashboard struct {
	Profile    *models.Profile
	NowPlaying *models.NowPlaying
	TopArtists []models.Artist
	TopTracks  []models.Track
	Recent     []models.PlayedTrack
	Playlists  []models.Playlist

	Errors   map[Section]error
	LoadedAt time.Time
}

// Err joins every section failure, or nil.
func (d *Dashboard) Err() error {
	errs := make([]error, 0, len(d.Errors))
	for _, s := range AllSections {
		if err, ok := d.Errors[s]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", s.Title(), err))
		}
	}
	return errors.Join(errs...)
}

// DashboardLoader fetches dashboard sections concurrently.
type DashboardLoader struct {
	service services.Service
	session Binder
	opts    LoaderOpts
}

// NewDashboardLoader creates a loader. A nil session leaves loads unbound.
func NewDashboardLoader(svc services.Service, session Binder, opts LoaderOpts) *DashboardLoader {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Workers > maxWorkers {
		opts.Workers = maxWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if len(opts.Sections) == 0 {
		opts.Sections = AllSections
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DashboardLoader{service: svc, session: session, opts: opts}
}

type sectionResult struct {
	section Section
	data    any
	err     error
}

// sendProgress sends a progress update through the channel without blocking.
func (l *DashboardLoader) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Load fetches every configured section, rate limited across a worker pool.
//
// Section failures are recorded on the returned [Dashboard]. A rejected token returns [shared.ErrUnauthorized];
// a token change while loading returns [ErrStaleSession] and no dashboard.
func (l *DashboardLoader) Load(ctx context.Context, progress chan<- ProgressUpdate) (*Dashboard, error) {
	if l.service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}

	bound, cancel := ctx, context.CancelFunc(func() {})
	if l.session != nil {
		bound, cancel = l.session.Bind(ctx)
	}
	defer cancel()

	sections := l.opts.Sections
	limiter := rate.NewLimiter(rate.Limit(l.opts.RateLimit), 1)

	jobs := make(chan Section, len(sections))
	results := make(chan sectionResult, len(sections))

	var wg sync.WaitGroup
	for range min(l.opts.Workers, len(sections)) {
		wg.Add(1)
		go l.worker(bound, &wg, limiter, jobs, results, progress, len(sections))
	}

	for _, s := range sections {
		jobs <- s
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	dash := &Dashboard{Errors: make(map[Section]error)}
	completed := 0
	var unauthorized error

	for res := range results {
		completed++
		if res.err != nil {
			dash.Errors[res.section] = res.err
			if errors.Is(res.err, shared.ErrUnauthorized) && unauthorized == nil {
				unauthorized = res.err
				cancel()
			}
			l.sendProgress(progress, failedUpdate(res.section, completed, len(sections), res.err))
			continue
		}
		dash.apply(res)
		l.sendProgress(progress, fetchedUpdate(res.section, completed, len(sections), res.data))
	}

	switch {
	case unauthorized != nil:
		return nil, unauthorized
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case bound.Err() != nil:
		return nil, ErrStaleSession
	}

	dash.LoadedAt = l.opts.Now()
	return dash, nil
}

func (l *DashboardLoader) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan Section,
	results chan<- sectionResult,
	progress chan<- ProgressUpdate,
	total int,
) {
	defer wg.Done()

	for s := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- sectionResult{section: s, err: err}
			continue
		}

		l.sendProgress(progress, fetchingUpdate(s, 0, total))
		data, err := l.fetch(ctx, s)
		results <- sectionResult{section: s, data: data, err: err}
	}
}

func (l *DashboardLoader) fetch(ctx context.Context, s Section) (any, error) {
	top := services.PageOptions{TimeRange: l.opts.TimeRange}

	switch s {
	case FetchProfile:
		return l.service.Profile(ctx)
	case FetchNowPlaying:
		return l.service.NowPlaying(ctx)
	case FetchTopArtists:
		page, err := l.service.TopArtists(ctx, top)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	case FetchTopTracks:
		page, err := l.service.TopTracks(ctx, top)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	case FetchRecent:
		page, err := l.service.RecentlyPlayed(ctx, 0)
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	case FetchPlaylists:
		page, err := l.service.Playlists(ctx, services.PageOptions{})
		if err != nil {
			return nil, err
		}
		return page.Items, nil
	default:
		return nil, fmt.Errorf("%w: unknown section %d", shared.ErrInvalidArgument, s)
	}
}

func (d *Dashboard) apply(res sectionResult) {
	switch v := res.data.(type) {
	case *models.Profile:
		d.Profile = v
	case *models.NowPlaying:
		d.NowPlaying = v
	case []models.Artist:
		d.TopArtists = v
	case []models.Track:
		d.TopTracks = v
	case []models.PlayedTrack:
		d.Recent = v
	case []models.Playlist:
		d.Playlists = v
	}
}
