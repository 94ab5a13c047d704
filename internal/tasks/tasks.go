package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/services"
	"github.com/desertthunder/wdx/internal/shared"
)

const (
	defaultWindowDays   = 7
	defaultMaxPerArtist = 5
	defaultMaxArtists   = 50
	defaultDepth        = 1
	defaultWorkers      = 5
	maxWorkers          = 10
	defaultReleasePages = 10
	playlistNamePrefix  = "Weekly Discoveries - "
	playlistDateLayout  = "2006-01-02"
	playlistDescription = "Recent releases from your followed artists and their related artists (last %d days). Generated on %s."
)

// ArtistFailure records an artist excluded from a run by a contained fetch failure.
type ArtistFailure struct {
	Artist models.Artist // Artist whose fetch failed
	Stage  Phase         // Stage the failure occurred in
	Err    error         // Underlying error
}

// RunOpts contains configuration for a discovery run.
type RunOpts struct {
	Window              time.Duration // Recency window (default: 7 days)
	AsOf                time.Time     // Upper bound of the window (default: now, UTC)
	MaxRelatedPerArtist int           // Related artists kept per seed (default: 5)
	MaxArtists          int           // Total artist cap, seeds exempt (default: 50)
	Depth               int           // Related-artist hops (default: 1)
	Workers             int           // Concurrent fetch workers (default: 5, max: 10)
	ReleasePageLimit    int           // Releases fetched per page (default: 10)
	StrictDates         bool          // Disable the end-of-period fallback for partial-precision dates
	DryRun              bool          // Discover but skip publishing
}

// normalize fills defaults in place and returns the options.
func (o RunOpts) normalize() RunOpts {
	if o.Window <= 0 {
		o.Window = defaultWindowDays * 24 * time.Hour
	}
	if o.AsOf.IsZero() {
		o.AsOf = time.Now().UTC()
	}
	if o.MaxRelatedPerArtist <= 0 {
		o.MaxRelatedPerArtist = defaultMaxPerArtist
	}
	if o.MaxArtists <= 0 {
		o.MaxArtists = defaultMaxArtists
	}
	if o.Depth <= 0 {
		o.Depth = defaultDepth
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.Workers > maxWorkers {
		o.Workers = maxWorkers
	}
	if o.ReleasePageLimit <= 0 {
		o.ReleasePageLimit = defaultReleasePages
	}
	return o
}

// RunResult contains all data from a completed discovery run.
type RunResult struct {
	User         *models.User           // Authenticated user the run ran for
	Set          models.DiscoveredSet   // Seeds, expanded artists, and deduplicated tracks
	ReleaseCount int                    // In-window releases that contributed tracks
	Skipped      []ArtistFailure        // Artists excluded by contained failures
	Target       *models.PlaylistTarget // Published playlist, nil for dry runs
	Partial      bool                   // True when Skipped is non-empty
}

// PlaylistStore persists one published playlist per owner and target date.
// Implemented by repositories.PlaylistRepository.
type PlaylistStore interface {
	GetByOwnerAndDate(ownerID, targetDate string) (*models.PlaylistRecord, error)
	Create(record *models.PlaylistRecord) error
	Update(record *models.PlaylistRecord) error
}

// RunStore persists run history. Implemented by repositories.RunRepository.
type RunStore interface {
	Create(record *models.RunRecord) error
	Update(record *models.RunRecord) error
}

// DiscoveryEngine orchestrates the discovery pipeline stages.
// Contains dependencies on the catalog, the playlist publisher, and optional stores.
type DiscoveryEngine struct {
	catalog   services.Catalog
	publisher services.Publisher
	playlists PlaylistStore
	runs      RunStore
	logger    *log.Logger
}

// NewDiscoveryEngine creates an engine with the provided collaborators.
// The stores may be nil; runs then skip persistence.
func NewDiscoveryEngine(catalog services.Catalog, publisher services.Publisher, playlists PlaylistStore, runs RunStore, logger *log.Logger) *DiscoveryEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &DiscoveryEngine{
		catalog:   catalog,
		publisher: publisher,
		playlists: playlists,
		runs:      runs,
		logger:    logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *DiscoveryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Run executes the full pipeline: profile → followed → expand → scan →
// aggregate → publish. Partial per-artist failures never abort the run;
// cancellation and credential expiry do, and partial results are discarded
// rather than published.
func (e *DiscoveryEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts RunOpts) (*RunResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	opts = opts.normalize()

	e.sendProgress(progress, fetchProfileUpdate())
	user, err := e.catalog.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch profile: %v", unwrapAuth(err), err)
	}

	record := e.startRecord(user.ID)

	result, runErr := e.discover(ctx, progress, user, opts)
	if runErr != nil {
		e.finishRecord(record, nil, runErr)
		return nil, runErr
	}

	if !opts.DryRun {
		e.sendProgress(progress, publishUpdate(len(result.Set.Tracks)))
		target, err := e.publish(ctx, user, result.Set.Tracks, opts)
		if err != nil {
			e.finishRecord(record, result, err)
			return nil, err
		}
		result.Target = target
		e.sendProgress(progress, publishedUpdate(target))
	}

	e.finishRecord(record, result, nil)
	return result, nil
}

// discover runs the read-only stages and assembles the DiscoveredSet.
func (e *DiscoveryEngine) discover(ctx context.Context, progress chan<- ProgressUpdate, user *models.User, opts RunOpts) (*RunResult, error) {
	e.sendProgress(progress, fetchFollowedUpdate())
	seeds, err := e.catalog.FollowedArtists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch followed artists: %v", unwrapAuth(err), err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: user %s follows no artists", shared.ErrNoFollowedArtists, user.ID)
	}

	artists, expandSkips, err := e.Expand(ctx, progress, seeds, ExpandOpts{
		MaxPerArtist: opts.MaxRelatedPerArtist,
		MaxTotal:     opts.MaxArtists,
		Depth:        opts.Depth,
		Workers:      opts.Workers,
	})
	if err != nil {
		return nil, err
	}

	scan, scanSkips, err := e.Scan(ctx, progress, artists, ScanOpts{
		Window:      opts.Window,
		AsOf:        opts.AsOf,
		Workers:     opts.Workers,
		PageLimit:   opts.ReleasePageLimit,
		StrictDates: opts.StrictDates,
	})
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, aggregateUpdate())
	tracks := Aggregate(scan)

	skipped := append(expandSkips, scanSkips...)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %d artists scanned, window %s ending %s",
			shared.ErrNoRecentReleases, len(artists), opts.Window, opts.AsOf.Format(playlistDateLayout))
	}

	releases := 0
	for _, rs := range scan.Releases {
		releases += len(rs)
	}

	return &RunResult{
		User: user,
		Set: models.DiscoveredSet{
			Seeds:   seeds,
			Artists: artists,
			Tracks:  tracks,
		},
		ReleaseCount: releases,
		Skipped:      skipped,
		Partial:      len(skipped) > 0,
	}, nil
}

// startRecord opens a run history row when a store is configured.
func (e *DiscoveryEngine) startRecord(ownerID string) *models.RunRecord {
	if e.runs == nil {
		return nil
	}
	record := models.NewRunRecord(0, ownerID)
	if err := e.runs.Create(record); err != nil {
		e.logger.Warn("failed to record run start", "error", err)
		return nil
	}
	return record
}

// finishRecord closes the run history row with counts and outcome.
func (e *DiscoveryEngine) finishRecord(record *models.RunRecord, result *RunResult, runErr error) {
	if record == nil || e.runs == nil {
		return
	}

	status := models.RunStatusSuccess
	switch {
	case runErr != nil:
		status = models.RunStatusFailed
	case result != nil && result.Partial:
		status = models.RunStatusPartial
	}

	if result != nil {
		record.SeedCount = len(result.Set.Seeds)
		record.ArtistCount = len(result.Set.Artists)
		record.ReleaseCount = result.ReleaseCount
		record.TrackCount = len(result.Set.Tracks)
		record.SkippedCount = len(result.Skipped)
	}
	record.Finish(status, runErr)

	if err := e.runs.Update(record); err != nil {
		e.logger.Warn("failed to record run outcome", "error", err)
	}
}

// unwrapAuth maps credential failures to their sentinel so the CLI can offer
// reauthorization; everything else stays a generic API failure.
func unwrapAuth(err error) error {
	if errors.Is(err, shared.ErrTokenExpired) {
		return shared.ErrTokenExpired
	}
	if errors.Is(err, shared.ErrAuthFailed) {
		return shared.ErrAuthFailed
	}
	return shared.ErrAPIRequest
}

// skippable reports whether a per-artist fetch failure should be contained at
// the artist boundary. Credential expiry and cancellation abort the run.
func skippable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, shared.ErrTokenExpired) {
		return false
	}
	return true
}
