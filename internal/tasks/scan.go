package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/wdx/internal/models"
)

// ScanOpts contains the recency window and fetch limits for a release scan.
type ScanOpts struct {
	Window      time.Duration // Recency window
	AsOf        time.Time     // Upper bound of the window
	Workers     int           // Concurrent artist scans
	PageLimit   int           // Releases fetched per page
	StrictDates bool          // Exclude partial-precision dates instead of resolving them
}

// ScanResult holds in-window releases with their tracks, keyed by artist and
// ordered by the scanned artist pool.
type ScanResult struct {
	Artists  []models.Artist             // Scan order, a subset of the input pool
	Releases map[string][]models.Release // Artist ID to that artist's in-window releases
}

// scanJob pairs one artist's scan outcome with its pool index.
type scanJob struct {
	index    int
	artist   models.Artist
	releases []models.Release
	err      error
}

// Scan fetches each artist's recent releases and their tracks through a
// bounded worker pool. Releases outside the window are excluded; partial
// precision dates resolve to their period end unless StrictDates is set.
// A failed artist drops only that artist's releases and is reported in the
// returned failures.
func (e *DiscoveryEngine) Scan(ctx context.Context, progress chan<- ProgressUpdate, artists []models.Artist, opts ScanOpts) (*ScanResult, []ArtistFailure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(artists) {
		workers = len(artists)
	}

	jobs := make(chan int, len(artists))
	results := make([]scanJob, len(artists))
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				artist := artists[i]
				releases, err := e.scanArtist(ctx, artist, opts)
				results[i] = scanJob{index: i, artist: artist, releases: releases, err: err}

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				e.sendProgress(progress, scanUpdate(done, len(artists)))
			}
		}()
	}

	for i := range artists {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	scan := &ScanResult{Releases: make(map[string][]models.Release, len(artists))}
	var failures []ArtistFailure
	for _, res := range results {
		if res.err != nil {
			if !skippable(res.err) {
				return nil, nil, res.err
			}
			e.logger.Warn("skipping artist releases", "artist", res.artist.Name, "error", res.err)
			failures = append(failures, ArtistFailure{Artist: res.artist, Stage: PhaseScanReleases, Err: res.err})
			continue
		}
		scan.Artists = append(scan.Artists, res.artist)
		scan.Releases[res.artist.ID] = res.releases
	}
	return scan, failures, nil
}

// scanArtist pages through one artist's releases newest first and returns the
// in-window ones with tracks attached. Paging stops early once a full page
// falls entirely before the window start.
func (e *DiscoveryEngine) scanArtist(ctx context.Context, artist models.Artist, opts ScanOpts) ([]models.Release, error) {
	monthEnd := !opts.StrictDates
	windowStart := opts.AsOf.Add(-opts.Window)

	var recent []models.Release
	offset := 0
	for {
		page, more, err := e.catalog.ArtistReleases(ctx, artist.ID, opts.PageLimit, offset)
		if err != nil {
			return nil, err
		}

		allOlder := len(page) > 0
		for _, release := range page {
			if release.Date.InWindow(opts.AsOf, opts.Window, monthEnd) {
				tracks, err := e.catalog.ReleaseTracks(ctx, release.ID)
				if err != nil {
					return nil, err
				}
				release.Tracks = tracks
				recent = append(recent, release)
			}
			if !release.Date.Resolve(monthEnd).Before(windowStart) {
				allOlder = false
			}
		}

		if !more || allOlder {
			return recent, nil
		}
		offset += len(page)
	}
}
