package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/wdx/internal/models"
)

// ExpandOpts contains limits for related-artist graph expansion.
type ExpandOpts struct {
	MaxPerArtist int // Related artists kept per expanded artist
	MaxTotal     int // Cap on the artist pool, seeds exempt
	Depth        int // Expansion hops from the seeds
	Workers      int // Concurrent related-artist fetches
}

// relatedResult pairs one artist's related fetch with its frontier index so
// results merge in a deterministic order regardless of worker scheduling.
type relatedResult struct {
	index   int
	artist  models.Artist
	related []models.Artist
	err     error
}

// Expand grows the seed set with related artists up to opts.Depth hops away.
// Seeds are always in the returned pool even when they exceed MaxTotal.
// Related artists join in frontier order, each artist's top MaxPerArtist
// first, skipping duplicates, until the pool reaches MaxTotal. A failed
// related-artist fetch skips that artist's expansion and is reported in the
// returned failures.
func (e *DiscoveryEngine) Expand(ctx context.Context, progress chan<- ProgressUpdate, seeds []models.Artist, opts ExpandOpts) ([]models.Artist, []ArtistFailure, error) {
	pool := make([]models.Artist, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		if seen[seed.ID] {
			continue
		}
		seen[seed.ID] = true
		pool = append(pool, seed)
	}

	var failures []ArtistFailure
	frontier := pool

	for depth := 0; depth < opts.Depth; depth++ {
		if len(pool) >= opts.MaxTotal || len(frontier) == 0 {
			break
		}

		results, err := e.fetchRelated(ctx, progress, frontier, opts.Workers)
		if err != nil {
			return nil, nil, err
		}

		var next []models.Artist
		for _, res := range results {
			if res.err != nil {
				if !skippable(res.err) {
					return nil, nil, res.err
				}
				e.logger.Warn("skipping related artists", "artist", res.artist.Name, "error", res.err)
				failures = append(failures, ArtistFailure{Artist: res.artist, Stage: PhaseExpandArtists, Err: res.err})
				continue
			}

			kept := 0
			for _, rel := range res.related {
				if kept >= opts.MaxPerArtist || len(pool) >= opts.MaxTotal {
					break
				}
				if seen[rel.ID] {
					continue
				}
				seen[rel.ID] = true
				pool = append(pool, rel)
				next = append(next, rel)
				kept++
			}
			if len(pool) >= opts.MaxTotal {
				break
			}
		}
		frontier = next
	}

	return pool, failures, nil
}

// fetchRelated runs the related-artist fetches for one frontier through a
// bounded worker pool, collecting results by frontier index.
func (e *DiscoveryEngine) fetchRelated(ctx context.Context, progress chan<- ProgressUpdate, frontier []models.Artist, workers int) ([]relatedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if workers > len(frontier) {
		workers = len(frontier)
	}

	jobs := make(chan int, len(frontier))
	results := make([]relatedResult, len(frontier))
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				artist := frontier[i]
				related, err := e.catalog.RelatedArtists(ctx, artist.ID)
				results[i] = relatedResult{index: i, artist: artist, related: related, err: err}

				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				e.sendProgress(progress, expandUpdate(done, len(frontier)))
			}
		}()
	}

	for i := range frontier {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
