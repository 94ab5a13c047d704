package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/wdx/internal/formatter"
	"github.com/desertthunder/wdx/internal/shared"
	"github.com/desertthunder/wdx/internal/tasks"
	"github.com/urfave/cli/v3"
)

const resultPreviewLimit = 10

// runSummary is the JSON shape of a completed run for --json output.
type runSummary struct {
	Playlist     string   `json:"playlist,omitempty"`
	URL          string   `json:"url,omitempty"`
	DryRun       bool     `json:"dry_run"`
	SeedCount    int      `json:"seed_count"`
	ArtistCount  int      `json:"artist_count"`
	ReleaseCount int      `json:"release_count"`
	TrackCount   int      `json:"track_count"`
	Skipped      []string `json:"skipped,omitempty"`
}

// Generate runs the discovery pipeline and publishes the weekly playlist.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if r.catalog == nil || r.publisher == nil {
		return fmt.Errorf("%w: Spotify credentials not configured, run 'wdx setup' then 'wdx auth'", shared.ErrServiceUnavailable)
	}

	opts := r.runOpts(cmd)
	if asOf := cmd.String("as-of"); asOf != "" {
		ts, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return fmt.Errorf("%w: --as-of must be YYYY-MM-DD", shared.ErrInvalidFlag)
		}
		opts.AsOf = ts
	}

	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("running without run history", "error", err)
		db = nil
	}
	if db != nil {
		defer db.Close()
	}

	engine := r.newEngine(db)

	result, err := r.runEngine(ctx, engine, opts)
	if err != nil {
		if reauthed, authErr := r.handleSpotifyAuthError(ctx, err, cmd); reauthed {
			if authErr != nil {
				return authErr
			}
			if result, err = r.runEngine(ctx, engine, opts); err != nil {
				return r.describeRunError(err)
			}
		} else {
			return r.describeRunError(err)
		}
	}

	if exportBase := cmd.String("export"); exportBase != "" {
		asOf := opts.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		export := &formatter.DiscoveryExport{
			PlaylistName: tasks.PlaylistName(asOf),
			GeneratedOn:  asOf.Format("2006-01-02"),
			Set:          result.Set,
		}
		files, err := formatter.WriteCSVExport(export, exportBase)
		if err != nil {
			return fmt.Errorf("failed to export tracks: %w", err)
		}
		r.writePlain("✓ Tracks exported to %s\n", files.TracksFile)
	}

	if cmd.Bool("json") {
		summary := runSummary{
			DryRun:       opts.DryRun,
			SeedCount:    len(result.Set.Seeds),
			ArtistCount:  len(result.Set.Artists),
			ReleaseCount: result.ReleaseCount,
			TrackCount:   len(result.Set.Tracks),
		}
		if result.Target != nil {
			summary.Playlist = result.Target.Name
			summary.URL = result.Target.URL
		}
		for _, failure := range result.Skipped {
			summary.Skipped = append(summary.Skipped, failure.Artist.Name)
		}
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}

	r.printRunResult(result, opts)
	return nil
}

// runEngine executes a run while draining progress updates into log output.
func (r *Runner) runEngine(ctx context.Context, engine *tasks.DiscoveryEngine, opts tasks.RunOpts) (*tasks.RunResult, error) {
	progress := make(chan tasks.ProgressUpdate, 50)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message)
		}
	}()

	result, err := engine.Run(ctx, progress, opts)
	close(progress)
	wg.Wait()

	return result, err
}

func (r *Runner) printRunResult(result *tasks.RunResult, opts tasks.RunOpts) {
	if result.Target != nil {
		r.writePlainHeader("✓ " + result.Target.Name)
		if result.Target.URL != "" {
			r.writePlain("%s\n", result.Target.URL)
		}
	} else {
		r.writePlainHeader("✓ Dry run complete (no playlist written)")
	}

	if result.User != nil && result.User.DisplayName != "" {
		r.writePlain("Generated for %s\n", result.User.DisplayName)
	}

	r.writePlain("\nSeeds: %d\n", len(result.Set.Seeds))
	r.writePlain("Artists scanned: %d\n", len(result.Set.Artists))
	r.writePlain("Releases in window: %d\n", result.ReleaseCount)
	r.writePlain("Tracks: %d\n", len(result.Set.Tracks))

	limit := resultPreviewLimit
	if len(result.Set.Tracks) < limit {
		limit = len(result.Set.Tracks)
	}
	if limit > 0 {
		r.writePlain("\nPreview:\n")
		for i, track := range result.Set.Tracks[:limit] {
			r.writePlain("%d. %s\n", i+1, track.Title)
		}
		if rest := len(result.Set.Tracks) - limit; rest > 0 {
			r.writePlain("… and %d more\n", rest)
		}
	}

	if len(result.Skipped) > 0 {
		r.writePlain("\n⚠ Skipped %d artists after repeated failures:\n", len(result.Skipped))
		for _, failure := range result.Skipped {
			r.writePlain("  • %s\n", failure.Artist.Name)
		}
	}
}

// describeRunError maps total-failure sentinels to actionable messages.
func (r *Runner) describeRunError(err error) error {
	switch {
	case errors.Is(err, shared.ErrNoFollowedArtists):
		r.writePlain("No followed artists found. Follow some artists on Spotify and try again.\n")
	case errors.Is(err, shared.ErrNoRecentReleases):
		r.writePlain("No recent releases found in the window. Try a wider --window.\n")
	}
	return err
}
