package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/repositories"
	"github.com/urfave/cli/v3"
)

// runHistoryEntry is the JSON shape of a run record for --json output.
type runHistoryEntry struct {
	Status       string `json:"status"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	SeedCount    int    `json:"seed_count"`
	ArtistCount  int    `json:"artist_count"`
	ReleaseCount int    `json:"release_count"`
	TrackCount   int    `json:"track_count"`
	SkippedCount int    `json:"skipped_count"`
	Error        string `json:"error,omitempty"`
}

// History lists past discovery runs from the local database.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	status := cmd.String("status")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)
	criteria := map[string]any{"limit": limit}
	if status != "" {
		criteria["status"] = status
	}

	records, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if useJSON {
		entries := make([]runHistoryEntry, 0, len(records))
		for _, record := range records {
			entries = append(entries, toHistoryEntry(record))
		}
		return r.writeJSON(entries, pretty)
	}

	if len(records) == 0 {
		r.writePlain("No runs recorded yet. Run 'wdx generate' first.\n")
		return nil
	}

	r.writePlain("Last %d runs:\n\n", len(records))
	for i, record := range records {
		marker := statusMarker(record.Status)
		r.writePlain("%d. %s %s  %s\n", i+1, marker, record.Status, record.StartedAt.Format(time.RFC1123))
		r.writePlain("   Artists: %d  Releases: %d  Tracks: %d\n", record.ArtistCount, record.ReleaseCount, record.TrackCount)
		if record.SkippedCount > 0 {
			r.writePlain("   Skipped artists: %d\n", record.SkippedCount)
		}
		if record.Error != "" {
			r.writePlain("   Error: %s\n", record.Error)
		}
		r.writePlain("\n")
	}

	return nil
}

func toHistoryEntry(record *models.RunRecord) runHistoryEntry {
	entry := runHistoryEntry{
		Status:       string(record.Status),
		StartedAt:    record.StartedAt.Format(time.RFC3339),
		SeedCount:    record.SeedCount,
		ArtistCount:  record.ArtistCount,
		ReleaseCount: record.ReleaseCount,
		TrackCount:   record.TrackCount,
		SkippedCount: record.SkippedCount,
		Error:        record.Error,
	}
	if !record.FinishedAt.IsZero() {
		entry.FinishedAt = record.FinishedAt.Format(time.RFC3339)
	}
	return entry
}

func statusMarker(status models.RunStatus) string {
	switch status {
	case models.RunStatusSuccess:
		return "✓"
	case models.RunStatusPartial:
		return "⚠"
	case models.RunStatusFailed:
		return "✗"
	default:
		return "…"
	}
}
