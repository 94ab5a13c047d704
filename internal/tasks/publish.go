package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/services"
	"github.com/desertthunder/wdx/internal/shared"
)

// PlaylistName returns the canonical playlist name for a target date.
func PlaylistName(asOf time.Time) string {
	return playlistNamePrefix + asOf.Format(playlistDateLayout)
}

// publish places the aggregated tracks into the day's playlist, reusing an
// existing playlist when one already exists for the owner and target date.
// The first batch replaces the playlist contents so reruns never duplicate
// tracks; remaining batches append.
func (e *DiscoveryEngine) publish(ctx context.Context, user *models.User, tracks []models.Track, opts RunOpts) (*models.PlaylistTarget, error) {
	if e.publisher == nil {
		return nil, fmt.Errorf("%w: publisher not initialized", shared.ErrServiceUnavailable)
	}

	targetDate := opts.AsOf.Format(playlistDateLayout)
	name := PlaylistName(opts.AsOf)
	days := int(opts.Window.Hours() / 24)
	description := fmt.Sprintf(playlistDescription, days, targetDate)

	target, record, err := e.resolvePlaylist(ctx, user.ID, name, description, targetDate)
	if err != nil {
		return nil, err
	}

	uris := make([]string, len(tracks))
	for i, track := range tracks {
		uris[i] = track.URI
	}

	for start := 0; start < len(uris); start += services.MaxTracksPerRequest {
		end := start + services.MaxTracksPerRequest
		if end > len(uris) {
			end = len(uris)
		}
		batch := uris[start:end]

		if start == 0 {
			err = e.publisher.ReplaceTracks(ctx, target.PlaylistID, batch)
		} else {
			err = e.publisher.AppendTracks(ctx, target.PlaylistID, batch)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to add tracks to playlist %s: %w", target.PlaylistID, err)
		}
	}

	e.savePlaylistRecord(record, target, targetDate, len(tracks))
	return target, nil
}

// resolvePlaylist finds or creates the playlist for a target date. The local
// record is checked first, then the owner's playlists by name, and a new
// playlist is created only when both misses.
func (e *DiscoveryEngine) resolvePlaylist(ctx context.Context, ownerID, name, description, targetDate string) (*models.PlaylistTarget, *models.PlaylistRecord, error) {
	if e.playlists != nil {
		record, err := e.playlists.GetByOwnerAndDate(ownerID, targetDate)
		if err == nil && record != nil {
			target := record.Target()
			return &target, record, nil
		}
		if err != nil && !errors.Is(err, shared.ErrPlaylistNotFound) {
			e.logger.Warn("playlist record lookup failed", "error", err)
		}
	}

	target, err := e.publisher.FindPlaylistByName(ctx, name)
	if err == nil {
		return target, nil, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, nil, fmt.Errorf("failed to search playlists: %w", err)
	}

	target, err = e.publisher.CreatePlaylist(ctx, ownerID, name, description)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	return target, nil, nil
}

// savePlaylistRecord persists the published playlist for idempotent reruns.
func (e *DiscoveryEngine) savePlaylistRecord(record *models.PlaylistRecord, target *models.PlaylistTarget, targetDate string, trackCount int) {
	if e.playlists == nil {
		return
	}

	if record != nil {
		record.TrackCount = trackCount
		record.Touch()
		if err := e.playlists.Update(record); err != nil {
			e.logger.Warn("failed to update playlist record", "error", err)
		}
		return
	}

	record = models.NewPlaylistRecord(0, *target, targetDate, trackCount)
	if err := e.playlists.Create(record); err != nil {
		e.logger.Warn("failed to save playlist record", "error", err)
	}
}
