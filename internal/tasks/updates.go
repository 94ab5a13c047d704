package tasks

import (
	"fmt"

	"github.com/desertthunder/wdx/internal/models"
)

// Phase identifies the pipeline stage a progress update belongs to.
type Phase int

const (
	PhaseFetchProfile Phase = iota
	PhaseFetchFollowed
	PhaseExpandArtists
	PhaseScanReleases
	PhaseAggregateTracks
	PhasePublishPlaylist
)

// String returns the phase name for display.
func (p Phase) String() string {
	switch p {
	case PhaseFetchProfile:
		return "Fetching profile"
	case PhaseFetchFollowed:
		return "Fetching followed artists"
	case PhaseExpandArtists:
		return "Expanding related artists"
	case PhaseScanReleases:
		return "Scanning releases"
	case PhaseAggregateTracks:
		return "Aggregating tracks"
	case PhasePublishPlaylist:
		return "Publishing playlist"
	default:
		return "Working"
	}
}

// ProgressUpdate carries stage progress out of a running pipeline.
// Current and Total are zero when a stage has no unit count.
type ProgressUpdate struct {
	Phase   Phase
	Message string
	Current int
	Total   int
	Target  *models.PlaylistTarget // Set only by the final publish update
	Done    bool
}

func fetchProfileUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseFetchProfile, Message: "Fetching your profile"}
}

func fetchFollowedUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseFetchFollowed, Message: "Fetching followed artists"}
}

func expandUpdate(current, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseExpandArtists,
		Message: fmt.Sprintf("Expanding related artists (%d/%d)", current, total),
		Current: current,
		Total:   total,
	}
}

func scanUpdate(current, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseScanReleases,
		Message: fmt.Sprintf("Scanning releases (%d/%d)", current, total),
		Current: current,
		Total:   total,
	}
}

func aggregateUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseAggregateTracks, Message: "Deduplicating tracks"}
}

func publishUpdate(trackCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePublishPlaylist,
		Message: fmt.Sprintf("Publishing %d tracks", trackCount),
		Total:   trackCount,
	}
}

func publishedUpdate(target *models.PlaylistTarget) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhasePublishPlaylist,
		Message: fmt.Sprintf("Published %s", target.Name),
		Target:  target,
		Done:    true,
	}
}
