package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/wdx/internal/shared"
)

// RunStatus enumerates the terminal states of a discovery run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial" // completed with skipped artists
	RunStatusFailed  RunStatus = "failed"
)

// base carries the common persistent model fields.
type base struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
}

func newBase(sequence int) base {
	now := time.Now().UTC()
	return base{
		id:        shared.GenerateID(),
		sequence:  sequence,
		createdAt: now,
		updatedAt: now,
	}
}

func (b *base) ID() string           { return b.id }
func (b *base) Sequence() int        { return b.sequence }
func (b *base) CreatedAt() time.Time { return b.createdAt }
func (b *base) UpdatedAt() time.Time { return b.updatedAt }

// SetSequence assigns the sequence number allocated by the repository.
func (b *base) SetSequence(seq int) { b.sequence = seq }

// Touch bumps the updated timestamp.
func (b *base) Touch() { b.updatedAt = time.Now().UTC() }

// Restore rehydrates base fields from database values.
func (b *base) Restore(id string, sequence int, createdAt, updatedAt time.Time) {
	b.id = id
	b.sequence = sequence
	b.createdAt = createdAt
	b.updatedAt = updatedAt
}

// PlaylistRecord is a published discovery playlist. One record exists per
// owner and target date; re-running a generation for the same day updates the
// record instead of creating a second playlist.
type PlaylistRecord struct {
	base
	OwnerID    string
	ServiceID  string // playlist ID on the catalog service
	Name       string
	TargetDate string // YYYY-MM-DD, the run's as-of day
	TrackCount int
	URL        string
}

// NewPlaylistRecord creates a playlist record for the given target.
func NewPlaylistRecord(sequence int, target PlaylistTarget, targetDate string, trackCount int) *PlaylistRecord {
	return &PlaylistRecord{
		base:       newBase(sequence),
		OwnerID:    target.OwnerID,
		ServiceID:  target.PlaylistID,
		Name:       target.Name,
		TargetDate: targetDate,
		TrackCount: trackCount,
		URL:        target.URL,
	}
}

// Target converts the record back to the pipeline's PlaylistTarget form.
func (p *PlaylistRecord) Target() PlaylistTarget {
	return PlaylistTarget{
		PlaylistID: p.ServiceID,
		OwnerID:    p.OwnerID,
		Name:       p.Name,
		URL:        p.URL,
	}
}

func (p *PlaylistRecord) Validate() error {
	if p.OwnerID == "" {
		return fmt.Errorf("playlist record missing owner id")
	}
	if p.ServiceID == "" {
		return fmt.Errorf("playlist record missing service id")
	}
	if p.TargetDate == "" {
		return fmt.Errorf("playlist record missing target date")
	}
	return nil
}

// RunRecord is the history row for a single discovery run.
type RunRecord struct {
	base
	OwnerID      string
	Status       RunStatus
	SeedCount    int
	ArtistCount  int
	ReleaseCount int
	TrackCount   int
	SkippedCount int
	PlaylistID   string // PlaylistRecord ID, empty for dry runs and failures
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// NewRunRecord creates a run record in the running state.
func NewRunRecord(sequence int, ownerID string) *RunRecord {
	return &RunRecord{
		base:      newBase(sequence),
		OwnerID:   ownerID,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finish marks the run complete with the given status.
func (r *RunRecord) Finish(status RunStatus, runErr error) {
	r.Status = status
	r.FinishedAt = time.Now().UTC()
	if runErr != nil {
		r.Error = runErr.Error()
	}
	r.Touch()
}

func (r *RunRecord) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("run record missing owner id")
	}
	if r.Status == "" {
		return fmt.Errorf("run record missing status")
	}
	return nil
}
