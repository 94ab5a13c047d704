package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/wdx/internal/models"
)

// RunRepository persists discovery run history.
//
// Satisfies the tasks package's run store.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record with a generated sequence number
func (r *RunRepository) Create(record *models.RunRecord) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetSequence(sequence)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (id, sequence, owner_id, status, seed_count, artist_count, release_count, track_count, skipped_count, playlist_id, error, started_at, finished_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.ID(),
		record.Sequence(),
		record.OwnerID,
		record.Status,
		record.SeedCount,
		record.ArtistCount,
		record.ReleaseCount,
		record.TrackCount,
		record.SkippedCount,
		nullString(record.PlaylistID),
		record.Error,
		record.StartedAt,
		nullTime(record.FinishedAt),
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run record by ID
func (r *RunRepository) Get(id string) (*models.RunRecord, error) {
	query := selectRun + ` WHERE id = ?`
	record, err := r.scan(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return record, err
}

// Update modifies an existing run record
func (r *RunRepository) Update(record *models.RunRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE runs
		SET status = ?, seed_count = ?, artist_count = ?, release_count = ?, track_count = ?, skipped_count = ?, playlist_id = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		record.Status,
		record.SeedCount,
		record.ArtistCount,
		record.ReleaseCount,
		record.TrackCount,
		record.SkippedCount,
		nullString(record.PlaylistID),
		record.Error,
		nullTime(record.FinishedAt),
		time.Now().UTC(),
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", record.ID())
	}

	return nil
}

// Delete removes a run record by ID
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// List retrieves run records matching the given criteria, most recent first.
// Supports "owner_id" (string), "status" (string), and "limit" (int) criteria.
func (r *RunRepository) List(criteria map[string]any) ([]*models.RunRecord, error) {
	query := selectRun + ` WHERE 1 = 1`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(string); ok && ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY started_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []*models.RunRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

const selectRun = `
	SELECT id, sequence, owner_id, status, seed_count, artist_count, release_count, track_count, skipped_count, playlist_id, error, started_at, finished_at, created_at, updated_at
	FROM runs`

func (r *RunRepository) scan(row rowScanner) (*models.RunRecord, error) {
	var (
		id           string
		sequence     int
		ownerID      string
		status       string
		seedCount    int
		artistCount  int
		releaseCount int
		trackCount   int
		skippedCount int
		playlistID   sql.NullString
		errText      string
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&id, &sequence, &ownerID, &status, &seedCount, &artistCount, &releaseCount, &trackCount, &skippedCount, &playlistID, &errText, &startedAt, &finishedAt, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	record := &models.RunRecord{
		OwnerID:      ownerID,
		Status:       models.RunStatus(status),
		SeedCount:    seedCount,
		ArtistCount:  artistCount,
		ReleaseCount: releaseCount,
		TrackCount:   trackCount,
		SkippedCount: skippedCount,
		PlaylistID:   playlistID.String,
		Error:        errText,
		StartedAt:    startedAt,
	}
	if finishedAt.Valid {
		record.FinishedAt = finishedAt.Time
	}
	record.Restore(id, sequence, createdAt, updatedAt)

	return record, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
