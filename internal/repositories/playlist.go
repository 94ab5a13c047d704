package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/shared"
)

// PlaylistRepository persists published playlist records.
//
// One record exists per owner and target date, enforced by a unique index.
// Satisfies the tasks package's playlist store.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Create inserts a new playlist record with a generated sequence number
func (r *PlaylistRepository) Create(record *models.PlaylistRecord) error {
	sequence, err := NextSequence(r.db, "playlists")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	record.SetSequence(sequence)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (id, sequence, owner_id, service_id, name, target_date, track_count, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		record.ID(),
		record.Sequence(),
		record.OwnerID,
		record.ServiceID,
		record.Name,
		record.TargetDate,
		record.TrackCount,
		record.URL,
		record.CreatedAt(),
		record.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist record by ID
func (r *PlaylistRepository) Get(id string) (*models.PlaylistRecord, error) {
	query := selectPlaylist + ` WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByOwnerAndDate retrieves the playlist record for an owner's target date.
// Returns shared.ErrPlaylistNotFound (wrapped) when no record exists.
func (r *PlaylistRepository) GetByOwnerAndDate(ownerID, targetDate string) (*models.PlaylistRecord, error) {
	query := selectPlaylist + ` WHERE owner_id = ? AND target_date = ?`
	return r.scanOne(r.db.QueryRow(query, ownerID, targetDate))
}

// Update modifies an existing playlist record
func (r *PlaylistRepository) Update(record *models.PlaylistRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE playlists
		SET name = ?, track_count = ?, url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		record.Name,
		record.TrackCount,
		record.URL,
		time.Now().UTC(),
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, record.ID())
	}

	return nil
}

// Delete removes a playlist record by ID
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}

	return nil
}

// List retrieves playlist records matching the given criteria, newest target date first
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PlaylistRecord, error) {
	query := selectPlaylist + ` WHERE 1 = 1`
	args := []any{}

	if ownerID, ok := criteria["owner_id"].(string); ok && ownerID != "" {
		query += " AND owner_id = ?"
		args = append(args, ownerID)
	}

	query += " ORDER BY target_date DESC, sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var records []*models.PlaylistRecord
	for rows.Next() {
		record, err := r.scanRow(rows)
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

const selectPlaylist = `
	SELECT id, sequence, owner_id, service_id, name, target_date, track_count, url, created_at, updated_at
	FROM playlists`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single row into a [models.PlaylistRecord]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.PlaylistRecord, error) {
	record, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, shared.ErrPlaylistNotFound
	}
	return record, err
}

// scanRow scans a row from [sql.Rows] into a [models.PlaylistRecord]
func (r *PlaylistRepository) scanRow(rows *sql.Rows) (*models.PlaylistRecord, error) {
	return r.scan(rows)
}

func (r *PlaylistRepository) scan(row rowScanner) (*models.PlaylistRecord, error) {
	var (
		id         string
		sequence   int
		ownerID    string
		serviceID  string
		name       string
		targetDate string
		trackCount int
		url        string
		createdAt  time.Time
		updatedAt  time.Time
	)

	err := row.Scan(&id, &sequence, &ownerID, &serviceID, &name, &targetDate, &trackCount, &url, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	record := &models.PlaylistRecord{
		OwnerID:    ownerID,
		ServiceID:  serviceID,
		Name:       name,
		TargetDate: targetDate,
		TrackCount: trackCount,
		URL:        url,
	}
	record.Restore(id, sequence, createdAt, updatedAt)

	return record, nil
}
