package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// SyncRunRepository persists sync run history, implementing tasks.HistoryRecorder.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Record inserts a completed or failed sync run with its unmatched songs.
func (r *SyncRunRepository) Record(run *models.SyncRun) error {
	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.ID = shared.GenerateID()
	run.Sequence = sequence
	run.UpdatedAt = time.Now()

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sync_runs (id, sequence, source_service, dest_service, playlist_name, dest_playlist_id, total, matched, added, unmatched, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		run.ID,
		run.Sequence,
		run.SourceService,
		run.DestinationService,
		run.PlaylistName,
		run.DestinationID,
		run.Total,
		run.Matched,
		run.Added,
		run.Unmatched,
		run.Status,
		run.Error,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	for _, song := range run.Songs {
		_, err = tx.Exec(`
			INSERT INTO sync_run_songs (id, run_id, position, title, artist, isrc, matched, dest_track_id, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			shared.GenerateID(),
			run.ID,
			song.Position,
			song.Title,
			song.Artist,
			song.ISRC,
			song.Matched,
			song.DestTrackID,
			song.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert sync run song: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	return nil
}

// Get retrieves a sync run by ID, including its recorded songs.
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	run, err := scanSyncRun(r.db.QueryRow(selectSyncRuns+` WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT id, run_id, position, title, artist, isrc, matched, dest_track_id, reason
		FROM sync_run_songs
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync run songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			song        models.SyncRunSong
			isrc        sql.NullString
			destTrackID sql.NullString
			reason      sql.NullString
		)
		err := rows.Scan(&song.ID, &song.RunID, &song.Position, &song.Title, &song.Artist, &isrc, &song.Matched, &destTrackID, &reason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run song: %w", err)
		}
		song.ISRC = isrc.String
		song.DestTrackID = destTrackID.String
		song.Reason = reason.String
		run.Songs = append(run.Songs, song)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return run, nil
}

// List retrieves sync runs, most recent first, capped at limit (0 for all).
func (r *SyncRunRepository) List(limit int) ([]*models.SyncRun, error) {
	query := selectSyncRuns + ` ORDER BY sequence DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

const selectSyncRuns = `
	SELECT id, sequence, source_service, dest_service, playlist_name, dest_playlist_id, total, matched, added, unmatched, status, error, created_at, updated_at
	FROM sync_runs`

func scanSyncRun(scan func(...any) error) (*models.SyncRun, error) {
	var (
		run      models.SyncRun
		destID   sql.NullString
		runError sql.NullString
	)

	err := scan(
		&run.ID,
		&run.Sequence,
		&run.SourceService,
		&run.DestinationService,
		&run.PlaylistName,
		&destID,
		&run.Total,
		&run.Matched,
		&run.Added,
		&run.Unmatched,
		&run.Status,
		&runError,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.DestinationID = destID.String
	run.Error = runError.String
	return &run, nil
}
