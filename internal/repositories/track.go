package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

// artistSeparator joins artist credits into one column; chosen so commas in
// artist names survive the round trip.
const artistSeparator = " ‖ "

// TrackRepository implements models.Repository[*models.PersistedTrack] for track caching.
//
// Tracks are cached on fetch and on match to enable cross-service resolution
// via ISRC without repeat catalog searches.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.ID = shared.GenerateID()
	track.Sequence = sequence

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		track.ID,
		track.Sequence,
		track.Service,
		track.ServiceID,
		track.Song.Title,
		strings.Join(track.Song.Artists, artistSeparator),
		track.Song.Album,
		track.Song.Duration,
		track.Song.ISRC,
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := selectTracks + ` WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByServiceID retrieves a track by service and service_id
func (r *TrackRepository) GetByServiceID(service, serviceID string) (*models.PersistedTrack, error) {
	query := selectTracks + ` WHERE service = ? AND service_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, service, serviceID))
}

// GetByISRC retrieves a track cached for the given service by ISRC
func (r *TrackRepository) GetByISRC(service, isrc string) (*models.PersistedTrack, error) {
	query := selectTracks + ` WHERE service = ? AND isrc = ? AND deleted_at IS NULL LIMIT 1`
	return r.scanOne(r.db.QueryRow(query, service, isrc))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track.UpdatedAt = time.Now()

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, duration = ?, isrc = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Song.Title,
		strings.Join(track.Song.Artists, artistSeparator),
		track.Song.Album,
		track.Song.Duration,
		track.Song.ISRC,
		track.UpdatedAt,
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", track.ID)
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := selectTracks + ` WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if isrc, ok := criteria["isrc"].(string); ok && isrc != "" {
		query += " AND isrc = ?"
		args = append(args, isrc)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := scanTrack(rows.Scan)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

const selectTracks = `
	SELECT id, sequence, service, service_id, title, artist, album, duration, isrc, created_at, updated_at, deleted_at
	FROM tracks`

func (r *TrackRepository) scanOne(row *sql.Row) (*models.PersistedTrack, error) {
	track, err := scanTrack(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cached track", shared.ErrTrackNotFound)
	}
	return track, err
}

// scanTrack rebuilds a PersistedTrack from one row; works for both sql.Row
// and sql.Rows scans.
func scanTrack(scan func(...any) error) (*models.PersistedTrack, error) {
	var (
		track     models.PersistedTrack
		artist    string
		album     sql.NullString
		duration  sql.NullInt64
		isrc      sql.NullString
		deletedAt sql.NullTime
	)

	err := scan(
		&track.ID,
		&track.Sequence,
		&track.Service,
		&track.ServiceID,
		&track.Song.Title,
		&artist,
		&album,
		&duration,
		&isrc,
		&track.CreatedAt,
		&track.UpdatedAt,
		&deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.Song.ServiceID = track.ServiceID
	if artist != "" {
		track.Song.Artists = strings.Split(artist, artistSeparator)
	}
	track.Song.Album = album.String
	track.Song.Duration = int(duration.Int64)
	track.Song.ISRC = isrc.String
	if deletedAt.Valid {
		track.DeletedAt = &deletedAt.Time
	}

	return &track, nil
}
