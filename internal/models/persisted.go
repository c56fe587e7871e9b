package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent entities.
type Model interface {
	Key() string     // Key returns the unique identifier for this entity
	Validate() error // Validate checks if the entity's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new entity into the database
	Get(id string) (T, error)                  // Get retrieves an entity by its ID
	Update(model T) error                      // Update modifies an existing entity in the database
	Delete(id string) error                    // Delete removes an entity from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all entities matching the given criteria
}

// PersistedTrack is a cached track. Tracks are cached on fetch and on match so
// later syncs can resolve the same song by ISRC without a catalog search.
type PersistedTrack struct {
	ID        string
	Sequence  int
	Service   string
	ServiceID string
	Song      Song
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewPersistedTrack wraps a canonical Song for caching under the given service.
func NewPersistedTrack(service string, song Song) *PersistedTrack {
	now := time.Now()
	return &PersistedTrack{
		Service:   service,
		ServiceID: song.ServiceID,
		Song:      song,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *PersistedTrack) Key() string { return t.ID }

func (t *PersistedTrack) Validate() error {
	if t.Service == "" {
		return fmt.Errorf("track service is required")
	}
	if t.ServiceID == "" {
		return fmt.Errorf("track service_id is required")
	}
	if t.Song.Title == "" {
		return fmt.Errorf("track title is required")
	}
	return nil
}

// Sync run outcomes.
const (
	SyncRunCompleted = "completed"
	SyncRunFailed    = "failed"
)

// SyncRun records one sync invocation for the history log.
type SyncRun struct {
	ID                 string
	Sequence           int
	SourceService      string
	DestinationService string
	PlaylistName       string
	DestinationID      string
	Total              int
	Matched            int
	Added              int
	Unmatched          int
	Status             string
	Error              string
	Songs              []SyncRunSong
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SyncRunSong is one per-song outcome worth keeping, currently the unmatched
// songs with their reasons.
type SyncRunSong struct {
	ID          string
	RunID       string
	Position    int
	Title       string
	Artist      string
	ISRC        string
	Matched     bool
	DestTrackID string
	Reason      string
}

// NewSyncRun starts a history record for a sync of the named playlist.
func NewSyncRun(sourceService, destinationService, playlistName string) *SyncRun {
	now := time.Now()
	return &SyncRun{
		SourceService:      sourceService,
		DestinationService: destinationService,
		PlaylistName:       playlistName,
		Status:             SyncRunCompleted,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (r *SyncRun) Key() string { return r.ID }

func (r *SyncRun) Validate() error {
	if r.SourceService == "" || r.DestinationService == "" {
		return fmt.Errorf("sync run services are required")
	}
	if r.PlaylistName == "" {
		return fmt.Errorf("sync run playlist name is required")
	}
	if r.Status != SyncRunCompleted && r.Status != SyncRunFailed {
		return fmt.Errorf("invalid sync run status: %s", r.Status)
	}
	return nil
}
