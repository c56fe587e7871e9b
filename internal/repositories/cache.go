package repositories

import (
	"fmt"
	"strings"

	"github.com/desertthunder/tunesync/internal/models"
)

// TrackCacheAdapter implements tasks.TrackCacher using TrackRepository.
//
// Provides automatic track caching with deduplication via service+service_id
// constraints. Duplicate tracks are silently ignored (UNIQUE constraint
// violations), and lookup misses report a nil song rather than an error.
type TrackCacheAdapter struct {
	repo *TrackRepository
}

// NewTrackCacheAdapter creates a new TrackCacheAdapter with the given repository
func NewTrackCacheAdapter(repo *TrackRepository) *TrackCacheAdapter {
	return &TrackCacheAdapter{repo: repo}
}

// LookupISRC returns the song cached for the service under the ISRC, or nil.
func (a *TrackCacheAdapter) LookupISRC(service, isrc string) *models.Song {
	if isrc == "" {
		return nil
	}

	track, err := a.repo.GetByISRC(service, isrc)
	if err != nil || track == nil {
		return nil
	}

	song := track.Song
	return &song
}

// Store caches a matched track for a service.
// Returns nil if the track already exists (deduplication).
// Only returns errors for actual failures (not constraint violations).
func (a *TrackCacheAdapter) Store(service string, song models.Song) error {
	existing, err := a.repo.GetByServiceID(service, song.ServiceID)
	if err == nil && existing != nil {
		return nil
	}

	if err := a.repo.Create(models.NewPersistedTrack(service, song)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache track: %w", err)
	}

	return nil
}
