// package tasks implements playlist synchronization between music services.
//
// The core abstraction is [Engine], which orchestrates a sync: ensure the
// destination is authenticated, locate or create the destination playlist,
// match each source song against the destination catalog (ISRC first, fuzzy
// fallback), and append the matches in source order. Operations emit progress
// updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
)

// Unmatched reasons recorded in a SyncResult.
const (
	ReasonNotFound    = "not_found"     // no catalog hit by ISRC or fuzzy search
	ReasonNotInRegion = "not_in_region" // track exists but not in the user's market
)

// UnmatchedSong is a source song the destination catalog could not resolve.
type UnmatchedSong struct {
	Song   models.Song `json:"song"`
	Reason string      `json:"reason"`
}

// SyncResult records the outcome of one sync. Unmatched songs are expected,
// not errors: partial success is the normal case.
type SyncResult struct {
	PlaylistName       string          `json:"playlist_name"`
	SourceService      string          `json:"source_service"`
	DestinationService string          `json:"destination_service"`
	DestinationID      string          `json:"destination_id"`
	Created            bool            `json:"created"` // destination playlist was created by this sync
	Total              int             `json:"total"`
	Matched            int             `json:"matched"`
	Added              int             `json:"added"`
	Unmatched          []UnmatchedSong `json:"unmatched,omitempty"`
}

// TrackCacher resolves previously matched tracks so repeat syncs skip catalog
// searches. Implementations are keyed by destination service and ISRC.
type TrackCacher interface {
	// LookupISRC returns the cached destination song for an ISRC, or nil.
	LookupISRC(service, isrc string) *models.Song

	// Store caches a matched destination song.
	Store(service string, song models.Song) error
}

// HistoryRecorder persists completed sync runs.
type HistoryRecorder interface {
	Record(run *models.SyncRun) error
}

// Engine syncs playlists into a destination service.
type Engine struct {
	logger  *log.Logger
	match   models.MatchFunc
	cache   TrackCacher
	history HistoryRecorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMatchFunc replaces the default song matching strategy.
func WithMatchFunc(match models.MatchFunc) EngineOption {
	return func(e *Engine) { e.match = match }
}

// WithTrackCache enables the cross-service track cache.
func WithTrackCache(cache TrackCacher) EngineOption {
	return func(e *Engine) { e.cache = cache }
}

// WithHistory enables sync run history recording.
func WithHistory(history HistoryRecorder) EngineOption {
	return func(e *Engine) { e.history = history }
}

// NewEngine creates a sync engine.
func NewEngine(logger *log.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	e := &Engine{
		logger: logger,
		match:  models.DefaultMatch,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Sync replicates the source playlist onto the destination service.
//
// The source must already carry its full track listing. Syncing an empty
// playlist fails immediately with [shared.ErrEmptyPlaylist] before any
// network call. Unmatched songs never abort the sync; authentication and
// fetch failures do, leaving already-added tracks in place.
func (e *Engine) Sync(ctx context.Context, progress chan<- ProgressUpdate, source *models.Playlist, dest services.Service) (*SyncResult, error) {
	if source == nil || source.IsEmpty() {
		return nil, fmt.Errorf("%w: refusing to sync a playlist with no songs", shared.ErrEmptyPlaylist)
	}
	if dest == nil {
		return nil, fmt.Errorf("%w: destination service not initialized", shared.ErrServiceUnavailable)
	}

	result := &SyncResult{
		PlaylistName:       source.Name,
		SourceService:      source.Service,
		DestinationService: dest.Name(),
		Total:              len(source.Songs),
	}

	e.sendProgress(progress, ensureAuthUpdate(dest.Name()))
	authURL, err := dest.Authenticate(ctx)
	if err != nil {
		return nil, e.record(result, fmt.Errorf("%s authentication failed: %w", dest.Name(), err))
	}
	if authURL != "" {
		return nil, e.record(result, fmt.Errorf("%w: %s needs authorization, visit %s", shared.ErrNotAuthenticated, dest.Name(), authURL))
	}

	e.sendProgress(progress, locateDestinationUpdate(source.Name, dest.Name()))
	playlist, err := dest.FindPlaylistByName(ctx, source.Name)
	if err != nil {
		return nil, e.record(result, fmt.Errorf("failed to locate destination playlist: %w", err))
	}
	if playlist == nil {
		description := fmt.Sprintf("Synced from %s", source.Service)
		playlist, err = dest.CreatePlaylist(ctx, source.Name, description)
		if err != nil {
			return nil, e.record(result, fmt.Errorf("failed to create destination playlist: %w", err))
		}
		result.Created = true
		e.sendProgress(progress, createdDestinationUpdate(playlist))
	}
	result.DestinationID = playlist.ID

	e.sendProgress(progress, searchTracksUpdate(0, result.Total, nil))

	// Matches are collected in source order; additions below must keep it.
	matchedIDs := make([]string, 0, len(source.Songs))
	for i, song := range source.Songs {
		e.sendProgress(progress, searchTracksUpdate(i+1, result.Total, &song))

		match, reason, err := e.matchSong(ctx, dest, song)
		if err != nil {
			return result, e.record(result, fmt.Errorf("search failed for %q: %w", song.Title, err))
		}
		if match == nil {
			result.Unmatched = append(result.Unmatched, UnmatchedSong{Song: song, Reason: reason})
			e.sendProgress(progress, unmatchedUpdate(i+1, result.Total, song, reason))
			continue
		}

		result.Matched++
		matchedIDs = append(matchedIDs, match.ServiceID)
	}

	batches := chunk(matchedIDs, dest.BatchLimit())
	for i, batch := range batches {
		e.sendProgress(progress, addBatchUpdate(i+1, len(batches), len(batch)))
		if err := dest.AddTracks(ctx, playlist.ID, batch); err != nil {
			// Earlier batches stay applied; report what landed
			return result, e.record(result, fmt.Errorf("failed to add tracks: %w", err))
		}
		result.Added += len(batch)
	}

	e.sendProgress(progress, completeUpdate(result))
	e.logger.Info("sync complete",
		"playlist", source.Name,
		"destination", dest.Name(),
		"total", result.Total,
		"matched", result.Matched,
		"added", result.Added,
		"unmatched", len(result.Unmatched),
	)

	return result, e.record(result, nil)
}

// matchSong resolves one source song to a destination track ID. A nil song
// with a reason means no match; an error means the search itself failed.
func (e *Engine) matchSong(ctx context.Context, dest services.Service, song models.Song) (*models.Song, string, error) {
	if e.cache != nil && song.ISRC != "" {
		if cached := e.cache.LookupISRC(dest.Name(), song.ISRC); cached != nil && e.match(song, *cached) {
			return cached, "", nil
		}
	}

	if song.ISRC != "" {
		hit, err := dest.SearchByISRC(ctx, song.ISRC)
		if err != nil {
			if errors.Is(err, shared.ErrTrackNotInRegion) {
				return nil, ReasonNotInRegion, nil
			}
			return nil, "", err
		}
		if hit != nil && e.match(song, *hit) {
			e.cacheMatch(dest.Name(), *hit)
			return hit, "", nil
		}
	}

	hit, err := dest.SearchTrack(ctx, song.Title, song.PrimaryArtist())
	if err != nil {
		return nil, "", err
	}
	if hit == nil {
		return nil, ReasonNotFound, nil
	}

	e.cacheMatch(dest.Name(), *hit)
	return hit, "", nil
}

func (e *Engine) cacheMatch(service string, song models.Song) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Store(service, song); err != nil {
		e.logger.Warn("failed to cache matched track", "title", song.Title, "error", err)
	}
}

// record persists the run outcome to history and passes the error through.
func (e *Engine) record(result *SyncResult, syncErr error) error {
	if e.history == nil {
		return syncErr
	}

	run := models.NewSyncRun(result.SourceService, result.DestinationService, result.PlaylistName)
	run.DestinationID = result.DestinationID
	run.Total = result.Total
	run.Matched = result.Matched
	run.Added = result.Added
	run.Unmatched = len(result.Unmatched)
	for i, u := range result.Unmatched {
		run.Songs = append(run.Songs, models.SyncRunSong{
			Position: i,
			Title:    u.Song.Title,
			Artist:   u.Song.ArtistLine(),
			ISRC:     u.Song.ISRC,
			Reason:   u.Reason,
		})
	}
	if syncErr != nil {
		run.Status = models.SyncRunFailed
		run.Error = syncErr.Error()
	}

	if err := e.history.Record(run); err != nil {
		e.logger.Warn("failed to record sync history", "error", err)
	}
	return syncErr
}

// chunk splits ids into batches of at most size, preserving order.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}
