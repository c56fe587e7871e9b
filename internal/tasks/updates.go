package tasks

import (
	"fmt"

	"github.com/desertthunder/tunesync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	EnsureAuth Phase = iota
	LocateDestination
	CreatePlaylist
	SearchTracks
	AddTracks
	Complete
)

func (p Phase) String() string {
	switch p {
	case EnsureAuth:
		return "ensure_auth"
	case LocateDestination:
		return "locate_destination"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AddTracks:
		return "add_tracks"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func ensureAuthUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   EnsureAuth,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking %s authentication...", service),
	}
}

func locateDestinationUpdate(name, service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LocateDestination,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Looking for playlist %q on %s...", name, service),
	}
}

func createdDestinationUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func searchTracksUpdate(step, total int, song *models.Song) ProgressUpdate {
	if song == nil {
		return ProgressUpdate{
			Phase:   SearchTracks,
			Step:    step,
			Total:   total,
			Message: "Matching tracks against destination catalog...",
		}
	}
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, song.PrimaryArtist(), song.Title),
	}
}

func unmatchedUpdate(step, total int, song models.Song, reason string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s - %s (%s)", step, total, song.PrimaryArtist(), song.Title, reason),
		Data:    UnmatchedSong{Song: song, Reason: reason},
	}
}

func addBatchUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, count),
	}
}

func completeUpdate(result *SyncResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Synced %q: %d/%d matched, %d added", result.PlaylistName, result.Matched, result.Total, result.Added),
		Data:    result,
	}
}
