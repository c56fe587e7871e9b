package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun syncs one playlist from a source service to a destination service.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	nameOrID := cmd.String("playlist")
	fromName := cmd.String("from")
	toName := cmd.String("to")
	useJSON := cmd.Bool("json")

	source, err := r.resolveService(fromName)
	if err != nil {
		return err
	}
	dest, err := r.resolveService(toName)
	if err != nil {
		return err
	}
	if fromName == toName {
		return fmt.Errorf("%w: source and destination are both '%s'", shared.ErrInvalidArgument, fromName)
	}

	r.logger.Info("starting sync", "playlist", nameOrID, "from", source.Name(), "to", dest.Name())
	r.writePlain("Syncing %q: %s → %s\n\n", nameOrID, source.Name(), dest.Name())

	playlist, err := r.loadSourcePlaylist(ctx, source, nameOrID)
	if err != nil {
		return err
	}

	// Progress goroutine drains updates while the engine runs
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.EnsureAuth, tasks.LocateDestination:
				r.writePlain("→ %s\n", update.Message)
			case tasks.CreatePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.SearchTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.AddTracks:
				r.writePlain("📥 %s\n", update.Message)
			}
		}
	}()

	engine := r.newEngine()
	result, syncErr := engine.Sync(ctx, progressCh, playlist, dest)
	close(progressCh)
	<-done

	if result == nil {
		return syncErr
	}

	if useJSON {
		if err := r.writeJSON(result, true); err != nil {
			return err
		}
	} else {
		r.writePlain("\n")
		r.writePlainHeader("Sync Complete")
		r.writePlain("%s", formatter.FormatSyncResult(result))
	}

	if syncErr != nil {
		return fmt.Errorf("sync aborted after %d adds: %w", result.Added, syncErr)
	}

	return nil
}

// loadSourcePlaylist resolves a playlist by name first, then by ID, and
// returns it with its full track listing.
func (r *Runner) loadSourcePlaylist(ctx context.Context, source services.Service, nameOrID string) (*models.Playlist, error) {
	found, err := source.FindPlaylistByName(ctx, nameOrID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrFetchFailed, err)
	}

	id := nameOrID
	if found != nil {
		id = found.ID
	}

	playlist, err := source.GetPlaylist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load source playlist %q: %w", nameOrID, err)
	}

	return playlist, nil
}
