package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList lists recent sync runs.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")

	db := r.database()
	if db == nil {
		return fmt.Errorf("%w: sync history requires a database", shared.ErrServiceUnavailable)
	}

	runs, err := repositories.NewSyncRunRepository(db).List(limit)
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if useJSON {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		r.writePlain("No sync runs recorded yet.\n")
		return nil
	}

	r.writePlain("Found %d sync runs:\n\n", len(runs))
	for _, run := range runs {
		r.writePlain("#%d %s: %s → %s [%s]\n", run.Sequence, run.PlaylistName, run.SourceService, run.DestinationService, run.Status)
		r.writePlain("   ID: %s\n", run.ID)
		r.writePlain("   Matched %d/%d, added %d, unmatched %d\n", run.Matched, run.Total, run.Added, run.Unmatched)
		r.writePlain("   At: %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
		if run.Error != "" {
			r.writePlain("   Error: %s\n", run.Error)
		}
		r.writePlain("\n")
	}

	return nil
}

// HistoryShow prints one sync run with its unmatched tracks.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	useJSON := cmd.Bool("json")

	db := r.database()
	if db == nil {
		return fmt.Errorf("%w: sync history requires a database", shared.ErrServiceUnavailable)
	}

	run, err := repositories.NewSyncRunRepository(db).Get(id)
	if err != nil {
		return fmt.Errorf("failed to load sync run: %w", err)
	}

	if useJSON {
		return r.writeJSON(run, true)
	}

	r.writePlainHeader(fmt.Sprintf("Sync Run #%d", run.Sequence))
	r.writePlain("Playlist: %s\n", run.PlaylistName)
	r.writePlain("Route: %s → %s\n", run.SourceService, run.DestinationService)
	r.writePlain("Destination ID: %s\n", run.DestinationID)
	r.writePlain("Status: %s\n", run.Status)
	r.writePlain("Matched %d/%d, added %d\n", run.Matched, run.Total, run.Added)
	if run.Error != "" {
		r.writePlain("Error: %s\n", run.Error)
	}

	if len(run.Songs) > 0 {
		r.writePlain("\nUnmatched tracks:\n")
		for _, song := range run.Songs {
			r.writePlain("  %d. %s - %s (%s)\n", song.Position+1, song.Artist, song.Title, song.Reason)
		}
	}

	return nil
}
