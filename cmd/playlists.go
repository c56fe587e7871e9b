package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// playlistsAction returns the action that lists a service's playlists.
func (r *Runner) playlistsAction(service string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		limit := cmd.Int("limit")
		useJSON := cmd.Bool("json")
		pretty := cmd.Bool("pretty")

		svc, err := r.resolveService(service)
		if err != nil {
			return err
		}

		r.logger.Infof("listing %s playlists with limit %v", svc.Name(), limit)

		playlists, err := svc.GetAllPlaylists(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if limit > 0 && limit < len(playlists) {
			playlists = playlists[:limit]
		}

		if useJSON {
			return r.writeJSON(playlists, pretty)
		}

		r.writePlain("Found %d playlists:\n\n", len(playlists))
		for i, p := range playlists {
			r.writePlain("%d. %s\n", i+1, p.Name)
			if p.Description != "" {
				r.writePlain("   Description: %s\n", p.Description)
			}
			r.writePlain("   ID: %s\n", p.ID)
			r.writePlain("   Tracks: %d\n", p.SongCount)
			if p.Public {
				r.writePlain("   Visibility: Public\n")
			} else {
				r.writePlain("   Visibility: Private\n")
			}
			r.writePlain("\n")
		}

		return nil
	}
}

// exportAction returns the action that exports a playlist with its full track listing.
func (r *Runner) exportAction(service string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		playlistID := cmd.String("id")
		outputPath := cmd.String("output")
		format := cmd.String("format")
		pretty := cmd.Bool("pretty")

		svc, err := r.resolveService(service)
		if err != nil {
			return err
		}

		r.logger.Infof("exporting %s playlist %v", svc.Name(), playlistID)

		playlist, err := svc.GetPlaylist(ctx, playlistID)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		switch format {
		case "json":
			if outputPath == "" {
				return r.writeJSON(playlist, pretty)
			}
			data, err := shared.MarshalJSON(playlist, true)
			if err != nil {
				return fmt.Errorf("failed to marshal export: %w", err)
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			r.writePlain("✓ Playlist exported to %s\n", outputPath)

		case "csv":
			result, err := formatter.WriteCSVExport(playlist, outputPath)
			if err != nil {
				return err
			}
			r.writePlain("✓ Tracks exported to %s\n", result.TracksFile)
			r.writePlain("✓ Metadata exported to %s\n", result.MetadataFile)

		case "markdown", "md":
			result, err := formatter.WriteMarkdownExport(playlist, outputPath)
			if err != nil {
				return err
			}
			r.writePlain("✓ Playlist exported to %s\n", result.Directory)

		case "text", "txt":
			written, err := formatter.WriteTextExport(playlist, outputPath)
			if err != nil {
				return err
			}
			r.writePlain("✓ Playlist exported to %s\n", written)

		default:
			return fmt.Errorf("%w: unknown format '%s'", shared.ErrInvalidFlag, format)
		}

		r.writePlain("  Playlist: %s\n", playlist.Name)
		r.writePlain("  Tracks: %d\n", len(playlist.Songs))

		return nil
	}
}
