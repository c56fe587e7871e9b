package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Generate builds a recommendation playlist from a seed track.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	seed := cmd.String("seed")
	serviceName := cmd.String("service")
	size := cmd.Int("size")
	useJSON := cmd.Bool("json")

	svc, err := r.resolveService(serviceName)
	if err != nil {
		return err
	}

	generator, ok := svc.(services.Generator)
	if !ok {
		return fmt.Errorf("%w: %s does not support playlist generation", shared.ErrNotImplemented, svc.Name())
	}

	r.logger.Info("generating playlist", "seed", seed, "service", svc.Name(), "size", size)

	playlist, err := generator.GeneratePlaylist(ctx, seed, size)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if useJSON {
		return r.writeJSON(playlist, true)
	}

	r.writePlain("Generated %d tracks from seed %s:\n\n", len(playlist.Songs), seed)
	for i, song := range playlist.Songs {
		r.writePlain("%d. %s - %s [%s]\n", i+1, song.ArtistLine(), song.Title, shared.FormatDuration(song.Duration))
	}

	return nil
}
