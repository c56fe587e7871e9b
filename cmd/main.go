package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/services"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}
	shared.LoadEnv(config)

	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: buildSpotify(config, logger),
		Tidal:   buildTidal(config, logger),
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "tunesync",
		Usage:    "Sync playlists between Spotify & Tidal",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		if errors.Is(err_, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		} else {
			logger.Fatalf("application error: %v", err)
		}
	}
}

func buildSpotify(config *shared.Config, logger *log.Logger) services.Service {
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil
	}

	store, err := auth.NewFileStore(creds.TokenCache)
	if err != nil {
		logger.Warn("failed to open spotify token cache", "error", err)
		return nil
	}

	svc, err := services.NewSpotifyService(creds, store, logger)
	if err != nil {
		logger.Warn("failed to create spotify service", "error", err)
		return nil
	}
	return svc
}

func buildTidal(config *shared.Config, logger *log.Logger) services.Service {
	creds := config.Credentials.Tidal
	if creds.ClientID == "" {
		return nil
	}

	store, err := auth.NewFileStore(creds.TokenCache)
	if err != nil {
		logger.Warn("failed to open tidal token cache", "error", err)
		return nil
	}

	svc, err := services.NewTidalService(creds, store, logger)
	if err != nil {
		logger.Warn("failed to create tidal service", "error", err)
		return nil
	}
	return svc
}
