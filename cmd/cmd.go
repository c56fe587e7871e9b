// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serviceCommands builds the shared auth/playlists/export subcommands for one service.
func serviceCommands(r *Runner, service string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "auth",
			Usage: "Authenticate using OAuth2",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Path to configuration file",
					Value:   "config.toml",
				},
			},
			Action: r.authAction(service),
		},
		{
			Name:   "logout",
			Usage:  "Clear cached tokens",
			Action: r.logoutAction(service),
		},
		{
			Name:  "playlists",
			Usage: "List playlists",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of playlists to return",
					Value: 50,
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "Output raw JSON",
				},
				&cli.BoolFlag{
					Name:  "pretty",
					Usage: "Pretty-print output",
				},
			},
			Action: r.playlistsAction(service),
		},
		{
			Name:  "export",
			Usage: "Export a playlist with all tracks",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Usage:    "Playlist ID to export",
					Required: true,
				},
				&cli.StringFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Output file path (or directory for markdown)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Usage:   "Export format: json, csv, markdown, text",
					Value:   "json",
				},
				&cli.BoolFlag{
					Name:  "pretty",
					Usage: "Pretty-print JSON output",
					Value: true,
				},
			},
			Action: r.exportAction(service),
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotify",
		Aliases:  []string{"spot"},
		Usage:    "Spotify playlist operations",
		Commands: serviceCommands(r, "spotify"),
	}
}

// tidalCommand handles Tidal operations
func tidalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "tidal",
		Aliases:  []string{"td"},
		Usage:    "Tidal playlist operations",
		Commands: serviceCommands(r, "tidal"),
	}
}

// syncCommand handles playlist sync operations
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync a playlist between services",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "playlist",
				Aliases:  []string{"p"},
				Usage:    "Source playlist name or ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Source service (spotify or tidal)",
				Value: "spotify",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Destination service (spotify or tidal)",
				Value: "tidal",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output result as JSON",
			},
		},
		Action: r.SyncRun,
	}
}

// generateCommand builds a recommendation playlist from a seed track
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a playlist of recommendations from a seed track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "seed",
				Usage:    "Seed track ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "Service to generate on",
				Value: "spotify",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Number of tracks to generate",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Generate,
	}
}

// historyCommand inspects recorded sync runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect sync run history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent sync runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one sync run with its unmatched tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Sync run ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
