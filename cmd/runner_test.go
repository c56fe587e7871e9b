package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/shared"
	tu "github.com/desertthunder/tunesync/internal/testing"
	"github.com/urfave/cli/v3"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

// run executes one CLI invocation against a fresh command tree.
func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "tunesync", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"tunesync"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			spotify := &tu.MockService{ServiceName: "Spotify"}
			tidal := &tu.MockService{ServiceName: "Tidal"}

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Spotify: spotify,
				Tidal:   tidal,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.spotify != spotify {
				t.Error("expected spotify to be set")
			}
			if runner.tidal != tidal {
				t.Error("expected tidal to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			// channels cannot be marshaled to JSON
			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s", "world"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "hello world" {
			t.Errorf("expected 'hello world', got %q", output.String())
		}
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
			}
		}
	})

	t.Run("resolveService", func(t *testing.T) {
		spotify := &tu.MockService{ServiceName: "Spotify"}
		runner := NewRunner(RunnerOpts{Spotify: spotify})

		svc, err := runner.resolveService("spotify")
		if err != nil || svc != spotify {
			t.Errorf("expected spotify service, got %v %v", svc, err)
		}

		if _, err := runner.resolveService("tidal"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected unavailable error for missing tidal, got %v", err)
		}

		if _, err := runner.resolveService("napster"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input error, got %v", err)
		}
	})
}

func TestPlaylistsCommand(t *testing.T) {
	spotify := &tu.MockService{
		ServiceName: "Spotify",
		Playlists: []models.Playlist{
			{ID: "p1", Name: "Road Trip", SongCount: 12, Public: true},
			{ID: "p2", Name: "Focus", Description: "Deep work", SongCount: 30},
		},
	}

	t.Run("plain output", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Spotify: spotify, Output: output})

		if err := run(t, runner, "spotify", "playlists"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Found 2 playlists") {
			t.Errorf("missing count, got: %s", got)
		}
		if !strings.Contains(got, "1. Road Trip") || !strings.Contains(got, "Tracks: 12") {
			t.Errorf("missing first playlist, got: %s", got)
		}
		if !strings.Contains(got, "Description: Deep work") {
			t.Errorf("missing description, got: %s", got)
		}
		if !strings.Contains(got, "Visibility: Public") {
			t.Errorf("missing visibility, got: %s", got)
		}
	})

	t.Run("json output respects limit", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Spotify: spotify, Output: output})

		if err := run(t, runner, "spotify", "playlists", "--json", "--limit", "1"); err != nil {
			t.Fatalf("command failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Road Trip") || strings.Contains(got, "Focus") {
			t.Errorf("limit not applied, got: %s", got)
		}
	})

	t.Run("missing service fails", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

		err := run(t, runner, "tidal", "playlists")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected unavailable error, got %v", err)
		}
	})
}

func TestSyncCommand(t *testing.T) {
	sourcePlaylist := models.Playlist{
		ID:      "src1",
		Name:    "Road Trip",
		Service: "Spotify",
		Songs: []models.Song{
			{ServiceID: "s1", Title: "Song A", Artists: []string{"Artist A"}, ISRC: "ISRCA"},
			{ServiceID: "s2", Title: "Song B", Artists: []string{"Artist B"}, ISRC: "ISRCB"},
		},
	}

	newSource := func() *tu.MockService {
		return &tu.MockService{
			ServiceName: "Spotify",
			Playlists:   []models.Playlist{sourcePlaylist},
			ByName:      map[string]*models.Playlist{"Road Trip": &sourcePlaylist},
		}
	}

	t.Run("sync with partial match", func(t *testing.T) {
		dest := &tu.MockService{
			ServiceName: "Tidal",
			ByISRC: map[string]*models.Song{
				"ISRCA": {ServiceID: "t1", Title: "Song A", Artists: []string{"Artist A"}, ISRC: "ISRCA"},
			},
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Spotify: newSource(),
			Tidal:   dest,
			Output:  output,
			DB:      testDB(t),
		})

		if err := run(t, runner, "sync", "--playlist", "Road Trip"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Sync Complete") {
			t.Errorf("missing completion header, got: %s", got)
		}
		if !strings.Contains(got, "Matched 1/2, added 1") {
			t.Errorf("missing counts, got: %s", got)
		}
		if !strings.Contains(got, "Artist B - Song B (not_found)") {
			t.Errorf("missing unmatched listing, got: %s", got)
		}
		if len(dest.AddedBatches) != 1 || dest.AddedBatches[0][0] != "t1" {
			t.Errorf("expected matched track added, got %v", dest.AddedBatches)
		}

		runs, err := repositories.NewSyncRunRepository(runner.db).List(0)
		if err != nil || len(runs) != 1 {
			t.Fatalf("expected one recorded run, got %v %v", runs, err)
		}
		if runs[0].Added != 1 || runs[0].Unmatched != 1 {
			t.Errorf("unexpected history: %+v", runs[0])
		}
	})

	t.Run("same source and destination rejected", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Spotify: newSource(),
			Tidal:   &tu.MockService{ServiceName: "Tidal"},
			Output:  &bytes.Buffer{},
		})

		err := run(t, runner, "sync", "--playlist", "Road Trip", "--from", "spotify", "--to", "spotify")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("empty source playlist fails fast", func(t *testing.T) {
		empty := models.Playlist{ID: "e1", Name: "Empty", Service: "Spotify"}
		source := &tu.MockService{
			ServiceName: "Spotify",
			Playlists:   []models.Playlist{empty},
			ByName:      map[string]*models.Playlist{"Empty": &empty},
		}
		dest := &tu.MockService{ServiceName: "Tidal"}

		runner := NewRunner(RunnerOpts{
			Spotify: source,
			Tidal:   dest,
			Output:  &bytes.Buffer{},
			DB:      testDB(t),
		})

		err := run(t, runner, "sync", "--playlist", "Empty")
		if !errors.Is(err, shared.ErrEmptyPlaylist) {
			t.Errorf("expected empty playlist error, got %v", err)
		}
		if len(dest.SearchedISRCs) != 0 || len(dest.AddedBatches) != 0 {
			t.Error("destination should not be touched for an empty source")
		}
	})
}

func TestGenerateCommand(t *testing.T) {
	t.Run("service without generator support", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			Tidal:  &tu.MockService{ServiceName: "Tidal"},
			Output: &bytes.Buffer{},
		})

		err := run(t, runner, "generate", "--seed", "t1", "--service", "tidal")
		if !errors.Is(err, shared.ErrNotImplemented) {
			t.Errorf("expected not implemented, got %v", err)
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Run("list shows recorded runs", func(t *testing.T) {
		db := testDB(t)
		repo := repositories.NewSyncRunRepository(db)

		recorded := models.NewSyncRun("Spotify", "Tidal", "Road Trip")
		recorded.Total = 2
		recorded.Matched = 2
		recorded.Added = 2
		if err := repo.Record(recorded); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, DB: db})

		if err := run(t, runner, "history", "list"); err != nil {
			t.Fatalf("history list failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Road Trip") || !strings.Contains(got, "Matched 2/2, added 2") {
			t.Errorf("missing run summary, got: %s", got)
		}
	})

	t.Run("show includes unmatched tracks", func(t *testing.T) {
		db := testDB(t)
		repo := repositories.NewSyncRunRepository(db)

		recorded := models.NewSyncRun("Spotify", "Tidal", "Road Trip")
		recorded.Total = 1
		recorded.Unmatched = 1
		recorded.Songs = []models.SyncRunSong{
			{Position: 0, Title: "Song B", Artist: "Artist B", Reason: "not_found"},
		}
		if err := repo.Record(recorded); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output, DB: db})

		if err := run(t, runner, "history", "show", "--id", recorded.ID); err != nil {
			t.Fatalf("history show failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Artist B - Song B (not_found)") {
			t.Errorf("missing unmatched track, got: %s", got)
		}
	})
}
