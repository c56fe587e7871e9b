package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tunesync.db" {
			t.Errorf("expected database path ./tunesync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.Tidal.TokenCache != ".cache/tidal_token.json" {
			t.Errorf("expected tidal token cache .cache/tidal_token.json, got %s", config.Credentials.Tidal.TokenCache)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("expected error when config file already exists")
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("LoadEnv Overlay", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_client_id")
		t.Setenv("TIDAL_CLIENT_SECRET", "env_secret")

		config := DefaultConfig()
		LoadEnv(config)

		if config.Credentials.Spotify.ClientID != "env_client_id" {
			t.Errorf("expected env overlay for spotify client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Tidal.ClientSecret != "env_secret" {
			t.Errorf("expected env overlay for tidal client_secret, got %s", config.Credentials.Tidal.ClientSecret)
		}
		if config.Credentials.Tidal.ClientID != "your_tidal_client_id" {
			t.Errorf("unset env var should not overwrite config value, got %s", config.Credentials.Tidal.ClientID)
		}
	})
}
