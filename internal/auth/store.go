package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TokenRecord is the cached authentication state for one service account.
//
// ExpiresAt is always absolute time, never a relative expires_in delta, so a
// record read back after a process restart still knows when it expires.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        []string  `json:"scope,omitempty"`
}

// Store persists one TokenRecord per service account.
type Store interface {
	// Load returns the cached record, or (nil, nil) when no record exists.
	Load() (*TokenRecord, error)

	// Save writes the record, replacing any previous one.
	Save(record *TokenRecord) error

	// Clear removes the cached record.
	Clear() error
}

// FileStore is a Store backed by a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at the given path, creating parent directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("token cache path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create token cache directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load reads the cached record. A missing or corrupt cache file yields (nil, nil);
// the caller re-authenticates rather than failing on stale state.
func (s *FileStore) Load() (*TokenRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token cache: %w", err)
	}

	var record TokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, nil
	}
	if record.AccessToken == "" {
		return nil, nil
	}
	return &record, nil
}

// Save writes the record with owner-only permissions.
func (s *FileStore) Save(record *TokenRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}
	return nil
}
