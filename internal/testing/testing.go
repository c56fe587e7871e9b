// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/tunesync/internal/models"
)

// MockService is a configurable test double for [services.Service].
//
// Zero-valued it behaves as an authenticated service with an empty catalog;
// tests override fields to script behavior and inspect the recorded calls.
type MockService struct {
	ServiceName string
	AuthURL     string // returned by Authenticate when set
	AuthErr     error

	Playlists  []models.Playlist
	ByName     map[string]*models.Playlist
	ByISRC     map[string]*models.Song
	FuzzyHits  map[string]*models.Song // keyed by title
	SearchErr  error
	CreateErr  error
	AddErr     error
	BatchSize  int
	CreatedID  string
	StateNonce string

	// recorded calls
	SearchedISRCs []string
	FuzzySearches []string
	AddedBatches  [][]string
	CreatedNames  []string
}

func (m *MockService) Name() string {
	if m.ServiceName == "" {
		return "mock"
	}
	return m.ServiceName
}

func (m *MockService) Authenticate(ctx context.Context) (string, error) {
	return m.AuthURL, m.AuthErr
}

func (m *MockService) ExchangeCode(ctx context.Context, code string) error { return nil }

func (m *MockService) State() string { return m.StateNonce }

func (m *MockService) IsAuthenticated() bool { return m.AuthURL == "" && m.AuthErr == nil }

func (m *MockService) Logout() error { return nil }

func (m *MockService) GetAllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	return m.Playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	for i := range m.Playlists {
		if m.Playlists[i].ID == playlistID {
			return &m.Playlists[i], nil
		}
	}
	return nil, nil
}

func (m *MockService) FindPlaylistByName(ctx context.Context, name string) (*models.Playlist, error) {
	if m.ByName == nil {
		return nil, nil
	}
	return m.ByName[name], nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.CreatedNames = append(m.CreatedNames, name)
	id := m.CreatedID
	if id == "" {
		id = "created"
	}
	return &models.Playlist{ID: id, Name: name, Description: description, Service: m.Name()}, nil
}

func (m *MockService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	batch := make([]string, len(trackIDs))
	copy(batch, trackIDs)
	m.AddedBatches = append(m.AddedBatches, batch)
	return nil
}

func (m *MockService) SearchByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	m.SearchedISRCs = append(m.SearchedISRCs, isrc)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.ByISRC == nil {
		return nil, nil
	}
	return m.ByISRC[isrc], nil
}

func (m *MockService) SearchTrack(ctx context.Context, title, artist string) (*models.Song, error) {
	m.FuzzySearches = append(m.FuzzySearches, title)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.FuzzyHits == nil {
		return nil, nil
	}
	return m.FuzzyHits[title], nil
}

func (m *MockService) BatchLimit() int {
	if m.BatchSize == 0 {
		return 100
	}
	return m.BatchSize
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
