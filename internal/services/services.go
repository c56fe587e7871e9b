// package services defines interface Service for interacting with streaming service HTTP APIs
//
// Spotify, Tidal
package services

import (
	"context"

	"github.com/desertthunder/tunesync/internal/models"
)

// Service defines the interface for music service providers (Spotify, Tidal)
// that can read and write playlists. The sync engine dispatches over this
// interface and never over concrete service types.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify", "Tidal")
	Name() string

	// Authenticate returns the authorization URL the user must visit when no
	// usable token is cached, or "" when the cached token (possibly after a
	// refresh) is sufficient.
	Authenticate(ctx context.Context) (string, error)

	// ExchangeCode completes the OAuth flow with the authorization code
	// delivered to the redirect URI.
	ExchangeCode(ctx context.Context, code string) error

	// State returns the nonce of the pending authorization flow, or "".
	State() string

	// IsAuthenticated reports whether a token is cached for this service.
	IsAuthenticated() bool

	// Logout clears the cached token.
	Logout() error

	// GetAllPlaylists retrieves every playlist of the authenticated user,
	// without track listings.
	GetAllPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves a playlist by ID with its full track listing.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// FindPlaylistByName returns the user's playlist with the given name, or
	// nil when none exists.
	FindPlaylistByName(ctx context.Context, name string) (*models.Playlist, error)

	// CreatePlaylist creates an empty playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddTracks appends tracks to a playlist in the given order. Callers chunk
	// IDs to at most BatchLimit per call.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	// SearchByISRC finds the service's track for an ISRC, or nil when the
	// catalog has no hit. Matches [shared.ErrTrackNotInRegion] when the track
	// exists but is unavailable in the user's region.
	SearchByISRC(ctx context.Context, isrc string) (*models.Song, error)

	// SearchTrack searches the catalog by title and artist and returns the
	// best fuzzy match, or nil when nothing scores above the match threshold.
	SearchTrack(ctx context.Context, title, artist string) (*models.Song, error)

	// BatchLimit is the maximum number of tracks one AddTracks call accepts.
	BatchLimit() int
}

// Generator is the optional capability of building a new playlist from a seed
// track. Services that cannot generate recommendations simply do not
// implement it.
type Generator interface {
	// GeneratePlaylist builds a playlist of recommendations seeded by a track ID.
	GeneratePlaylist(ctx context.Context, seedTrackID string, size int) (*models.Playlist, error)
}
