// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/httpx"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// spotifyBatchLimit is the maximum tracks per add-to-playlist call.
	spotifyBatchLimit = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a Spotify playlist without its track listing.
type SpotifyPlaylist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Public       bool              `json:"public"`
	Tracks       playlistTracksRef `json:"tracks"`
	Images       []SpotifyImage    `json:"images"`
	ExternalURLs externalURLs      `json:"external_urls"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyUser represents the authenticated user's profile.
type SpotifyUser struct {
	ID      string `json:"id"`
	Country string `json:"country"`
}

type spotifyPage[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
//
// Spotify is a confidential OAuth client: no PKCE, and the client secret is
// sent on both code exchange and refresh.
type SpotifyService struct {
	auth    *auth.Authenticator
	client  *httpx.Client
	logger  *log.Logger
	baseURL string

	// profile fields resolved lazily from /me
	userID  string
	country string
}

// SpotifyOption configures a SpotifyService.
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL overrides the API base URL (tests point it at httptest servers).
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = baseURL }
}

// NewSpotifyService creates a Spotify service with the given OAuth2 credentials.
func NewSpotifyService(creds shared.ServiceCredentials, store auth.Store, logger *log.Logger, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("spotify requires client_id and client_secret")
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	authenticator := auth.New(auth.Config{
		Service:      "Spotify",
		AuthURL:      spotifyAuthURL,
		TokenURL:     spotifyTokenURL,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURI:  creds.RedirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		SecretOnExchange: true,
		SecretOnRefresh:  true,
	}, store, logger)

	s := &SpotifyService{
		auth:    authenticator,
		logger:  shared.WithLogger(logger, "service", "Spotify"),
		baseURL: spotifyBaseURL,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.client = httpx.NewClient(func(ctx context.Context) (string, error) {
		record, err := authenticator.EnsureValidToken(ctx)
		if err != nil {
			return "", err
		}
		return record.AccessToken, nil
	}, s.logger, httpx.WithRateLimit(10))

	return s, nil
}

func (s *SpotifyService) Name() string { return "Spotify" }

// Authenticate returns an authorization URL when the user must log in, or ""
// when the cached token is usable.
func (s *SpotifyService) Authenticate(ctx context.Context) (string, error) {
	if !s.auth.IsAuthenticated() {
		return s.auth.GenerateAuthURL(), nil
	}

	if _, err := s.auth.EnsureValidToken(ctx); err != nil {
		if errors.Is(err, shared.ErrNoRefreshToken) || errors.Is(err, shared.ErrRefreshFailed) {
			s.logger.Warn("cached token unusable, re-authentication needed", "error", err)
			return s.auth.GenerateAuthURL(), nil
		}
		return "", err
	}

	return "", nil
}

// ExchangeCode completes the OAuth flow with the redirect's authorization code.
func (s *SpotifyService) ExchangeCode(ctx context.Context, code string) error {
	_, err := s.auth.ExchangeCode(ctx, code)
	return err
}

func (s *SpotifyService) State() string { return s.auth.State() }

func (s *SpotifyService) IsAuthenticated() bool { return s.auth.IsAuthenticated() }

func (s *SpotifyService) Logout() error { return s.auth.Logout() }

// profile resolves and caches the authenticated user's ID and market.
func (s *SpotifyService) profile(ctx context.Context) (*SpotifyUser, error) {
	if s.userID != "" {
		return &SpotifyUser{ID: s.userID, Country: s.country}, nil
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/me")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spotify profile: %w", err)
	}

	var user SpotifyUser
	if err := resp.Decode(&user); err != nil {
		return nil, err
	}

	s.userID = user.ID
	s.country = user.Country
	return &user, nil
}

func songFromSpotifyTrack(t SpotifyTrack) models.Song {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	return models.SongFromPayload(models.SongPayload{
		ServiceID: t.ID,
		Title:     t.Name,
		Artists:   artists,
		Album:     t.Album.Name,
		Duration:  t.DurationMS / 1000,
		ISRC:      t.ExternalIDs.ISRC,
	})
}

func playlistFromSpotify(sp SpotifyPlaylist, songs []models.Song) models.Playlist {
	images := make([]models.Image, 0, len(sp.Images))
	for _, img := range sp.Images {
		images = append(images, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}

	playlist := models.PlaylistFromPayload(models.PlaylistPayload{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Images:      images,
		URL:         sp.ExternalURLs.Spotify,
		Public:      sp.Public,
	}, "Spotify", songs)

	playlist.SongCount = sp.Tracks.Total
	if len(songs) > 0 {
		playlist.SongCount = len(songs)
	}
	return playlist
}

func (s *SpotifyService) playlistPaginator() *httpx.Paginator[SpotifyPlaylist] {
	return &httpx.Paginator[SpotifyPlaylist]{
		Client: s.client,
		First:  s.baseURL + "/me/playlists?limit=50",
		Parse: func(resp *httpx.Response) (httpx.Page[SpotifyPlaylist], error) {
			var page spotifyPage[SpotifyPlaylist]
			if err := resp.Decode(&page); err != nil {
				return httpx.Page[SpotifyPlaylist]{}, err
			}
			next := ""
			if page.Next != nil {
				next = *page.Next
			}
			return httpx.Page[SpotifyPlaylist]{Items: page.Items, Next: next}, nil
		},
	}
}

// GetAllPlaylists retrieves all playlists of the authenticated user, without
// track listings.
func (s *SpotifyService) GetAllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	raw, err := s.playlistPaginator().All(ctx)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, sp := range raw {
		playlists = append(playlists, playlistFromSpotify(sp, nil))
	}
	return playlists, nil
}

// GetPlaylist retrieves a playlist with its full, ordered track listing.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/playlists/%s", s.baseURL, playlistID))
	if err != nil {
		if httpx.IsStatus(err, 404) {
			return nil, fmt.Errorf("%w: spotify playlist %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	var sp SpotifyPlaylist
	if err := resp.Decode(&sp); err != nil {
		return nil, err
	}

	tracksPager := &httpx.Paginator[SpotifyPlaylistTrack]{
		Client: s.client,
		First:  fmt.Sprintf("%s/playlists/%s/tracks?limit=100", s.baseURL, playlistID),
		Parse: func(resp *httpx.Response) (httpx.Page[SpotifyPlaylistTrack], error) {
			var page spotifyPage[SpotifyPlaylistTrack]
			if err := resp.Decode(&page); err != nil {
				return httpx.Page[SpotifyPlaylistTrack]{}, err
			}
			next := ""
			if page.Next != nil {
				next = *page.Next
			}
			return httpx.Page[SpotifyPlaylistTrack]{Items: page.Items, Next: next}, nil
		},
	}

	songs := []models.Song{}
	err = tracksPager.Each(ctx, func(item SpotifyPlaylistTrack) error {
		if item.Track.ID == "" {
			// Local files and removed tracks come back without an ID
			return nil
		}
		songs = append(songs, songFromSpotifyTrack(item.Track))
		return nil
	})
	if err != nil {
		return nil, err
	}

	playlist := playlistFromSpotify(sp, songs)
	return &playlist, nil
}

var errFoundPlaylist = errors.New("playlist found")

// FindPlaylistByName returns the first playlist with the given name, walking
// pages lazily, or nil when none matches.
func (s *SpotifyService) FindPlaylistByName(ctx context.Context, name string) (*models.Playlist, error) {
	var found *models.Playlist
	err := s.playlistPaginator().Each(ctx, func(sp SpotifyPlaylist) error {
		if sp.Name == name {
			playlist := playlistFromSpotify(sp, nil)
			found = &playlist
			return errFoundPlaylist
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFoundPlaylist) {
		return nil, err
	}
	return found, nil
}

// CreatePlaylist creates a private playlist owned by the authenticated user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	user, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, fmt.Sprintf("%s/users/%s/playlists", s.baseURL, user.ID), map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create spotify playlist: %w", err)
	}

	var sp SpotifyPlaylist
	if err := resp.Decode(&sp); err != nil {
		return nil, err
	}

	s.logger.Info("created playlist", "name", name, "id", sp.ID)
	playlist := playlistFromSpotify(sp, nil)
	return &playlist, nil
}

// AddTracks appends up to [spotifyBatchLimit] tracks to a playlist in order.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > spotifyBatchLimit {
		return fmt.Errorf("spotify accepts at most %d tracks per call, got %d", spotifyBatchLimit, len(trackIDs))
	}

	uris := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		uris = append(uris, "spotify:track:"+id)
	}

	_, err := s.client.Post(ctx, fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, playlistID), map[string]any{
		"uris": uris,
	})
	if err != nil {
		return fmt.Errorf("failed to add tracks to spotify playlist %s: %w", playlistID, err)
	}
	return nil
}

func (s *SpotifyService) BatchLimit() int { return spotifyBatchLimit }

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SearchByISRC finds the Spotify track for an ISRC, or nil on no hit.
func (s *SpotifyService) SearchByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	query := url.Values{}
	query.Set("q", "isrc:"+isrc)
	query.Set("type", "track")
	query.Set("limit", "1")

	resp, err := s.client.Get(ctx, s.baseURL+"/search?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("spotify isrc search failed: %w", err)
	}

	var result spotifySearchResponse
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Tracks.Items) == 0 {
		return nil, nil
	}

	song := songFromSpotifyTrack(result.Tracks.Items[0])
	return &song, nil
}

// SearchTrack searches by title and artist and returns the best candidate
// scoring at or above the fuzzy match threshold, or nil.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.Song, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("track:%s artist:%s", title, artist))
	query.Set("type", "track")
	query.Set("limit", "5")

	resp, err := s.client.Get(ctx, s.baseURL+"/search?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("spotify track search failed: %w", err)
	}

	var result spotifySearchResponse
	if err := resp.Decode(&result); err != nil {
		return nil, err
	}

	return bestFuzzyMatch(models.Song{Title: title, Artists: []string{artist}}, result.Tracks.Items, songFromSpotifyTrack), nil
}

// bestFuzzyMatch scores candidates against the wanted song and returns the
// highest scorer at or above [models.FuzzyThreshold], or nil.
func bestFuzzyMatch[T any](want models.Song, candidates []T, convert func(T) models.Song) *models.Song {
	var best *models.Song
	bestScore := models.FuzzyThreshold - 1
	for _, candidate := range candidates {
		song := convert(candidate)
		if score := models.FuzzyScore(want, song); score > bestScore {
			bestScore = score
			s := song
			best = &s
		}
	}
	return best
}

type spotifyRecommendations struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

// GeneratePlaylist builds a playlist of recommendations seeded by a track.
// The result is not persisted on Spotify; sync it to create it remotely.
func (s *SpotifyService) GeneratePlaylist(ctx context.Context, seedTrackID string, size int) (*models.Playlist, error) {
	if size <= 0 || size > 100 {
		size = 20
	}

	query := url.Values{}
	query.Set("seed_tracks", seedTrackID)
	query.Set("limit", fmt.Sprintf("%d", size))

	resp, err := s.client.Get(ctx, s.baseURL+"/recommendations?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("spotify recommendations failed: %w", err)
	}

	var recs spotifyRecommendations
	if err := resp.Decode(&recs); err != nil {
		return nil, err
	}

	songs := make([]models.Song, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		songs = append(songs, songFromSpotifyTrack(t))
	}

	return &models.Playlist{
		Name:      fmt.Sprintf("Generated from %s", seedTrackID),
		Service:   "Spotify",
		Songs:     songs,
		SongCount: len(songs),
	}, nil
}
