// Tidal API implementation of [Service]
//
// Tidal v2 API response types based on https://developer.tidal.com/apiref
// (JSON:API documents: data + included resources + pagination links)
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunesync/internal/auth"
	"github.com/desertthunder/tunesync/internal/httpx"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/shared"
)

const (
	tidalAuthURL  = "https://login.tidal.com/authorize"
	tidalTokenURL = "https://auth.tidal.com/v1/oauth2/token"
	tidalBaseURL  = "https://openapi.tidal.com/v2"

	// tidalBatchLimit is the maximum items per add-to-playlist call.
	tidalBatchLimit = 20
)

type tidalRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type tidalRelationship struct {
	Data []tidalRef `json:"data"`
}

type tidalLinks struct {
	Next string `json:"next"`
}

type tidalImageLink struct {
	Href string `json:"href"`
	Meta struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"meta"`
}

// TidalTrack is a track resource.
type TidalTrack struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Title    string `json:"title"`
		ISRC     string `json:"isrc"`
		Duration string `json:"duration"` // ISO 8601, e.g. PT3M20S
	} `json:"attributes"`
	Relationships struct {
		Artists tidalRelationship `json:"artists"`
		Albums  tidalRelationship `json:"albums"`
	} `json:"relationships"`
}

// TidalPlaylist is a playlist resource.
type TidalPlaylist struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name          string           `json:"name"`
		Description   string           `json:"description"`
		AccessType    string           `json:"accessType"`
		NumberOfItems int              `json:"numberOfItems"`
		ImageLinks    []tidalImageLink `json:"imageLinks"`
		ExternalLinks []struct {
			Href string `json:"href"`
		} `json:"externalLinks"`
	} `json:"attributes"`
}

// tidalIncluded is a side-loaded resource; attributes union over the resource
// types this client cares about (artists, albums, tracks).
type tidalIncluded struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		Title    string `json:"title"`
		ISRC     string `json:"isrc"`
		Duration string `json:"duration"`
	} `json:"attributes"`
	Relationships struct {
		Artists tidalRelationship `json:"artists"`
		Albums  tidalRelationship `json:"albums"`
	} `json:"relationships"`
}

type tidalTracksDocument struct {
	Data     []TidalTrack    `json:"data"`
	Included []tidalIncluded `json:"included"`
	Links    tidalLinks      `json:"links"`
}

type tidalPlaylistsDocument struct {
	Data  []TidalPlaylist `json:"data"`
	Links tidalLinks      `json:"links"`
}

type tidalPlaylistDocument struct {
	Data TidalPlaylist `json:"data"`
}

type tidalItemsDocument struct {
	Data     []tidalRef      `json:"data"`
	Included []tidalIncluded `json:"included"`
	Links    tidalLinks      `json:"links"`
}

type tidalUserDocument struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Country string `json:"country"`
		} `json:"attributes"`
	} `json:"data"`
}

// TidalService implements the Service interface for Tidal API interactions.
//
// Tidal is a public OAuth client: PKCE is mandatory and no client secret is
// sent on exchange or refresh. Catalog lookups are region-scoped, so the
// authenticated user's country code rides along on every request.
type TidalService struct {
	auth    *auth.Authenticator
	client  *httpx.Client
	logger  *log.Logger
	baseURL string

	// resolved lazily from /users/me, kept in memory only
	userID  string
	country string
}

// TidalOption configures a TidalService.
type TidalOption func(*TidalService)

// WithTidalBaseURL overrides the API base URL (tests point it at httptest servers).
func WithTidalBaseURL(baseURL string) TidalOption {
	return func(s *TidalService) { s.baseURL = baseURL }
}

// NewTidalService creates a Tidal service with the given OAuth2 credentials.
func NewTidalService(creds shared.ServiceCredentials, store auth.Store, logger *log.Logger, opts ...TidalOption) (*TidalService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("tidal requires client_id")
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	authenticator := auth.New(auth.Config{
		Service:     "Tidal",
		AuthURL:     tidalAuthURL,
		TokenURL:    tidalTokenURL,
		ClientID:    creds.ClientID,
		RedirectURI: creds.RedirectURI,
		Scopes:      []string{"user.read", "playlists.read", "playlists.write"},
		NeedsPKCE:   true,
	}, store, logger)

	s := &TidalService{
		auth:    authenticator,
		logger:  shared.WithLogger(logger, "service", "Tidal"),
		baseURL: tidalBaseURL,
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

func (s *TidalService) Name() string { return "Tidal" }

// Authenticate returns an authorization URL when the user must log in, or ""
// when the cached token is usable.
func (s *TidalService) Authenticate(ctx context.Context) (string, error) {
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

// ExchangeCode completes the PKCE flow with the redirect's authorization code.
func (s *TidalService) ExchangeCode(ctx context.Context, code string) error {
	_, err := s.auth.ExchangeCode(ctx, code)
	return err
}

func (s *TidalService) State() string { return s.auth.State() }

func (s *TidalService) IsAuthenticated() bool { return s.auth.IsAuthenticated() }

func (s *TidalService) Logout() error {
	s.userID = ""
	s.country = ""
	return s.auth.Logout()
}

// profile resolves and caches the authenticated user's ID and country code.
func (s *TidalService) profile(ctx context.Context) error {
	if s.userID != "" {
		return nil
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/users/me")
	if err != nil {
		return fmt.Errorf("failed to fetch tidal profile: %w", err)
	}

	var doc tidalUserDocument
	if err := resp.Decode(&doc); err != nil {
		return err
	}

	s.userID = doc.Data.ID
	s.country = doc.Data.Attributes.Country
	if s.country == "" {
		s.country = "US"
	}
	return nil
}

// absoluteNext resolves a pagination link, which Tidal emits relative to the API root.
func (s *TidalService) absoluteNext(next string) string {
	if next == "" || strings.HasPrefix(next, "http") {
		return next
	}
	return s.baseURL + next
}

// parseISODuration converts Tidal's ISO 8601 track durations (PT3M20S) to seconds.
func parseISODuration(value string) int {
	rest, ok := strings.CutPrefix(value, "PT")
	if !ok {
		return 0
	}

	seconds := 0
	number := ""
	for _, r := range rest {
		switch {
		case r >= '0' && r <= '9':
			number += string(r)
		case r == 'H' || r == 'M' || r == 'S':
			n, err := strconv.Atoi(number)
			if err != nil {
				return 0
			}
			switch r {
			case 'H':
				seconds += n * 3600
			case 'M':
				seconds += n * 60
			case 'S':
				seconds += n
			}
			number = ""
		default:
			return 0
		}
	}
	return seconds
}

// artistNames resolves a track's artist references against the document's
// included resources, preserving the credited order.
func artistNames(refs []tidalRef, included []tidalIncluded) []string {
	byID := make(map[string]string, len(included))
	for _, inc := range included {
		if inc.Type == "artists" {
			byID[inc.ID] = inc.Attributes.Name
		}
	}

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if name, ok := byID[ref.ID]; ok {
			names = append(names, name)
		}
	}
	return names
}

func songFromTidalTrack(t TidalTrack, included []tidalIncluded) models.Song {
	album := ""
	if len(t.Relationships.Albums.Data) > 0 {
		albumID := t.Relationships.Albums.Data[0].ID
		for _, inc := range included {
			if inc.Type == "albums" && inc.ID == albumID {
				album = inc.Attributes.Title
				break
			}
		}
	}

	return models.SongFromPayload(models.SongPayload{
		ServiceID: t.ID,
		Title:     t.Attributes.Title,
		Artists:   artistNames(t.Relationships.Artists.Data, included),
		Album:     album,
		Duration:  parseISODuration(t.Attributes.Duration),
		ISRC:      t.Attributes.ISRC,
	})
}

// trackFromIncluded promotes a side-loaded track resource to a TidalTrack.
func trackFromIncluded(inc tidalIncluded) TidalTrack {
	var t TidalTrack
	t.ID = inc.ID
	t.Type = inc.Type
	t.Attributes.Title = inc.Attributes.Title
	t.Attributes.ISRC = inc.Attributes.ISRC
	t.Attributes.Duration = inc.Attributes.Duration
	t.Relationships.Artists = inc.Relationships.Artists
	t.Relationships.Albums = inc.Relationships.Albums
	return t
}

func playlistFromTidal(tp TidalPlaylist, songs []models.Song) models.Playlist {
	images := make([]models.Image, 0, len(tp.Attributes.ImageLinks))
	for _, link := range tp.Attributes.ImageLinks {
		images = append(images, models.Image{URL: link.Href, Width: link.Meta.Width, Height: link.Meta.Height})
	}

	externalURL := ""
	if len(tp.Attributes.ExternalLinks) > 0 {
		externalURL = tp.Attributes.ExternalLinks[0].Href
	}

	playlist := models.PlaylistFromPayload(models.PlaylistPayload{
		ID:          tp.ID,
		Name:        tp.Attributes.Name,
		Description: tp.Attributes.Description,
		Images:      images,
		URL:         externalURL,
		Public:      tp.Attributes.AccessType == "PUBLIC",
	}, "Tidal", songs)

	playlist.SongCount = tp.Attributes.NumberOfItems
	if len(songs) > 0 {
		playlist.SongCount = len(songs)
	}
	return playlist
}

// GetAllPlaylists retrieves all playlists of the authenticated user, without
// track listings.
func (s *TidalService) GetAllPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("filter[r.owners.id]", s.userID)
	query.Set("countryCode", s.country)

	pager := &httpx.Paginator[TidalPlaylist]{
		Client: s.client,
		First:  s.baseURL + "/playlists?" + query.Encode(),
		Parse: func(resp *httpx.Response) (httpx.Page[TidalPlaylist], error) {
			var doc tidalPlaylistsDocument
			if err := resp.Decode(&doc); err != nil {
				return httpx.Page[TidalPlaylist]{}, err
			}
			return httpx.Page[TidalPlaylist]{Items: doc.Data, Next: s.absoluteNext(doc.Links.Next)}, nil
		},
	}

	raw, err := pager.All(ctx)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, tp := range raw {
		playlists = append(playlists, playlistFromTidal(tp, nil))
	}
	return playlists, nil
}

// GetPlaylist retrieves a playlist with its full, ordered track listing.
func (s *TidalService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/playlists/%s?countryCode=%s", s.baseURL, playlistID, s.country))
	if err != nil {
		if httpx.IsStatus(err, 404) {
			return nil, fmt.Errorf("%w: tidal playlist %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}

	var doc tidalPlaylistDocument
	if err := resp.Decode(&doc); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("countryCode", s.country)
	query.Set("include", "items,items.artists,items.albums")

	itemsPager := &httpx.Paginator[models.Song]{
		Client: s.client,
		First:  fmt.Sprintf("%s/playlists/%s/relationships/items?%s", s.baseURL, playlistID, query.Encode()),
		Parse: func(resp *httpx.Response) (httpx.Page[models.Song], error) {
			var items tidalItemsDocument
			if err := resp.Decode(&items); err != nil {
				return httpx.Page[models.Song]{}, err
			}

			tracksByID := make(map[string]TidalTrack)
			for _, inc := range items.Included {
				if inc.Type == "tracks" {
					tracksByID[inc.ID] = trackFromIncluded(inc)
				}
			}

			// Item order follows the relationship data, not the included set
			songs := make([]models.Song, 0, len(items.Data))
			for _, ref := range items.Data {
				track, ok := tracksByID[ref.ID]
				if !ok {
					continue
				}
				songs = append(songs, songFromTidalTrack(track, items.Included))
			}

			return httpx.Page[models.Song]{Items: songs, Next: s.absoluteNext(items.Links.Next)}, nil
		},
	}

	songs, err := itemsPager.All(ctx)
	if err != nil {
		return nil, err
	}

	playlist := playlistFromTidal(doc.Data, songs)
	return &playlist, nil
}

// FindPlaylistByName returns the first playlist with the given name, walking
// pages lazily, or nil when none matches.
func (s *TidalService) FindPlaylistByName(ctx context.Context, name string) (*models.Playlist, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("filter[r.owners.id]", s.userID)
	query.Set("countryCode", s.country)

	pager := &httpx.Paginator[TidalPlaylist]{
		Client: s.client,
		First:  s.baseURL + "/playlists?" + query.Encode(),
		Parse: func(resp *httpx.Response) (httpx.Page[TidalPlaylist], error) {
			var doc tidalPlaylistsDocument
			if err := resp.Decode(&doc); err != nil {
				return httpx.Page[TidalPlaylist]{}, err
			}
			return httpx.Page[TidalPlaylist]{Items: doc.Data, Next: s.absoluteNext(doc.Links.Next)}, nil
		},
	}

	var found *models.Playlist
	err := pager.Each(ctx, func(tp TidalPlaylist) error {
		if tp.Attributes.Name == name {
			playlist := playlistFromTidal(tp, nil)
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

// CreatePlaylist creates an unlisted playlist owned by the authenticated user.
func (s *TidalService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.Post(ctx, fmt.Sprintf("%s/playlists?countryCode=%s", s.baseURL, s.country), map[string]any{
		"data": map[string]any{
			"type": "playlists",
			"attributes": map[string]any{
				"name":        name,
				"description": description,
				"accessType":  "UNLISTED",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tidal playlist: %w", err)
	}

	var doc tidalPlaylistDocument
	if err := resp.Decode(&doc); err != nil {
		return nil, err
	}

	s.logger.Info("created playlist", "name", name, "id", doc.Data.ID)
	playlist := playlistFromTidal(doc.Data, nil)
	return &playlist, nil
}

// AddTracks appends up to [tidalBatchLimit] tracks to a playlist in order.
func (s *TidalService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}
	if len(trackIDs) > tidalBatchLimit {
		return fmt.Errorf("tidal accepts at most %d tracks per call, got %d", tidalBatchLimit, len(trackIDs))
	}

	refs := make([]tidalRef, 0, len(trackIDs))
	for _, id := range trackIDs {
		refs = append(refs, tidalRef{ID: id, Type: "tracks"})
	}

	_, err := s.client.Post(ctx, fmt.Sprintf("%s/playlists/%s/relationships/items?countryCode=%s", s.baseURL, playlistID, s.country), map[string]any{
		"data": refs,
	})
	if err != nil {
		return fmt.Errorf("failed to add tracks to tidal playlist %s: %w", playlistID, err)
	}
	return nil
}

func (s *TidalService) BatchLimit() int { return tidalBatchLimit }

// SearchByISRC finds the Tidal track for an ISRC, or nil on no hit. A 404
// from the catalog means the recording exists but not in the user's region.
func (s *TidalService) SearchByISRC(ctx context.Context, isrc string) (*models.Song, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("filter[isrc]", isrc)
	query.Set("countryCode", s.country)
	query.Set("include", "artists,albums")

	resp, err := s.client.Get(ctx, s.baseURL+"/tracks?"+query.Encode())
	if err != nil {
		if httpx.IsStatus(err, 404) {
			return nil, fmt.Errorf("%w: isrc %s in %s", shared.ErrTrackNotInRegion, isrc, s.country)
		}
		return nil, fmt.Errorf("tidal isrc search failed: %w", err)
	}

	var doc tidalTracksDocument
	if err := resp.Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Data) == 0 {
		return nil, nil
	}

	song := songFromTidalTrack(doc.Data[0], doc.Included)
	return &song, nil
}

// SearchTrack searches by title and artist and returns the best candidate
// scoring at or above the fuzzy match threshold, or nil.
func (s *TidalService) SearchTrack(ctx context.Context, title, artist string) (*models.Song, error) {
	if err := s.profile(ctx); err != nil {
		return nil, err
	}

	term := url.PathEscape(strings.TrimSpace(title + " " + artist))
	query := url.Values{}
	query.Set("countryCode", s.country)
	query.Set("include", "tracks,tracks.artists")

	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/searchResults/%s/relationships/tracks?%s", s.baseURL, term, query.Encode()))
	if err != nil {
		return nil, fmt.Errorf("tidal track search failed: %w", err)
	}

	var doc tidalItemsDocument
	if err := resp.Decode(&doc); err != nil {
		return nil, err
	}

	candidates := make([]TidalTrack, 0, len(doc.Data))
	tracksByID := make(map[string]TidalTrack)
	for _, inc := range doc.Included {
		if inc.Type == "tracks" {
			tracksByID[inc.ID] = trackFromIncluded(inc)
		}
	}
	for _, ref := range doc.Data {
		if track, ok := tracksByID[ref.ID]; ok {
			candidates = append(candidates, track)
		}
	}

	want := models.Song{Title: title, Artists: []string{artist}}
	return bestFuzzyMatch(want, candidates, func(t TidalTrack) models.Song {
		return songFromTidalTrack(t, doc.Included)
	}), nil
}
