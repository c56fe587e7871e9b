package models

import (
	"strings"
)

// Song represents a music track from any service. ServiceID is scoped to the
// service the song was fetched from.
type Song struct {
	ServiceID string
	Title     string
	Artists   []string // provider order preserved
	Album     string
	Duration  int // seconds
	ISRC      string
}

// PrimaryArtist returns the first credited artist, or "".
func (s Song) PrimaryArtist() string {
	if len(s.Artists) == 0 {
		return ""
	}
	return s.Artists[0]
}

// ArtistLine joins all credited artists for display and fuzzy comparison.
func (s Song) ArtistLine() string {
	return strings.Join(s.Artists, ", ")
}

// Image is one cover art rendition.
type Image struct {
	URL    string
	Width  int
	Height int
}

// Playlist represents a music playlist from any service. Song order is
// significant and duplicates are allowed.
type Playlist struct {
	ID          string
	Name        string
	Description string
	Service     string
	Songs       []Song
	SongCount   int // reported by the service; set even when Songs is not loaded
	CoverImage  string
	URL         string
	Public      bool
}

// IsEmpty reports whether the playlist has no songs. An empty playlist is a
// valid fetch result but an invalid sync source.
func (p Playlist) IsEmpty() bool {
	return len(p.Songs) == 0
}

// SongPayload is the normalized shape services decode their track JSON into
// before mapping. Optional fields stay zero-valued when the provider omits them.
type SongPayload struct {
	ServiceID string
	Title     string
	Artists   []string
	Album     string
	Duration  int
	ISRC      string
}

// PlaylistPayload is the normalized shape services decode their playlist JSON into.
type PlaylistPayload struct {
	ID          string
	Name        string
	Description string
	Images      []Image
	URL         string
	Public      bool
}

// SongFromPayload maps a raw track payload into a canonical Song. Absent
// optional fields (ISRC, album) are tolerated.
func SongFromPayload(raw SongPayload) Song {
	artists := make([]string, len(raw.Artists))
	copy(artists, raw.Artists)

	return Song{
		ServiceID: raw.ServiceID,
		Title:     raw.Title,
		Artists:   artists,
		Album:     raw.Album,
		Duration:  raw.Duration,
		ISRC:      strings.ToUpper(strings.TrimSpace(raw.ISRC)),
	}
}

// PlaylistFromPayload maps a raw playlist payload plus its mapped songs into a
// canonical Playlist. The cover image is the largest rendition offered.
func PlaylistFromPayload(raw PlaylistPayload, service string, songs []Song) Playlist {
	return Playlist{
		ID:          raw.ID,
		Name:        raw.Name,
		Description: raw.Description,
		Service:     service,
		Songs:       songs,
		CoverImage:  LargestImage(raw.Images),
		URL:         raw.URL,
		Public:      raw.Public,
	}
}

// LargestImage picks the URL of the rendition with the largest width*height
// area. Ties keep the first seen; images without dimensions rank as area zero.
func LargestImage(images []Image) string {
	best := ""
	bestArea := -1
	for _, img := range images {
		area := img.Width * img.Height
		if area > bestArea {
			best = img.URL
			bestArea = area
		}
	}
	return best
}

// Dedupe returns songs with duplicates (by match key) removed, keeping the
// first occurrence and preserving order. Playlists keep their duplicates;
// this trims the search set when matching against a destination catalog.
func Dedupe(songs []Song) []Song {
	seen := make(map[string]bool, len(songs))
	out := make([]Song, 0, len(songs))
	for _, song := range songs {
		key := MatchKey(song)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, song)
	}
	return out
}
