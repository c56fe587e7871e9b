package models

import (
	"strings"

	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/xrash/smetrics"
)

// MatchFunc decides whether two songs are the same track. The matching
// strategy for ISRC-less songs is pluggable; [DefaultMatch] is the stock one.
type MatchFunc func(a, b Song) bool

// FuzzyThreshold is the minimum combined similarity score (0-100) for two
// ISRC-less songs to count as the same track.
const FuzzyThreshold = 80

// MatchKey returns the key songs are deduplicated by: the ISRC when present,
// otherwise the normalized title|artist pair.
func MatchKey(s Song) string {
	if s.ISRC != "" {
		return s.ISRC
	}
	return shared.NormalizeTrackKey(s.Title, s.PrimaryArtist())
}

// DefaultMatch judges two songs the same track iff their ISRCs are present
// and equal, regardless of title or artist spelling. When either ISRC is
// absent it falls back to fuzzy title+artist similarity.
func DefaultMatch(a, b Song) bool {
	if a.ISRC != "" && b.ISRC != "" {
		return a.ISRC == b.ISRC
	}
	return FuzzyScore(a, b) >= FuzzyThreshold
}

// FuzzyScore is the weighted title+artist similarity between two songs,
// 0-100. Title carries more weight than artist credits.
func FuzzyScore(a, b Song) int {
	titleScore := similarity(a.Title, b.Title)
	artistScore := similarity(a.ArtistLine(), b.ArtistLine())
	return (titleScore*60 + artistScore*40) / 100
}

// similarity scores two strings 0-100 by normalized edit distance. Case and
// whitespace runs are ignored.
func similarity(s1, s2 string) int {
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), " ")
	}
	s1, s2 = norm(s1), norm(s2)
	maxLen := max(len(s1), len(s2))
	if maxLen == 0 {
		return 100
	}
	distance := smetrics.WagnerFischer(s1, s2, 1, 1, 2)
	score := 100 - (distance * 100 / maxLen)
	if score < 0 {
		return 0
	}
	return score
}
