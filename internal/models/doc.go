// Package models defines domain entities for the playlist synchronization service.
//
// The package contains two categories of types:
//
// 1. Canonical value objects mapped from per-service API payloads:
//   - [Song] : Track metadata with ISRC for cross-service matching
//   - [Playlist] : A named, ordered collection of songs with cover art
//   - [Image] : One cover art rendition with reported dimensions
//
// Value objects are immutable once mapped; sync operations build new values
// rather than mutating fetched ones.
//
// 2. Persistent entities backing the sqlite cache and sync history:
//   - [PersistedTrack] : Cached cross-service track matches keyed by ISRC
//   - [SyncRun] : One sync invocation with its per-song outcomes
//
// Persistent entities implement the Model interface providing ID generation,
// timestamps, and validation.
package models
