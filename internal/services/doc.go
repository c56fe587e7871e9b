// Package services defines the [Service] interface for music streaming providers and implements it for Spotify and Tidal.
//
// # Service Interface
//
// All providers implement a common abstraction, so playlist reads, catalog
// searches, and playlist writes work uniformly across services. The sync
// engine only ever sees this interface.
//
// # Spotify Implementation
//
// [SpotifyService] is a confidential OAuth2 client: the client secret rides
// along on code exchange and refresh, and PKCE is not used. Catalog search
// uses the query syntax of the /search endpoint (isrc: and track:/artist:
// qualifiers). Playlist additions are batched at 100 tracks per call.
//
// # Tidal Implementation
//
// [TidalService] is a public OAuth2 client: PKCE is mandatory and no secret
// is ever sent. The v2 API speaks JSON:API, so responses carry data,
// included side-loaded resources, and pagination links; catalog lookups are
// region-scoped by the user's country code, and a 404 on an ISRC filter maps
// to [shared.ErrTrackNotInRegion]. Playlist additions are batched at 20
// items per call.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : no token cached, authorization needed
//   - [shared.ErrNoRefreshToken] : cached token expired and not refreshable
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
//   - [shared.ErrTrackNotInRegion] : track exists but not in the user's market
//
// # API Mappings
//
// Both services convert provider JSON to canonical entities via the models
// package mappers:
//   - Spotify: [SpotifyPlaylist] → [models.Playlist] with ISRC from external_ids
//   - Tidal: [TidalPlaylist] → [models.Playlist] with ISRC from track attributes
package services
