// Package models defines the service-agnostic entities that every songvert component operates on.
//
// The package contains three groups of types:
//
// 1. Canonical entities: the spine of every conversion
//   - [Track] : the aggregate root, with its ordered artist names and optional ISRC
//   - [Playlist] : an ordered list of tracks; also used for albums
//   - [Artist], [Album] : service-local references carried by match projections
//
// 2. Per-service match projections, stored in the fixed [Services] record
//   - [SpotifyMatch], [AppleMusicMatch], [BandcampMatch], [YouTubeMatch]
//
// 3. Persistent entities for the run history
//   - [Run] : one batch conversion with its counters
//   - [Outcome] : the per-track, per-service result of a run
//
// A Track is built once by a connector's parse step (or read from a JSON file), enriched by resolvers
// that each write exactly one [Services] slot, and consumed read-only by the download pipeline.
// JSON produced by [WritePlaylistFile] and read by [ReadPlaylistFile] round-trips every field.
package models
