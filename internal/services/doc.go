// Package services implements a [Connector] for each streaming service songvert resolves against:
// Spotify, Apple Music, Bandcamp and YouTube Music.
//
// # Connectors
//
// A connector exposes the four primitives the resolver composes: an exact identifier (ISRC)
// lookup, a free-text search, a full-record fetch for services whose search hits are partial, and
// a parse step that turns a raw record into a [models.Track] carrying that service's projection.
// Raw records stay strongly typed per service ([SpotifyTrack], [AppleMusicSong],
// [BandcampSearchResult], [YouTubeSong]) and only meet the resolver through [RawRecord].
//
// Capabilities differ:
//   - Spotify: identifier lookup, search; search hits are complete.
//   - Apple Music: identifier lookup, search, full fetch for artist and album relationships.
//   - Bandcamp: search and full fetch; exact scoring because search hits carry no duration.
//   - YouTube Music: search only.
//
// Every connector carries a [MatchPolicy] (scorer and acceptance threshold), overridable per
// service from configuration with [PolicyFromConfig].
//
// # Loaders
//
// Spotify and Apple Music also implement [Loader] and can read the source track, album or
// playlist a conversion starts from. [ParseLink] maps a share URL to its service, kind and ID.
//
// # Authentication
//
// Tokens are opaque inputs. Spotify attaches its bearer token with an [oauth2.TokenSource],
// either static or scraped anonymously from the web player ([SpotifySessionTokenSource]).
// Apple Music sends a developer token; YouTube Music can replay headers captured from a browser.
//
// # Error Handling
//
// Failures are classified with sentinels from the shared package:
//   - [shared.ErrAPIRequest] : transport failure or non-2xx response, wrapped in [*APIError]
//   - [shared.ErrSchema] : undecodable body or a record missing required fields
//   - [shared.ErrTrackNotFound] : HTTP 404 or an empty identifier lookup
//   - [shared.ErrUnsupported] : the connector has no such primitive
package services
