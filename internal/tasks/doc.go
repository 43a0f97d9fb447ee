// Package tasks turns a canonical playlist into matches on other music services.
//
// # Resolution
//
// [Resolver.Resolve] handles one (track, service) pair and runs these steps in order:
//
//  1. Identifier lookup, when the connector supports it and the track has an ISRC.
//     One hit is accepted as is. Several hits are narrowed by album name, else the first wins.
//  2. Text search with the connector's query format.
//  3. Scoring in result order. The first candidate at or above the connector's threshold is taken.
//  4. Full record fetch for connectors whose search results are partial.
//  5. Parsing, and merging the connector's slot into the reference track.
//
// A missed threshold is a [*MatchError], which satisfies errors.Is(err, shared.ErrNoMatch).
//
// # Batch conversion
//
// [ConvertEngine.Convert] fans resolutions out with one goroutine group per target service and a
// bounded, rate limited worker pool inside each group. Outcomes are written by track index, so the
// result keeps playlist order whatever the completion order. A failed track is logged and recorded
// in its outcome slot and never cancels its siblings.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends never block: when the channel
// is full the update is dropped.
package tasks
