// Package matching scores how well a candidate record from a service catalog matches a reference track.
//
// Two modes are supported:
//
//   - [Exact] counts case-insensitive equality of name, album and first artist, plus one point when the
//     durations are within [ToleranceMS]. The result is an integer in 0..4.
//   - [Fuzzy] sums a normalized similarity (0.0..1.0) for name, album and first artist, plus a flat 1.0
//     bonus within the same duration tolerance. The maximum is 4.0.
//
// Fuzzy comparison first folds diacritics, quote variants and "feat." credits so that formatting
// differences between catalogs do not cost points.
//
// When the reference track lists no artists the artist term is skipped: it neither adds nor subtracts.
// Callers that need artists (the resolver does) validate the track before scoring.
//
// Scoring is pure: the same reference and candidate always produce the same value.
package matching
