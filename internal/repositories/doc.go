// Package repositories implements SQLite persistence for conversion history.
//
// [RunRepository] stores one row per batch conversion and one row per (track, service) outcome.
// Runs are soft deleted through deleted_at and excluded from queries by default. History is
// written after each run and read only by the history command. The resolver never consults it.
//
// Sequence numbers give runs a stable, human-readable ordering independent of UUIDs and clock
// skew. The counter lives in runs_sequence and is advanced in the same transaction as the insert.
package repositories
