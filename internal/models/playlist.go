package models

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/songvert/internal/shared"
)

// Kind distinguishes what a [Playlist] was loaded from.
type Kind string

const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
)

// Playlist is an ordered list of tracks. Albums use the same shape with the release date fields set.
//
// Track order is playlist order and is preserved through resolution and download.
type Playlist struct {
	Name          string  `json:"name"`
	ID            string  `json:"id"`
	Kind          Kind    `json:"kind,omitempty"`
	Description   *string `json:"description,omitempty"`
	SourceService Source  `json:"source_service"`
	ReleaseYear   int     `json:"release_year,omitempty"`
	ReleaseMonth  *int    `json:"release_month,omitempty"`
	ReleaseDay    *int    `json:"release_day,omitempty"`
	Tracks        []Track `json:"tracks"`
}

// Single wraps one track in a playlist so batch operations treat it uniformly.
func Single(t Track) *Playlist {
	return &Playlist{
		Name:          t.Name,
		Kind:          KindTrack,
		SourceService: t.SourceService,
		Tracks:        []Track{t},
	}
}

// ReadPlaylistFile loads a playlist previously written with [WritePlaylistFile].
func ReadPlaylistFile(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist file: %w", err)
	}

	var p Playlist
	if err := shared.UnmarshalJSON(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
	}
	if p.Tracks == nil {
		return nil, fmt.Errorf("%w: %s has no tracks array", shared.ErrInvalidInput, path)
	}
	return &p, nil
}

// WritePlaylistFile serializes p as indented JSON, creating parent directories as needed.
func WritePlaylistFile(path string, p *Playlist) error {
	return writeJSONFile(path, p)
}

// ReadTrackFile loads and validates a single track document. A playlist document holding exactly
// one track is accepted too.
func ReadTrackFile(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track file: %w", err)
	}

	var wrapper struct {
		Tracks *[]Track `json:"tracks"`
	}
	if err := shared.UnmarshalJSON(data, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
	}

	var t Track
	switch {
	case wrapper.Tracks == nil:
		if err := shared.UnmarshalJSON(data, &t); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidInput, path, err)
		}
	case len(*wrapper.Tracks) == 1:
		t = (*wrapper.Tracks)[0]
	default:
		return nil, fmt.Errorf("%w: %s holds %d tracks, expected a single track", shared.ErrInvalidInput, path, len(*wrapper.Tracks))
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &t, nil
}

// WriteTrackFile serializes t as indented JSON.
func WriteTrackFile(path string, t *Track) error {
	return writeJSONFile(path, t)
}

func writeJSONFile(path string, v any) error {
	data, err := shared.MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
