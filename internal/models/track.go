package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Artist is a service-local artist reference. Name is the comparison key across services.
type Artist struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	URL  *string `json:"url,omitempty"`
}

// Album is a service-local album reference. EAN and UPC are universal but rarely populated.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	URL         *string `json:"url,omitempty"`
	TotalTracks *int    `json:"total_tracks,omitempty"`
	EAN         *string `json:"ean,omitempty"`
	UPC         *string `json:"upc,omitempty"`
}

// Track is the canonical, service-agnostic representation of a song.
type Track struct {
	Name          string   `json:"name" validate:"required"`
	Album         string   `json:"album"`
	DiskNumber    int      `json:"disk_number" validate:"gte=0"`
	TrackNumber   int      `json:"track_number" validate:"gte=0"`
	Artists       []string `json:"artists" validate:"required,min=1,dive,required"`
	ReleaseYear   int      `json:"release_year" validate:"gte=0"`
	ReleaseMonth  *int     `json:"release_month,omitempty" validate:"omitempty,min=1,max=12"`
	ReleaseDay    *int     `json:"release_day,omitempty" validate:"omitempty,min=1,max=31"`
	IsExplicit    bool     `json:"is_explicit"`
	DurationMS    int      `json:"duration_ms" validate:"gte=0"`
	ISRC          *string  `json:"isrc,omitempty"`
	SourceService Source   `json:"source_service"`
	Services      Services `json:"services" validate:"-"`
}

// Validate reports whether the track can be used as a matching reference.
//
// A track without artists is a hard input error; it is never coerced.
func (t *Track) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil track", shared.ErrInvalidInput)
	}
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: track %q: %v", shared.ErrInvalidInput, t.Name, err)
	}
	return nil
}

// PrimaryArtist returns the first listed artist, or "" when there is none.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// HasISRC reports whether a non-empty recording code is present.
func (t *Track) HasISRC() bool {
	return t.ISRC != nil && strings.TrimSpace(*t.ISRC) != ""
}

// String renders "Artist - Name" for logs and reports.
func (t *Track) String() string {
	if a := t.PrimaryArtist(); a != "" {
		return a + " - " + t.Name
	}
	return t.Name
}
