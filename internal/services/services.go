// package services defines the Connector contract for music catalogs and implements it for
// Spotify, Apple Music, Bandcamp and YouTube Music.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

// RawRecord is one catalog record in the service's native shape.
//
// Each connector owns its concrete record types; callers outside the connector only see the ID and
// the fields used for scoring.
type RawRecord interface {
	RecordID() string
	Candidate() matching.Candidate
}

// Capabilities describes which optional steps a connector takes part in.
type Capabilities struct {
	// IdentifierLookup is set when the catalog can be queried by ISRC.
	IdentifierLookup bool
	// NeedsFullRecord is set when search results lack fields required by ParseToCanonical.
	NeedsFullRecord bool
}

// MatchPolicy is the scorer and acceptance threshold a connector declares.
type MatchPolicy struct {
	Scorer    matching.Scorer
	Threshold float64
}

// PolicyFromConfig builds a [MatchPolicy] from a config section, falling back to def for unset values.
func PolicyFromConfig(cfg shared.MatchConfig, def MatchPolicy) (MatchPolicy, error) {
	policy := def
	if strings.TrimSpace(cfg.Mode) != "" {
		mode, err := matching.ParseMode(cfg.Mode)
		if err != nil {
			return def, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		policy.Scorer.Mode = mode
	}
	if strings.TrimSpace(cfg.Metric) != "" {
		metric, err := matching.ParseMetric(cfg.Metric)
		if err != nil {
			return def, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		policy.Scorer.Metric = metric
	}
	if cfg.Threshold != 0 {
		policy.Threshold = cfg.Threshold
	}
	policy.Scorer = matching.NewScorer(policy.Scorer.Mode, policy.Scorer.Metric)
	return policy, nil
}

// Connector integrates one external catalog.
//
// All methods that touch the network take a context and return classified errors:
//   - [shared.ErrAPIRequest] for transport failures and non-2xx statuses
//   - [shared.ErrTrackNotFound] for the service's own "not found"
//   - [shared.ErrSchema] for payloads missing required fields
//   - [shared.ErrUnsupported] when the connector lacks the capability
type Connector interface {
	Name() string
	Source() models.Source
	Capabilities() Capabilities
	Policy() MatchPolicy

	// Query builds the free-text search query for a reference track.
	Query(track *models.Track) string

	// LookupByIdentifier performs an exact ISRC lookup. Zero hits is [shared.ErrTrackNotFound].
	LookupByIdentifier(ctx context.Context, isrc string) ([]RawRecord, error)

	// Search runs a free-text catalog search. Results keep the service's relevance order.
	Search(ctx context.Context, query string) ([]RawRecord, error)

	// FetchFullRecord retrieves the complete record for a search hit.
	FetchFullRecord(ctx context.Context, rec RawRecord) (RawRecord, error)

	// ParseToCanonical converts a record to a Track carrying this service's match projection.
	ParseToCanonical(rec RawRecord) (*models.Track, error)
}

// Loader reads source entities by their service-local ID.
type Loader interface {
	Source() models.Source
	LoadTrack(ctx context.Context, id string) (*models.Track, error)
	LoadAlbum(ctx context.Context, id string) (*models.Playlist, error)
	LoadPlaylist(ctx context.Context, id string) (*models.Playlist, error)
}

// recordAs narrows a RawRecord to the connector's concrete type.
func recordAs[T RawRecord](service string, rec RawRecord) (T, error) {
	v, ok := rec.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s cannot handle record of type %T", shared.ErrInvalidInput, service, rec)
	}
	return v, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}
