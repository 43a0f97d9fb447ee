package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
)

// Path records which resolution step produced a match.
type Path int

const (
	PathIdentifier Path = iota
	PathSearch
)

func (p Path) String() string {
	if p == PathIdentifier {
		return "identifier"
	}
	return "search"
}

// Resolution describes an accepted match.
type Resolution struct {
	Source    models.Source
	Path      Path
	Score     float64
	RecordID  string
	Candidate matching.Candidate
}

// MatchError reports that a service had no acceptable candidate for a track.
type MatchError struct {
	Service    string
	Track      string
	Candidates int
	BestScore  float64
}

func (e *MatchError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("no match for %q on %s: search returned no candidates", e.Track, e.Service)
	}
	return fmt.Sprintf("no match for %q on %s: best of %d candidates scored %.2f", e.Track, e.Service, e.Candidates, e.BestScore)
}

func (e *MatchError) Unwrap() error { return shared.ErrNoMatch }

// Resolver finds the record matching a reference track on one service.
//
// Steps run strictly in order: identifier lookup, text search, scoring, full fetch, accept.
// A Resolver holds no per-call state and is safe for concurrent use.
type Resolver struct {
	logger *log.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{logger: logger}
}

// Resolve matches track against conn and, on success, writes conn's slot of track.Services.
//
// Terminal outcomes are a [Resolution] or an error: [shared.ErrInvalidInput] before any network call,
// a [*MatchError] (errors.Is [shared.ErrNoMatch]) when nothing scores at the threshold, or the
// connector's classified error.
func (r *Resolver) Resolve(ctx context.Context, track *models.Track, conn services.Connector) (*Resolution, error) {
	if err := track.Validate(); err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: connector not initialized", shared.ErrServiceUnavailable)
	}

	logger := r.logger.With("service", conn.Source().String(), "track", track.String())

	if conn.Capabilities().IdentifierLookup && track.HasISRC() {
		res, err := r.byIdentifier(ctx, track, conn)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Info("identifier lookup failed, falling back to search", "isrc", *track.ISRC, "err", err)
	}
	return r.bySearch(ctx, track, conn, logger)
}

func (r *Resolver) byIdentifier(ctx context.Context, track *models.Track, conn services.Connector) (*Resolution, error) {
	records, err := conn.LookupByIdentifier(ctx, strings.TrimSpace(*track.ISRC))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: identifier lookup returned no records", shared.ErrTrackNotFound)
	}

	chosen := records[0]
	if len(records) > 1 {
		for _, rec := range records {
			if strings.EqualFold(strings.TrimSpace(rec.Candidate().Album), strings.TrimSpace(track.Album)) {
				chosen = rec
				break
			}
		}
	}

	score := conn.Policy().Scorer.Score(track, chosen.Candidate())
	return r.accept(ctx, track, conn, chosen, PathIdentifier, score)
}

func (r *Resolver) bySearch(ctx context.Context, track *models.Track, conn services.Connector, logger *log.Logger) (*Resolution, error) {
	records, err := conn.Search(ctx, conn.Query(track))
	if err != nil {
		return nil, err
	}

	policy := conn.Policy()
	best := 0.0
	for i, rec := range records {
		score := policy.Scorer.Score(track, rec.Candidate())
		logger.Debug("scored candidate", "position", i, "id", rec.RecordID(), "score", score)

		if matching.Accepts(score, policy.Threshold) {
			return r.accept(ctx, track, conn, rec, PathSearch, score)
		}
		best = max(best, score)
	}

	return nil, &MatchError{Service: conn.Name(), Track: track.String(), Candidates: len(records), BestScore: best}
}

// accept fetches the full record when the connector needs it, parses it and merges only conn's slot.
func (r *Resolver) accept(
	ctx context.Context,
	track *models.Track,
	conn services.Connector,
	rec services.RawRecord,
	path Path,
	score float64,
) (*Resolution, error) {
	if conn.Capabilities().NeedsFullRecord {
		full, err := conn.FetchFullRecord(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("fetching full record %s: %w", rec.RecordID(), err)
		}
		rec = full
	}

	parsed, err := conn.ParseToCanonical(rec)
	if err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", rec.RecordID(), err)
	}
	if !parsed.Services.Has(conn.Source()) {
		return nil, fmt.Errorf("%w: %s parser did not fill its slot", shared.ErrSchema, conn.Name())
	}

	track.Services.Merge(conn.Source(), parsed.Services)
	return &Resolution{
		Source:    conn.Source(),
		Path:      path,
		Score:     score,
		RecordID:  rec.RecordID(),
		Candidate: rec.Candidate(),
	}, nil
}

// IsNoMatch reports whether err is an expected no-match outcome rather than a failure.
func IsNoMatch(err error) bool {
	return errors.Is(err, shared.ErrNoMatch)
}
