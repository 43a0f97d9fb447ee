// package tasks resolves canonical tracks against music services.
//
// [Resolver] runs the per-track algorithm; [ConvertEngine] fans it out over a playlist.
package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync/atomic"
	"time"

	"github.com/arunsworld/nursery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultWorkers   = 8
	MaxWorkers       = 32
	DefaultRateLimit = 10.0
)

// ServiceOutcome is the result of resolving one track against one service.
type ServiceOutcome struct {
	Service    models.Source
	Status     string      // one of the models.Status* constants
	Resolution *Resolution // set when Status is matched
	Err        error       // set when Status is no_match or failed
}

// TrackOutcome holds every service outcome of one track, in target order.
type TrackOutcome struct {
	Position int // 1-based playlist position
	Track    *models.Track
	Results  []ServiceOutcome
}

// Result returns the outcome for src, if src was a target.
func (o TrackOutcome) Result(src models.Source) (ServiceOutcome, bool) {
	for _, r := range o.Results {
		if r.Service == src {
			return r, true
		}
	}
	return ServiceOutcome{}, false
}

// ServiceStats counts outcomes for one target service.
type ServiceStats struct {
	Matched int
	NoMatch int
	Failed  int
	Skipped int
}

// ConvertResult contains all data from a conversion run. Outcomes are in playlist order.
type ConvertResult struct {
	Playlist        *models.Playlist
	Targets         []models.Source
	Outcomes        []TrackOutcome
	Stats           map[models.Source]*ServiceStats
	Matched         int
	NoMatch         int
	Failed          int
	Skipped         int
	MatchPercentage float64 // matched share of attempted lookups
	RunID           string  // history record, when a recorder is configured
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Attempted is the number of lookups that were not skipped.
func (r *ConvertResult) Attempted() int {
	return r.Matched + r.NoMatch + r.Failed
}

// RunRecorder persists finished runs. repositories.RunRepository satisfies it.
type RunRecorder interface {
	Create(run *models.Run) error
	AddOutcomes(runID string, outcomes []models.Outcome) error
}

// Metrics observes individual resolutions.
type Metrics interface {
	ObserveResolution(service models.Source, status string, score float64)
}

// Engine converts a playlist into matches on other services.
type Engine interface {
	Convert(ctx context.Context, playlist *models.Playlist, targets []models.Source, progress chan<- ProgressUpdate) (*ConvertResult, error)
}

// ConvertEngine implements [Engine] with one bounded worker pool and rate limiter per target service.
type ConvertEngine struct {
	connectors map[models.Source]services.Connector
	resolver   *Resolver
	workers    int
	rateLimit  float64
	recorder   RunRecorder
	metrics    Metrics
	logger     *log.Logger
}

var _ Engine = (*ConvertEngine)(nil)

// EngineOption customizes a [ConvertEngine].
type EngineOption func(*ConvertEngine)

// WithWorkers sets the per-service concurrency, clamped to [1, MaxWorkers].
func WithWorkers(n int) EngineOption {
	return func(e *ConvertEngine) { e.workers = min(max(n, 1), MaxWorkers) }
}

// WithRateLimit sets requests per second per service. Non-positive values keep the default.
func WithRateLimit(perSecond float64) EngineOption {
	return func(e *ConvertEngine) {
		if perSecond > 0 {
			e.rateLimit = perSecond
		}
	}
}

func WithRecorder(r RunRecorder) EngineOption { return func(e *ConvertEngine) { e.recorder = r } }
func WithMetrics(m Metrics) EngineOption      { return func(e *ConvertEngine) { e.metrics = m } }

func WithLogger(l *log.Logger) EngineOption {
	return func(e *ConvertEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewConvertEngine creates an engine over the given connectors, keyed by their source.
func NewConvertEngine(connectors []services.Connector, opts ...EngineOption) *ConvertEngine {
	e := &ConvertEngine{
		connectors: make(map[models.Source]services.Connector, len(connectors)),
		workers:    DefaultWorkers,
		rateLimit:  DefaultRateLimit,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, c := range connectors {
		if c != nil {
			e.connectors[c.Source()] = c
		}
	}
	e.resolver = NewResolver(e.logger)
	return e
}

// Connector returns the registered connector for src.
func (e *ConvertEngine) Connector(src models.Source) (services.Connector, bool) {
	c, ok := e.connectors[src]
	return c, ok
}

// Convert resolves every track of playlist against every target.
//
// Tracks already sourced from a target are skipped for it. Per-track failures are logged and kept in
// their outcome slot. They never cancel other resolutions. An error is returned only for unusable
// input or a missing connector, before any lookup starts.
func (e *ConvertEngine) Convert(
	ctx context.Context,
	playlist *models.Playlist,
	targets []models.Source,
	progress chan<- ProgressUpdate,
) (*ConvertResult, error) {
	if playlist == nil {
		return nil, fmt.Errorf("%w: nil playlist", shared.ErrInvalidInput)
	}

	targets = uniqueSources(targets)
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no target services", shared.ErrMissingArgument)
	}
	conns := make([]services.Connector, len(targets))
	for i, src := range targets {
		c, ok := e.connectors[src]
		if !ok {
			return nil, fmt.Errorf("%w: no connector for %s", shared.ErrServiceUnavailable, src.Label())
		}
		conns[i] = c
	}

	result := &ConvertResult{
		Playlist:  playlist,
		Targets:   targets,
		Outcomes:  make([]TrackOutcome, len(playlist.Tracks)),
		Stats:     make(map[models.Source]*ServiceStats, len(targets)),
		StartedAt: time.Now().UTC(),
	}

	total := 0
	for i := range playlist.Tracks {
		track := &playlist.Tracks[i]
		result.Outcomes[i] = TrackOutcome{Position: i + 1, Track: track, Results: make([]ServiceOutcome, len(targets))}
		for j, src := range targets {
			result.Outcomes[i].Results[j].Service = src
			if track.SourceService != src {
				total++
			}
		}
	}

	sendProgress(progress, startResolveUpdate(total, targets))

	var done atomic.Int64
	routines := make([]nursery.ConcurrentJob, len(conns))
	for j, conn := range conns {
		routines[j] = func(context.Context, chan error) {
			e.resolveAll(ctx, j, conn, result.Outcomes, progress, &done, total)
		}
	}
	if err := nursery.RunConcurrently(routines...); err != nil {
		return nil, fmt.Errorf("resolution aborted: %w", err)
	}

	result.FinishedAt = time.Now().UTC()
	result.tally()

	if e.recorder != nil {
		if id, err := e.record(result); err != nil {
			e.logger.Warn("failed to record run", "err", err)
		} else {
			result.RunID = id
			sendProgress(progress, recordUpdate(id))
		}
	}

	sendProgress(progress, completeUpdate(result))
	return result, nil
}

func (r *ConvertResult) tally() {
	for _, src := range r.Targets {
		r.Stats[src] = &ServiceStats{}
	}
	for _, o := range r.Outcomes {
		for _, res := range o.Results {
			s := r.Stats[res.Service]
			switch res.Status {
			case models.StatusMatched:
				s.Matched++
				r.Matched++
			case models.StatusNoMatch:
				s.NoMatch++
				r.NoMatch++
			case models.StatusSkipped:
				s.Skipped++
				r.Skipped++
			default:
				s.Failed++
				r.Failed++
			}
		}
	}
	if n := r.Attempted(); n > 0 {
		r.MatchPercentage = float64(r.Matched) / float64(n) * 100
	}
}

// record writes the run and its outcomes. No-match and failures both count as failed on the run row.
func (e *ConvertEngine) record(r *ConvertResult) (string, error) {
	run := models.NewRun(r.Playlist, r.Targets)
	run.StartedAt = r.StartedAt
	run.MarkFinished(r.FinishedAt)
	run.Matched, run.Failed, run.Skipped = r.Matched, r.NoMatch+r.Failed, r.Skipped

	if err := e.recorder.Create(run); err != nil {
		return "", err
	}

	outcomes := make([]models.Outcome, 0, len(r.Outcomes)*len(r.Targets))
	for _, o := range r.Outcomes {
		for _, res := range o.Results {
			oc := models.Outcome{
				RunID:     run.ID(),
				Position:  o.Position,
				Service:   res.Service,
				TrackName: o.Track.Name,
				Artist:    o.Track.PrimaryArtist(),
				Status:    res.Status,
			}
			if res.Resolution != nil {
				oc.Score = res.Resolution.Score
				oc.MatchedID, oc.MatchedURL, _ = o.Track.Services.Ref(res.Service)
			}
			if res.Err != nil {
				oc.Error = res.Err.Error()
			}
			outcomes = append(outcomes, oc)
		}
	}
	if err := e.recorder.AddOutcomes(run.ID(), outcomes); err != nil {
		return run.ID(), err
	}
	return run.ID(), nil
}

func uniqueSources(in []models.Source) []models.Source {
	out := make([]models.Source, 0, len(in))
	for _, s := range in {
		if s != models.SourceUnknown && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func newLimiter(perSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}
