package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/songvert/internal/shared"
)

// Outcome statuses recorded per track and service.
const (
	StatusMatched = "matched"
	StatusNoMatch = "no_match"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one batch conversion as recorded in the history database.
type Run struct {
	id            string
	Sequence      int
	Kind          Kind
	SourceService Source
	SourceID      string
	Name          string
	Targets       []Source
	Total         int
	Matched       int
	Failed        int
	Skipped       int
	StartedAt     time.Time
	FinishedAt    *time.Time
	createdAt     time.Time
	updatedAt     time.Time
	DeletedAt     *time.Time
}

// NewRun starts a run record for playlist p against the given targets.
func NewRun(p *Playlist, targets []Source) *Run {
	now := time.Now().UTC()
	return &Run{
		Kind:          p.Kind,
		SourceService: p.SourceService,
		SourceID:      p.ID,
		Name:          p.Name,
		Targets:       targets,
		Total:         len(p.Tracks),
		StartedAt:     now,
		createdAt:     now,
		updatedAt:     now,
	}
}

func (r *Run) ID() string                { return r.id }
func (r *Run) SetID(id string)           { r.id = id }
func (r *Run) CreatedAt() time.Time      { return r.createdAt }
func (r *Run) UpdatedAt() time.Time      { return r.updatedAt }
func (r *Run) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *Run) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *Run) IsDeleted() bool           { return r.DeletedAt != nil }
func (r *Run) MarkFinished(at time.Time) { r.FinishedAt = &at }

// Validate checks that the run has the fields the runs table requires.
func (r *Run) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: run name is required", shared.ErrInvalidInput)
	}
	if len(r.Targets) == 0 {
		return fmt.Errorf("%w: run has no target services", shared.ErrInvalidInput)
	}
	if r.Matched+r.Failed+r.Skipped > r.Total*len(r.Targets) {
		return fmt.Errorf("%w: run counters exceed track count", shared.ErrInvalidInput)
	}
	return nil
}

// Outcome is the result of one (track, service) resolution within a run.
type Outcome struct {
	RunID      string
	Position   int
	Service    Source
	TrackName  string
	Artist     string
	Status     string
	Score      float64
	MatchedID  string
	MatchedURL string
	Error      string
}
