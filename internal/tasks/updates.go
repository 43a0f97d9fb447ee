package tasks

import (
	"fmt"

	"github.com/desertthunder/songvert/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase         // Operation phase
	Service models.Source // Target service, when the phase is per service
	Step    int           // Current step number within phase
	Total   int           // Total steps in this phase
	Message string        // Human-readable message for display
	Data    any           // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadSource Phase = iota
	Resolve
	Download
	Record
	Complete
)

func (p Phase) String() string {
	switch p {
	case LoadSource:
		return "load_source"
	case Resolve:
		return "resolve"
	case Download:
		return "download"
	case Record:
		return "record"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// LoadSourceUpdate announces that the source entity is being fetched.
func LoadSourceUpdate(src models.Source, kind models.Kind, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadSource,
		Service: src,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading %s %s from %s...", kind, id, src.Label()),
	}
}

func startResolveUpdate(total int, targets []models.Source) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Resolving %d tracks against %d services...", total, len(targets)),
	}
}

func resolvedUpdate(step, total int, src models.Source, tr *models.Track, res *Resolution) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Service: src,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s: %s (%.2f via %s)", step, total, src.Label(), tr, res.Score, res.Path),
		Data:    res,
	}
}

func unresolvedUpdate(step, total int, src models.Source, tr *models.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Service: src,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %s: %v", step, total, src.Label(), tr, err),
	}
}

// DownloadUpdate reports one finished download; err is nil on success.
func DownloadUpdate(step, total int, name string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   Download,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
		}
	}
	return ProgressUpdate{
		Phase:   Download,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, name),
	}
}

func recordUpdate(runID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Record,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recorded run %s", runID),
	}
}

func completeUpdate(r *ConvertResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Matched %d of %d lookups (%.1f%%)", r.Matched, r.Attempted(), r.MatchPercentage),
		Data:    r,
	}
}
