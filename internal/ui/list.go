package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/tasks"
)

var _ list.Item = trackItem{}

// trackItem wraps [tasks.TrackOutcome] to implement [list.Item].
type trackItem struct {
	outcome tasks.TrackOutcome
}

func (i trackItem) FilterValue() string { return i.outcome.Track.String() }
func (i trackItem) Title() string {
	return fmt.Sprintf("%d. %s", i.outcome.Position, i.outcome.Track)
}

// Description renders one colored marker per target service, e.g. "Apple Music ✓ • Bandcamp ✗".
func (i trackItem) Description() string {
	parts := make([]string, 0, len(i.outcome.Results))
	for _, r := range i.outcome.Results {
		parts = append(parts, styles.statusStyle(r.Status).Render(r.Service.Label()+" "+statusMark(r.Status)))
	}
	return strings.Join(parts, " • ")
}

func (i trackItem) unmatched() bool {
	for _, r := range i.outcome.Results {
		if r.Status == models.StatusNoMatch || r.Status == models.StatusFailed {
			return true
		}
	}
	return false
}

func statusMark(status string) string {
	switch status {
	case models.StatusMatched:
		return "✓"
	case models.StatusNoMatch:
		return "✗"
	case models.StatusFailed:
		return "!"
	default:
		return "·"
	}
}

func trackItems(outcomes []tasks.TrackOutcome, unmatchedOnly bool) []list.Item {
	items := make([]list.Item, 0, len(outcomes))
	for _, o := range outcomes {
		item := trackItem{outcome: o}
		if unmatchedOnly && !item.unmatched() {
			continue
		}
		items = append(items, item)
	}
	return items
}
