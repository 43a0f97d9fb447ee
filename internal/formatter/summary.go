package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/tasks"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1)
)

// Summary renders a boxed per-service overview of r followed by the tracks that were not matched.
func Summary(r *tasks.ConvertResult) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s → %s", r.Playlist.Name, targetLabels(r.Targets))))
	b.WriteString("\n")
	for _, src := range r.Targets {
		s := r.Stats[src]
		if s == nil {
			continue
		}
		line := fmt.Sprintf("%-13s %s  %s  %s",
			src.Label(),
			okStyle.Render(fmt.Sprintf("✓ %d", s.Matched)),
			warnStyle.Render(fmt.Sprintf("✗ %d", s.NoMatch)),
			errStyle.Render(fmt.Sprintf("! %d", s.Failed)),
		)
		if s.Skipped > 0 {
			line += mutedStyle.Render(fmt.Sprintf("  (%d from source)", s.Skipped))
		}
		b.WriteString("\n" + line)
	}
	fmt.Fprintf(&b, "\n\nMatched %d of %d lookups (%.1f%%) in %s",
		r.Matched, r.Attempted(), r.MatchPercentage, r.FinishedAt.Sub(r.StartedAt).Round(1e6))
	if r.RunID != "" {
		b.WriteString(mutedStyle.Render("\nrun " + r.RunID))
	}

	out := boxStyle.Render(b.String())
	if missed := Unmatched(r); len(missed) > 0 {
		out += "\n" + warnStyle.Render("Unmatched:")
		for _, m := range missed {
			out += "\n  • " + m
		}
	}
	return out
}

// Unmatched lists "position. track (services)" for every track with a no-match or failed outcome.
func Unmatched(r *tasks.ConvertResult) []string {
	var lines []string
	for _, o := range r.Outcomes {
		var missed []string
		for _, res := range o.Results {
			if res.Status == models.StatusNoMatch || res.Status == models.StatusFailed {
				missed = append(missed, res.Service.Label())
			}
		}
		if len(missed) > 0 {
			lines = append(lines, fmt.Sprintf("%d. %s (%s)", o.Position, o.Track, strings.Join(missed, ", ")))
		}
	}
	return lines
}

func targetLabels(srcs []models.Source) string {
	labels := make([]string, len(srcs))
	for i, s := range srcs {
		labels[i] = s.Label()
	}
	return strings.Join(labels, ", ")
}
