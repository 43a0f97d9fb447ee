// package formatter renders conversion results as reports (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/desertthunder/songvert/internal/tasks"
)

// Format selects a report encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// FormatFromPath picks a format from a file extension, defaulting to JSON so the output can be
// read back as a playlist.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".md", ".markdown":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return FormatJSON
	}
}

// ExportToCSV writes one row per (track, target service) with columns:
// Position, Title, Artist, Album, Service, Status, Score, Matched ID, URL, Error
func ExportToCSV(r *tasks.ConvertResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "Service", "Status", "Score", "Matched ID", "URL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, o := range r.Outcomes {
		for _, res := range o.Results {
			id, url, _ := o.Track.Services.Ref(res.Service)
			record := []string{
				strconv.Itoa(o.Position),
				o.Track.Name,
				o.Track.PrimaryArtist(),
				o.Track.Album,
				res.Service.String(),
				res.Status,
				score(res),
				id,
				url,
				errText(res),
			}
			if res.Status != models.StatusMatched {
				record[7], record[8] = "", ""
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a table with one column per target service, linking matches.
func ExportToMarkdown(r *tasks.ConvertResult) ([]byte, error) {
	var buf bytes.Buffer
	p := r.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", mdEscape(p.Name))
	if p.Description != nil && *p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", mdEscape(*p.Description))
	}
	fmt.Fprintf(&buf, "**Source**: %s\n", p.SourceService.Label())
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(p.Tracks))
	fmt.Fprintf(&buf, "**Matched**: %d of %d (%.1f%%)\n\n", r.Matched, r.Attempted(), r.MatchPercentage)

	buf.WriteString("| # | Track | Duration |")
	for _, src := range r.Targets {
		fmt.Fprintf(&buf, " %s |", src.Label())
	}
	buf.WriteString("\n|---|---|---|")
	for range r.Targets {
		buf.WriteString("---|")
	}
	buf.WriteString("\n")

	for _, o := range r.Outcomes {
		fmt.Fprintf(&buf, "| %d | %s | %s |", o.Position, mdEscape(o.Track.String()), shared.FormatDuration(o.Track.DurationMS))
		for _, res := range o.Results {
			fmt.Fprintf(&buf, " %s |", markdownCell(o.Track, res))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

func markdownCell(t *models.Track, res tasks.ServiceOutcome) string {
	switch res.Status {
	case models.StatusMatched:
		if _, url, ok := t.Services.Ref(res.Service); ok && url != "" {
			return fmt.Sprintf("[✓ %s](%s)", score(res), url)
		}
		return "✓ " + score(res)
	case models.StatusNoMatch:
		return "✗"
	case models.StatusSkipped:
		return "source"
	default:
		return "! failed"
	}
}

// ExportToText renders one line per track followed by an indented line per service.
func ExportToText(r *tasks.ConvertResult) ([]byte, error) {
	var buf bytes.Buffer
	p := r.Playlist

	fmt.Fprintf(&buf, "%s: %s (%s)\n", kindLabel(p.Kind), p.Name, p.SourceService.Label())
	fmt.Fprintf(&buf, "Tracks: %d\n", len(p.Tracks))
	fmt.Fprintf(&buf, "Matched: %d of %d (%.1f%%)\n\n", r.Matched, r.Attempted(), r.MatchPercentage)

	for _, o := range r.Outcomes {
		fmt.Fprintf(&buf, "%d. %s\n", o.Position, o.Track)
		for _, res := range o.Results {
			switch res.Status {
			case models.StatusMatched:
				_, url, _ := o.Track.Services.Ref(res.Service)
				fmt.Fprintf(&buf, "   %-13s %s %s\n", res.Service.Label(), score(res), url)
			case models.StatusSkipped:
				fmt.Fprintf(&buf, "   %-13s source\n", res.Service.Label())
			default:
				fmt.Fprintf(&buf, "   %-13s %s: %s\n", res.Service.Label(), res.Status, errText(res))
			}
		}
	}
	return buf.Bytes(), nil
}

// ExportToJSON serializes the converted playlist with every filled service slot. A single-track
// conversion is written as a bare track document.
func ExportToJSON(r *tasks.ConvertResult) ([]byte, error) {
	if r.Playlist.Kind == models.KindTrack && len(r.Playlist.Tracks) == 1 {
		return shared.MarshalJSON(&r.Playlist.Tracks[0])
	}
	return shared.MarshalJSON(r.Playlist)
}

// Export renders r in the given format.
func Export(r *tasks.ConvertResult, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(r)
	case FormatMarkdown:
		return ExportToMarkdown(r)
	case FormatText:
		return ExportToText(r)
	case FormatJSON:
		return ExportToJSON(r)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, f)
	}
}

// WriteReport writes r to path in the format implied by its extension, creating parent directories.
func WriteReport(r *tasks.ConvertResult, path string) error {
	data, err := Export(r, FormatFromPath(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func score(res tasks.ServiceOutcome) string {
	if res.Resolution == nil {
		return ""
	}
	return strconv.FormatFloat(res.Resolution.Score, 'f', 2, 64)
}

func errText(res tasks.ServiceOutcome) string {
	if res.Err == nil {
		return ""
	}
	return res.Err.Error()
}

func kindLabel(k models.Kind) string {
	switch k {
	case models.KindAlbum:
		return "Album"
	case models.KindTrack:
		return "Track"
	default:
		return "Playlist"
	}
}

var mdReplacer = strings.NewReplacer("|", "\\|", "\n", " ")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
