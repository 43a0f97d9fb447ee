package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/repositories"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded runs newest first, or the outcomes of one run when --run is given.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	repo := repositories.NewRunRepository(db)

	if seq := int(cmd.Int("run")); seq > 0 {
		return r.showRun(repo, seq)
	}

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if s := cmd.String("source"); s != "" {
		src, err := models.ParseSource(s)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		criteria["source_service"] = src
	}

	runs, err := repo.List(criteria)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		r.writePlain("No runs recorded in %s\n", r.config.Database.Path)
		return nil
	}

	r.writePlainHeader("Conversion history")
	for _, run := range runs {
		r.writePlain("#%d  %s  %s %q from %s → %s\n",
			run.Sequence, run.StartedAt.Local().Format("2006-01-02 15:04"), run.Kind, run.Name,
			run.SourceService.Label(), sourceLabels(run.Targets))
		r.writePlain("     %d tracks, %d matched, %d failed, %d skipped\n", run.Total, run.Matched, run.Failed, run.Skipped)
	}
	return nil
}

func (r *Runner) showRun(repo *repositories.RunRepository, seq int) error {
	run, err := repo.GetBySequence(seq)
	if err != nil {
		return err
	}
	outcomes, err := repo.Outcomes(run.ID())
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Run #%d: %s", run.Sequence, run.Name))
	r.writePlain("Source: %s %s\n", run.SourceService.Label(), run.SourceID)
	r.writePlain("Targets: %s\n\n", sourceLabels(run.Targets))
	for _, o := range outcomes {
		line := fmt.Sprintf("%3d. %s - %s [%s] %s", o.Position, o.Artist, o.TrackName, o.Service.Label(), o.Status)
		switch {
		case o.MatchedURL != "":
			line += fmt.Sprintf(" %.2f %s", o.Score, o.MatchedURL)
		case o.Error != "":
			line += ": " + o.Error
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

func sourceLabels(srcs []models.Source) string {
	labels := make([]string, len(srcs))
	for i, s := range srcs {
		labels[i] = s.Label()
	}
	return strings.Join(labels, ", ")
}
