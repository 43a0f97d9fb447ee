package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs a free-text catalog search against one service and prints the hits in relevance order.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	src, err := models.ParseSource(cmd.String("service"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}
	conn, err := r.connector(src)
	if err != nil {
		return err
	}

	r.logger.Info("searching", "service", src.String(), "query", query)
	records, err := conn.Search(ctx, query)
	if err != nil {
		return err
	}

	limit := int(cmd.Int("limit"))
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	if len(records) == 0 {
		r.writePlain("No results on %s for %q\n", src.Label(), query)
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("%s results for %q", src.Label(), query))
	for i, rec := range records {
		c := rec.Candidate()
		r.writePlain("%d. %s - %s\n", i+1, c.Artist, c.Name)
		if c.Album != "" {
			r.writePlain("   Album: %s\n", c.Album)
		}
		if c.DurationMS > 0 {
			r.writePlain("   Duration: %s\n", shared.FormatDuration(c.DurationMS))
		}
		r.writePlain("   ID: %s\n", rec.RecordID())
	}
	return nil
}
