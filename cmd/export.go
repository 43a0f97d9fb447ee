package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/gosimple/slug"
	"github.com/urfave/cli/v3"
)

// Export loads a track, album or playlist from a share link and writes it as a JSON document that
// `--input-file` accepts.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	link := strings.TrimSpace(cmd.String("url"))
	if link == "" {
		return fmt.Errorf("%w: --url flag is required", shared.ErrMissingArgument)
	}

	parsed, err := services.ParseLink(link)
	if err != nil {
		return err
	}
	req := convertRequest{kind: parsed.Kind, url: link}

	r.logger.Infof("exporting %v %v", req.kind, link)
	playlist, err := r.loadSource(ctx, req, nil)
	if err != nil {
		return err
	}

	outputFile := cmd.String("output")
	if outputFile == "" {
		outputFile = fmt.Sprintf("%s_%s.json", playlist.SourceService, slug.Make(playlist.Name))
	}

	if req.kind == models.KindTrack {
		err = models.WriteTrackFile(outputFile, &playlist.Tracks[0])
	} else {
		err = models.WritePlaylistFile(outputFile, playlist)
	}
	if err != nil {
		return err
	}

	r.logger.Infof("%v exported to %v with %v tracks", req.kind, outputFile, len(playlist.Tracks))
	r.writePlain("✓ Exported to %s\n", outputFile)
	r.writePlain("  Name: %s\n", playlist.Name)
	r.writePlain("  Tracks: %d\n", len(playlist.Tracks))
	for i, track := range playlist.Tracks {
		r.writePlain("%d. %s\n", i+1, &track)
		if track.HasISRC() {
			r.writePlain("   ISRC: %s\n", *track.ISRC)
		}
	}
	return nil
}
