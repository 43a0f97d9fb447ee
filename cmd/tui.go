package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/desertthunder/songvert/internal/formatter"
	"github.com/desertthunder/songvert/internal/tasks"
	"github.com/desertthunder/songvert/internal/ui"
)

// runTUI runs the conversion behind the interactive progress view.
func (r *Runner) runTUI(ctx context.Context, req convertRequest) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if r.config.Log.File == "" {
		path, err := xdg.CacheFile(filepath.Join("songvert", "tui.log"))
		if err != nil {
			return fmt.Errorf("failed to resolve log path: %w", err)
		}
		if err := r.logToFile(path); err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
	}

	title := fmt.Sprintf("Converting %s", req.kind)
	result, err := ui.Run(ctx, title, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.ConvertResult, error) {
		return r.convert(ctx, req, progress)
	})
	if err != nil {
		return err
	}
	if result == nil {
		r.writePlain("Conversion cancelled\n")
		return nil
	}

	r.writePlain("%s\n", formatter.Summary(result))
	return nil
}
