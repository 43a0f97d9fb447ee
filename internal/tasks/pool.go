package tasks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
)

// resolveAll runs a worker pool resolving every track against conn, writing into column col of each
// outcome. Each worker owns the tracks it receives, and conn's slot is the only one it writes.
func (e *ConvertEngine) resolveAll(
	ctx context.Context,
	col int,
	conn services.Connector,
	outcomes []TrackOutcome,
	prog chan<- ProgressUpdate,
	done *atomic.Int64,
	total int,
) {
	src := conn.Source()
	limiter := newLimiter(e.rateLimit)
	jobs := make(chan int, len(outcomes))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				e.resolveOne(ctx, limiter.Wait, col, conn, &outcomes[idx], prog, done, total)
			}
		}()
	}

	for i := range outcomes {
		if outcomes[i].Track.SourceService == src {
			outcomes[i].Results[col].Status = models.StatusSkipped
			continue
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// resolveOne resolves a single track and records the outcome. It is the boundary where errors
// become logged outcomes instead of propagating.
func (e *ConvertEngine) resolveOne(
	ctx context.Context,
	wait func(context.Context) error,
	col int,
	conn services.Connector,
	o *TrackOutcome,
	prog chan<- ProgressUpdate,
	done *atomic.Int64,
	total int,
) {
	src := conn.Source()
	out := &o.Results[col]
	logger := e.logger.With("position", o.Position, "track", o.Track.String(), "service", src.String())

	var (
		res *Resolution
		err = wait(ctx)
	)
	if err == nil {
		res, err = e.resolver.Resolve(ctx, o.Track, conn)
	}

	step := int(done.Add(1))
	switch {
	case err == nil:
		out.Status, out.Resolution = models.StatusMatched, res
		logger.Debug("matched", "id", res.RecordID, "score", res.Score, "path", res.Path)
		sendProgress(prog, resolvedUpdate(step, total, src, o.Track, res))
	case IsNoMatch(err):
		out.Status, out.Err = models.StatusNoMatch, err
		logger.Info("no match", "err", err)
		sendProgress(prog, unresolvedUpdate(step, total, src, o.Track, err))
	default:
		out.Status, out.Err = models.StatusFailed, err
		logger.Warn("resolution failed", "err", err)
		sendProgress(prog, unresolvedUpdate(step, total, src, o.Track, err))
	}

	if e.metrics != nil {
		score := 0.0
		if res != nil {
			score = res.Score
		}
		e.metrics.ObserveResolution(src, out.Status, score)
	}
}
