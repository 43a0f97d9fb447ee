package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/songvert/internal/download"
	"github.com/desertthunder/songvert/internal/formatter"
	"github.com/desertthunder/songvert/internal/metrics"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/repositories"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/desertthunder/songvert/internal/tasks"
	"github.com/urfave/cli/v3"
)

// convertRequest is the parsed form of a track, album or playlist invocation.
type convertRequest struct {
	kind        models.Kind
	url         string
	inputFile   string
	targets     []models.Source
	downloadDir string
	outputFile  string
	overwrite   bool
}

var targetFlags = []struct {
	name string
	src  models.Source
}{
	{"spotify", models.SourceSpotify},
	{"apple-music", models.SourceAppleMusic},
	{"bandcamp", models.SourceBandcamp},
	{"youtube", models.SourceYouTube},
}

func parseConvertRequest(kind models.Kind, cmd *cli.Command) (convertRequest, error) {
	req := convertRequest{
		kind:        kind,
		url:         strings.TrimSpace(cmd.String("url")),
		inputFile:   strings.TrimSpace(cmd.String("input-file")),
		downloadDir: cmd.String("download"),
		outputFile:  cmd.String("output-file"),
		overwrite:   cmd.Bool("overwrite-artwork"),
	}

	switch {
	case req.url == "" && req.inputFile == "":
		return req, fmt.Errorf("%w: one of --url or --input-file", shared.ErrMissingArgument)
	case req.url != "" && req.inputFile != "":
		return req, fmt.Errorf("%w: --url and --input-file are mutually exclusive", shared.ErrInvalidArgument)
	}

	for _, f := range targetFlags {
		if cmd.Bool(f.name) {
			req.targets = append(req.targets, f.src)
		}
	}
	return req, nil
}

// defaultTargets is every service except the one the playlist came from.
func defaultTargets(source models.Source) []models.Source {
	var targets []models.Source
	for _, src := range models.AllSources() {
		if src != source {
			targets = append(targets, src)
		}
	}
	return targets
}

// Convert returns the action for `songvert <kind>`.
func (r *Runner) Convert(kind models.Kind) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		req, err := parseConvertRequest(kind, cmd)
		if err != nil {
			return err
		}

		if cmd.Bool("tui") {
			return r.runTUI(ctx, req)
		}

		progressCh := make(chan tasks.ProgressUpdate, 50)
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			for update := range progressCh {
				switch update.Phase {
				case tasks.LoadSource:
					r.writePlain("📥 %s\n", update.Message)
				case tasks.Resolve, tasks.Download:
					if update.Step == 0 {
						r.writePlain("\n🔍 %s\n", update.Message)
					} else {
						r.writePlain("   %s\n", update.Message)
					}
				case tasks.Record:
					r.writePlain("\n📝 %s\n", update.Message)
				}
			}
		}()

		result, err := r.convert(ctx, req, progressCh)
		close(progressCh)
		<-printed
		if err != nil {
			return err
		}

		r.writePlain("\n%s\n", formatter.Summary(result))
		if req.outputFile != "" {
			r.writePlain("Report written to %s\n", req.outputFile)
		}
		return nil
	}
}

// convert loads the source, resolves it against every target, then downloads and reports as
// requested. Only unusable input, missing credentials and report write failures are errors.
func (r *Runner) convert(ctx context.Context, req convertRequest, progress chan<- tasks.ProgressUpdate) (*tasks.ConvertResult, error) {
	playlist, err := r.loadSource(ctx, req, progress)
	if err != nil {
		return nil, err
	}

	targets := req.targets
	if len(targets) == 0 {
		targets = defaultTargets(playlist.SourceService)
	}
	conns := make([]services.Connector, 0, len(targets))
	for _, src := range targets {
		c, err := r.connector(src)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}

	collector := metrics.New()
	opts := []tasks.EngineOption{
		tasks.WithWorkers(r.config.Batch.Workers),
		tasks.WithRateLimit(r.config.Batch.RateLimit),
		tasks.WithMetrics(collector),
		tasks.WithLogger(r.logger),
	}
	if repo, closeDB := r.runRepository(); repo != nil {
		defer closeDB()
		opts = append(opts, tasks.WithRecorder(repo))
	}

	r.logger.Info("converting", "name", playlist.Name, "tracks", len(playlist.Tracks), "source", playlist.SourceService.String())
	engine := tasks.NewConvertEngine(conns, opts...)
	result, err := engine.Convert(ctx, playlist, targets, progress)
	if err != nil {
		return nil, err
	}
	collector.ObserveRun(result.FinishedAt.Sub(result.StartedAt), result.MatchPercentage)

	if req.downloadDir != "" {
		r.download(ctx, result.Playlist, req, collector, progress)
	}

	if path := r.config.Metrics.Textfile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			r.logger.Warn("failed to write metrics", "path", path, "err", err)
		}
	}

	if req.outputFile != "" {
		if err := formatter.WriteReport(result, req.outputFile); err != nil {
			return result, err
		}
		r.logger.Info("report written", "path", req.outputFile)
	}
	return result, nil
}

// loadSource reads the reference playlist from a JSON document or a share link.
func (r *Runner) loadSource(ctx context.Context, req convertRequest, progress chan<- tasks.ProgressUpdate) (*models.Playlist, error) {
	if req.inputFile != "" {
		if req.kind == models.KindTrack {
			t, err := models.ReadTrackFile(req.inputFile)
			if err != nil {
				return nil, err
			}
			return models.Single(*t), nil
		}

		p, err := models.ReadPlaylistFile(req.inputFile)
		if err != nil {
			return nil, err
		}
		if p.Kind == "" {
			p.Kind = req.kind
		}
		return p, nil
	}

	link, err := services.ParseLink(req.url)
	if err != nil {
		return nil, err
	}
	if link.Kind != req.kind {
		return nil, fmt.Errorf("%w: %s is a %s link, use `songvert %s`", shared.ErrInvalidArgument, req.url, link.Kind, link.Kind)
	}

	loader, err := r.loader(link.Source)
	if err != nil {
		return nil, err
	}
	notify(progress, tasks.LoadSourceUpdate(link.Source, link.Kind, link.ID))

	switch link.Kind {
	case models.KindTrack:
		t, err := loader.LoadTrack(ctx, link.ID)
		if err != nil {
			return nil, err
		}
		return models.Single(*t), nil
	case models.KindAlbum:
		return loader.LoadAlbum(ctx, link.ID)
	default:
		return loader.LoadPlaylist(ctx, link.ID)
	}
}

// runRepository opens the history database. History is optional: failures are logged and the
// conversion runs without a recorder.
func (r *Runner) runRepository() (*repositories.RunRepository, func()) {
	if r.config.Database.Path == "" {
		return nil, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("run history disabled", "err", err)
		return nil, nil
	}
	return repositories.NewRunRepository(db), func() { db.Close() }
}

func (r *Runner) download(ctx context.Context, p *models.Playlist, req convertRequest, collector *metrics.Collector, progress chan<- tasks.ProgressUpdate) []download.Result {
	cfg := r.config.Download
	artwork := download.NewArtwork(r.httpClient, r.config.Credentials.AppleMusic.Token, cfg.ArtworkSize)
	pipeline := download.NewPipeline(r.httpClient,
		download.WithFetcher(download.NewYtDlp(cfg.YtDlpPath)),
		download.WithTagger(download.NewTagger(artwork, req.overwrite || cfg.OverwriteArtwork, r.logger)),
		download.WithMetrics(collector),
		download.WithWorkers(cfg.Workers),
		download.WithAudioFormat(cfg.AudioFormat),
		download.WithLogger(r.logger),
	)

	notify(progress, tasks.ProgressUpdate{
		Phase:   tasks.Download,
		Total:   len(p.Tracks),
		Message: fmt.Sprintf("Downloading %d tracks to %s...", len(p.Tracks), req.downloadDir),
	})
	results := pipeline.DownloadAll(ctx, p, req.downloadDir, func(done, total int, res *download.Result) {
		notify(progress, tasks.DownloadUpdate(done, total, res.Track.String(), res.Err))
	})

	downloaded, undownloadable, failed := download.Summary(results)
	r.logger.Info("downloads finished", "downloaded", downloaded, "undownloadable", undownloadable, "failed", failed)
	return results
}

// notify sends without blocking; a full channel drops the update.
func notify(progress chan<- tasks.ProgressUpdate, update tasks.ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
