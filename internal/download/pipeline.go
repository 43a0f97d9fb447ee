package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/google/uuid"
)

const (
	DefaultWorkers     = 4
	DefaultAudioFormat = "mp3"
)

// Download outcomes reported to [Metrics].
const (
	OutcomeDownloaded     = "downloaded"
	OutcomeUndownloadable = "undownloadable"
	OutcomeFailed         = "failed"
	OutcomeTagFailed      = "tag_failed"
)

// Result describes one track download. Path is set whenever audio was written, even if tagging failed.
type Result struct {
	Position int
	Track    *models.Track
	Source   models.Source
	Path     string
	Err      error
}

// Metrics observes finished downloads.
type Metrics interface {
	ObserveDownload(source models.Source, outcome string)
}

// Pipeline downloads and tags tracks.
type Pipeline struct {
	client  *http.Client
	fetcher Fetcher
	tagger  *Tagger
	format  string
	workers int
	metrics Metrics
	logger  *log.Logger
}

// Option customizes a [Pipeline].
type Option func(*Pipeline)

func WithFetcher(f Fetcher) Option  { return func(p *Pipeline) { p.fetcher = f } }
func WithTagger(t *Tagger) Option   { return func(p *Pipeline) { p.tagger = t } }
func WithMetrics(m Metrics) Option  { return func(p *Pipeline) { p.metrics = m } }
func WithWorkers(n int) Option      { return func(p *Pipeline) { p.workers = max(n, 1) } }

func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAudioFormat sets the container requested from the external downloader. Bandcamp streams are always mp3.
func WithAudioFormat(format string) Option {
	return func(p *Pipeline) {
		if format != "" {
			p.format = format
		}
	}
}

// NewPipeline creates a pipeline using client for direct streams and yt-dlp from $PATH for pages.
func NewPipeline(client *http.Client, opts ...Option) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	p := &Pipeline{
		client:  client,
		fetcher: NewYtDlp(""),
		format:  DefaultAudioFormat,
		workers: DefaultWorkers,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Download fetches the audio for track into dir and tags it.
//
// Sources are tried in order, Bandcamp stream first and then the YouTube page; the first success
// wins. A track with neither fails with [shared.ErrUndownloadable]. When every source fails the
// last error is returned.
func (p *Pipeline) Download(ctx context.Context, position int, track *models.Track, dir string) (*Result, error) {
	res := &Result{Position: position, Track: track}
	logger := p.logger.With("position", position, "track", track.String())

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("%w: failed to create download directory: %v", shared.ErrDownload, err)
	}

	attempts := p.attempts(track)
	if len(attempts) == 0 {
		err := fmt.Errorf("%w: %s", shared.ErrUndownloadable, track)
		return p.finish(res, OutcomeUndownloadable, err, logger)
	}

	var err error
	for i, a := range attempts {
		res.Source = a.source
		res.Path = filepath.Join(dir, FileName(position, track, a.ext))
		if err = a.fetch(ctx, res.Path); err == nil {
			break
		}
		if i < len(attempts)-1 {
			logger.Warn("download source failed, trying next", "source", a.source.String(), "err", err)
		}
	}
	if err != nil {
		return p.finish(res, OutcomeFailed, err, logger)
	}

	if p.tagger != nil {
		if err := p.tagger.Tag(ctx, res.Path, track); err != nil {
			return p.finish(res, OutcomeTagFailed, err, logger)
		}
	}
	return p.finish(res, OutcomeDownloaded, nil, logger)
}

func (p *Pipeline) finish(res *Result, outcome string, err error, logger *log.Logger) (*Result, error) {
	if outcome != OutcomeTagFailed && err != nil {
		res.Path = ""
	}
	res.Err = err

	switch {
	case err == nil:
		logger.Info("downloaded", "source", res.Source.String(), "file", filepath.Base(res.Path))
	case errors.Is(err, shared.ErrUndownloadable):
		logger.Info("nothing to download")
	default:
		logger.Warn("download failed", "source", res.Source.String(), "err", err)
	}

	if p.metrics != nil {
		p.metrics.ObserveDownload(res.Source, outcome)
	}
	return res, err
}

type attempt struct {
	source models.Source
	ext    string
	fetch  func(ctx context.Context, dest string) error
}

// attempts lists the download sources available for track, in priority order.
func (p *Pipeline) attempts(track *models.Track) []attempt {
	var out []attempt
	if bc := track.Services.Bandcamp; bc != nil && bc.StreamingURL != nil && *bc.StreamingURL != "" {
		u := *bc.StreamingURL
		out = append(out, attempt{models.SourceBandcamp, "mp3", func(ctx context.Context, dest string) error {
			return p.stream(ctx, u, dest)
		}})
	}
	if yt := track.Services.YouTube; yt != nil && yt.URL != "" {
		u := yt.URL
		out = append(out, attempt{models.SourceYouTube, p.format, func(ctx context.Context, dest string) error {
			return p.fetcher.Fetch(ctx, u, dest)
		}})
	}
	return out
}

// stream copies a direct audio URL to dest through a temporary file in the same directory.
func (p *Pipeline) stream(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: stream returned status %d", shared.ErrDownload, resp.StatusCode)
	}

	tmp := filepath.Join(filepath.Dir(dest), "."+uuid.New().String()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: failed to write stream: %v", shared.ErrDownload, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", shared.ErrDownload, err)
	}
	return nil
}

// DownloadAll downloads every track of playlist into dir, best effort.
//
// Results are in playlist order. onDone, when non-nil, is called once per finished track with the
// number finished so far. Calls are serialized.
func (p *Pipeline) DownloadAll(ctx context.Context, playlist *models.Playlist, dir string, onDone func(done, total int, r *Result)) []Result {
	total := len(playlist.Tracks)
	results := make([]Result, total)
	jobs := make(chan int, total)

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	for i := 0; i < min(p.workers, max(total, 1)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res, _ := p.Download(ctx, idx+1, &playlist.Tracks[idx], dir)
				results[idx] = *res

				mu.Lock()
				done++
				if onDone != nil {
					onDone(done, total, &results[idx])
				}
				mu.Unlock()
			}
		}()
	}

	for i := range playlist.Tracks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

// Summary counts downloaded, undownloadable and failed results.
func Summary(results []Result) (downloaded, undownloadable, failed int) {
	for _, r := range results {
		switch {
		case r.Err == nil:
			downloaded++
		case errors.Is(r.Err, shared.ErrUndownloadable):
			undownloadable++
		default:
			failed++
		}
	}
	return downloaded, undownloadable, failed
}
