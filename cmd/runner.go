package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Connectors are built on demand from the loaded config so a command only needs credentials for
// the services it touches.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	connectors map[models.Source]services.Connector
	loaders    map[models.Source]services.Loader
	closers    []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Connectors and Loaders replace the ones built from config; tests use them to avoid the network.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Connectors []services.Connector
	Loaders    []services.Loader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		connectors: map[models.Source]services.Connector{},
		loaders:    map[models.Source]services.Loader{},
	}
	for _, c := range opts.Connectors {
		r.connectors[c.Source()] = c
	}
	for _, l := range opts.Loaders {
		r.loaders[l.Source()] = l
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		trackCommand, albumCommand, playlistCommand, exportCommand, searchCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config (defaults when the file does not exist) and
// configures logging. It runs once before any subcommand.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		path := cmd.String("config")
		if path == "" {
			path = shared.DefaultConfigPath()
		}
		r.configPath = path

		config, err := shared.LoadConfig(path)
		switch {
		case err == nil:
			r.config = config
		case errors.Is(err, os.ErrNotExist):
			r.logger.Debug("config file not found, using defaults", "path", path)
			r.config = shared.DefaultConfig()
			r.config.ApplyEnv()
			r.config.FillPaths()
		default:
			return ctx, err
		}
	}

	shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if r.config.Log.File != "" {
		if err := r.logToFile(r.config.Log.File); err != nil {
			return ctx, err
		}
	}

	if r.httpClient == nil {
		r.httpClient = shared.NewHTTPClient(r.config.HTTP)
	}
	return ctx, nil
}

// After releases files opened by the command.
func (r *Runner) After(context.Context, *cli.Command) error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// SetLogger replaces the logger, keeping the current level.
func (r *Runner) SetLogger(l *log.Logger) {
	l.SetLevel(r.logger.GetLevel())
	r.logger = l
}

func (r *Runner) logToFile(path string) error {
	fileLogger, f, err := shared.NewFileLogger(path)
	if err != nil {
		return err
	}
	r.closers = append(r.closers, f)
	r.SetLogger(fileLogger)
	return nil
}

// connector returns the connector for src, creating it from config on first use.
func (r *Runner) connector(src models.Source) (services.Connector, error) {
	if c, ok := r.connectors[src]; ok {
		return c, nil
	}

	key := src.String()
	mc, _ := r.config.Matching.For(key)
	creds := r.config.Credentials

	var (
		c   services.Connector
		err error
	)
	switch src {
	case models.SourceSpotify:
		var s *services.SpotifyService
		if s, err = r.spotifyService(); err == nil {
			var p services.MatchPolicy
			if p, err = services.PolicyFromConfig(mc, s.Policy()); err == nil {
				services.WithSpotifyPolicy(p)(s)
				c = s
			}
		}
	case models.SourceAppleMusic:
		var s *services.AppleMusicService
		if s, err = services.NewAppleMusicService(creds.AppleMusic.Token, creds.AppleMusic.Storefront, r.httpClient); err == nil {
			var p services.MatchPolicy
			if p, err = services.PolicyFromConfig(mc, s.Policy()); err == nil {
				services.WithAppleMusicPolicy(p)(s)
				c = s
			}
		}
	case models.SourceBandcamp:
		s := services.NewBandcampService(r.httpClient)
		var p services.MatchPolicy
		if p, err = services.PolicyFromConfig(mc, s.Policy()); err == nil {
			services.WithBandcampPolicy(p)(s)
			c = s
		}
	case models.SourceYouTube:
		var opts []services.YouTubeOption
		if path := creds.YouTube.HeadersPath; path != "" {
			headers, herr := shared.ReadCurlFile(path)
			if herr != nil {
				return nil, fmt.Errorf("failed to read YouTube headers: %w", herr)
			}
			opts = append(opts, services.WithYouTubeHeaders(headers))
		}
		s := services.NewYouTubeService(r.httpClient, creds.YouTube.ClientVersion, opts...)
		var p services.MatchPolicy
		if p, err = services.PolicyFromConfig(mc, s.Policy()); err == nil {
			services.WithYouTubePolicy(p)(s)
			c = s
		}
	default:
		return nil, fmt.Errorf("%w: unknown service %v", shared.ErrInvalidArgument, src)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Label(), err)
	}

	r.connectors[src] = c
	return c, nil
}

// loader returns the loader for src. Only Spotify and Apple Music can load source entities.
func (r *Runner) loader(src models.Source) (services.Loader, error) {
	if l, ok := r.loaders[src]; ok {
		return l, nil
	}
	if src != models.SourceSpotify && src != models.SourceAppleMusic {
		return nil, fmt.Errorf("%w: loading from %s", shared.ErrUnsupported, src.Label())
	}

	c, err := r.connector(src)
	if err != nil {
		return nil, err
	}
	l, ok := c.(services.Loader)
	if !ok {
		return nil, fmt.Errorf("%w: loading from %s", shared.ErrUnsupported, src.Label())
	}
	r.loaders[src] = l
	return l, nil
}

// spotifyService authenticates with the configured token, or with a scraped web player session
// when scrape_token is enabled.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	creds := r.config.Credentials.Spotify
	if creds.Token == "" && creds.ScrapeToken {
		r.logger.Debug("using anonymous Spotify web player session")
		ts := services.SpotifySessionTokenSource(r.httpClient, services.SpotifyWebPlayerURL)
		return services.NewSpotifyServiceWithTokenSource(ts, r.httpClient), nil
	}
	return services.NewSpotifyService(creds.Token, r.httpClient)
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
