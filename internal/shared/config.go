package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override token values from the config file.
const (
	EnvSpotifyToken    = "SONGVERT_SPOTIFY_TOKEN"
	EnvAppleMusicToken = "SONGVERT_APPLE_MUSIC_TOKEN"
)

// Config represents the application configuration loaded from a TOML (or YAML) file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials" yaml:"credentials"`
	HTTP        HTTPConfig        `toml:"http" yaml:"http"`
	Batch       BatchConfig       `toml:"batch" yaml:"batch"`
	Matching    MatchingConfig    `toml:"matching" yaml:"matching"`
	Download    DownloadConfig    `toml:"download" yaml:"download"`
	Database    DatabaseConfig    `toml:"database" yaml:"database"`
	Metrics     MetricsConfig     `toml:"metrics" yaml:"metrics"`
	Log         LogConfig         `toml:"log" yaml:"log"`
}

// CredentialsConfig contains service-specific credentials.
//
// Tokens are opaque strings; nothing here fetches or refreshes them.
type CredentialsConfig struct {
	Spotify    SpotifyConfig    `toml:"spotify" yaml:"spotify"`
	AppleMusic AppleMusicConfig `toml:"apple_music" yaml:"apple_music"`
	YouTube    YouTubeConfig    `toml:"youtube" yaml:"youtube"`
}

// SpotifyConfig contains the Spotify bearer token.
//
// When Token is empty and ScrapeToken is set, an anonymous session token is read from the public web player.
type SpotifyConfig struct {
	Token       string `toml:"token" yaml:"token"`
	ScrapeToken bool   `toml:"scrape_token" yaml:"scrape_token"`
}

// AppleMusicConfig contains the Apple Music developer token and catalog storefront.
type AppleMusicConfig struct {
	Token      string `toml:"token" yaml:"token"`
	Storefront string `toml:"storefront" yaml:"storefront" validate:"required,len=2"`
}

// YouTubeConfig contains the YouTube Music web client identity.
//
// HeadersPath optionally points at a "Copy as cURL" export whose headers are replayed on search requests.
type YouTubeConfig struct {
	ClientVersion string `toml:"client_version" yaml:"client_version" validate:"required"`
	HeadersPath   string `toml:"headers_path" yaml:"headers_path"`
}

// HTTPConfig contains outbound HTTP settings shared by every connector.
type HTTPConfig struct {
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds" validate:"min=1,max=300"`
	UserAgent      string `toml:"user_agent" yaml:"user_agent"`
}

// BatchConfig bounds the concurrency of batch conversions.
type BatchConfig struct {
	Workers   int     `toml:"workers" yaml:"workers" validate:"min=1,max=32"`
	RateLimit float64 `toml:"rate_limit" yaml:"rate_limit" validate:"gt=0"`
}

// MatchConfig selects the scoring mode and acceptance threshold for one service.
type MatchConfig struct {
	Mode      string  `toml:"mode" yaml:"mode" validate:"omitempty,oneof=exact fuzzy"`
	Metric    string  `toml:"metric" yaml:"metric" validate:"omitempty,oneof=jaro-winkler levenshtein"`
	Threshold float64 `toml:"threshold" yaml:"threshold" validate:"gte=0,lte=4"`
}

// MatchingConfig holds one [MatchConfig] per target service.
type MatchingConfig struct {
	Spotify    MatchConfig `toml:"spotify" yaml:"spotify"`
	AppleMusic MatchConfig `toml:"apple_music" yaml:"apple_music"`
	Bandcamp   MatchConfig `toml:"bandcamp" yaml:"bandcamp"`
	YouTube    MatchConfig `toml:"youtube" yaml:"youtube"`
}

// DownloadConfig contains download and tagging settings.
type DownloadConfig struct {
	Dir              string `toml:"dir" yaml:"dir"`
	AudioFormat      string `toml:"audio_format" yaml:"audio_format" validate:"oneof=mp3 m4a flac"`
	ArtworkSize      int    `toml:"artwork_size" yaml:"artwork_size" validate:"min=64,max=3000"`
	OverwriteArtwork bool   `toml:"overwrite_artwork" yaml:"overwrite_artwork"`
	Workers          int    `toml:"workers" yaml:"workers" validate:"min=1,max=16"`
	YtDlpPath        string `toml:"ytdlp_path" yaml:"ytdlp_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" yaml:"path"`
	MaxOpenConns int    `toml:"max_open_conns" yaml:"max_open_conns" validate:"min=1"`
	MaxIdleConns int    `toml:"max_idle_conns" yaml:"max_idle_conns" validate:"min=0"`
}

// MetricsConfig points at the Prometheus textfile written after each run. Empty disables it.
type MetricsConfig struct {
	Textfile string `toml:"textfile" yaml:"textfile"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File  string `toml:"file" yaml:"file"`
}

// Timeout returns the per-call HTTP timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// For returns the matching settings for a service by its config key.
func (m MatchingConfig) For(service string) (MatchConfig, bool) {
	switch service {
	case "spotify":
		return m.Spotify, true
	case "apple_music":
		return m.AppleMusic, true
	case "bandcamp":
		return m.Bandcamp, true
	case "youtube":
		return m.YouTube, true
	default:
		return MatchConfig{}, false
	}
}

// LoadConfig reads and parses a configuration file from the specified path.
//
// Files ending in .yaml or .yml are decoded as YAML, anything else as TOML. Values missing from the
// file keep the embedded defaults. Environment token overrides are applied before validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = toml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	config.FillPaths()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv overrides credentials with values from the environment when set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSpotifyToken); v != "" {
		c.Credentials.Spotify.Token = v
	}
	if v := os.Getenv(EnvAppleMusicToken); v != "" {
		c.Credentials.AppleMusic.Token = v
	}
}

// Validate checks struct constraints and wraps any violation in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// FillPaths sets XDG defaults for the download directory and database path when they are empty.
func (c *Config) FillPaths() {
	if c.Download.Dir == "" {
		c.Download.Dir = xdg.UserDirs.Music
	}
	if c.Database.Path == "" {
		if p, err := xdg.DataFile(filepath.Join("songvert", "songvert.db")); err == nil {
			c.Database.Path = p
		}
	}
}

// DefaultConfigPath returns the XDG config location for config.toml.
func DefaultConfigPath() string {
	if p, err := xdg.SearchConfigFile(filepath.Join("songvert", "config.toml")); err == nil {
		return p
	}
	return filepath.Join(xdg.ConfigHome, "songvert", "config.toml")
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
