package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sydlexius/lidarr-bulk/internal/logging"
	"github.com/sydlexius/lidarr-bulk/internal/version"
)

// Mode selects which half of the pipeline a run exercises. Each mode
// requires a different subset of the configuration.
type Mode string

// Run modes.
const (
	ModeResolve Mode = "resolve"
	ModeAdd     Mode = "add"
	ModeBulk    Mode = "bulk"
	// ModeExportSpotify writes a Spotify library to the artists file.
	ModeExportSpotify Mode = "export-spotify"
)

// MonitorOptions lists the values Lidarr accepts for addOptions.monitor.
var MonitorOptions = []string{"all", "missing", "existing", "none", "future", "latest", "first"}

// Config holds all application configuration.
type Config struct {
	Lidarr      LidarrConfig      `yaml:"lidarr"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	Import      ImportConfig      `yaml:"import"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Spotify     SpotifyConfig     `yaml:"spotify"`
}

// LidarrConfig holds the management API connection and registration settings.
type LidarrConfig struct {
	URL                string        `yaml:"url" env:"LIDARR_URL"`
	APIKey             string        `yaml:"api_key" env:"LIDARR_API_KEY"`
	RootFolder         string        `yaml:"root_folder" env:"ROOT_FOLDER"`
	QualityProfileID   int           `yaml:"quality_profile_id" env:"QUALITY_PROFILE_ID"`
	MetadataProfileID  int           `yaml:"metadata_profile_id" env:"METADATA_PROFILE_ID"`
	UseDefaultProfiles bool          `yaml:"use_default_profiles" env:"USE_DEFAULT_PROFILES"`
	Monitor            string        `yaml:"monitor" env:"MONITOR_OPTION"`
	SearchMissing      bool          `yaml:"search_missing" env:"SEARCH_MISSING"`
	Timeout            time.Duration `yaml:"timeout" env:"LIDARR_TIMEOUT"`
}

// MusicBrainzConfig holds name resolution settings.
type MusicBrainzConfig struct {
	BaseURL             string        `yaml:"base_url" env:"MUSICBRAINZ_URL"`
	UserAgent           string        `yaml:"user_agent" env:"MUSICBRAINZ_UA"`
	IntervalSeconds     float64       `yaml:"interval_seconds" env:"MB_REQUEST_INTERVAL_SECONDS"`
	Timeout             time.Duration `yaml:"timeout" env:"MUSICBRAINZ_TIMEOUT"`
	MinScore            int           `yaml:"min_score" env:"MB_MIN_SCORE"`
	TieBand             int           `yaml:"tie_band" env:"MB_TIE_BAND"`
	RejectLowConfidence bool          `yaml:"reject_low_confidence" env:"MB_REJECT_LOW_CONFIDENCE"`
}

// ImportConfig holds input/output paths and batch controls.
type ImportConfig struct {
	ArtistsFile string `yaml:"artists_file" env:"ARTISTS_FILE"`
	MBIDsOutput string `yaml:"mbids_output" env:"MBIDS_OUTPUT"`
	Report      string `yaml:"report" env:"LIDARR_REPORT"`
	// ResolveReport is written by resolve runs only; empty means none.
	ResolveReport string `yaml:"resolve_report" env:"RESOLVE_REPORT"`
	Limit         int    `yaml:"limit" env:"LIMIT"`
	Append        bool   `yaml:"append" env:"APPEND"`
	DryRun        bool   `yaml:"dry_run" env:"DRY_RUN"`
}

// RetryConfig holds the backoff policy shared by both remote services.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts" env:"RETRY_ATTEMPTS"`
	BaseDelay time.Duration `yaml:"base_delay" env:"RETRY_BASE_DELAY"`
	MaxDelay  time.Duration `yaml:"max_delay" env:"RETRY_MAX_DELAY"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	File       string `yaml:"file" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"LOG_MAX_SIZE_MB"`
	MaxFiles   int    `yaml:"max_files" env:"LOG_MAX_FILES"`
	MaxAgeDays int    `yaml:"max_age_days" env:"LOG_MAX_AGE_DAYS"`
}

// SpotifyConfig holds the OAuth application used by export-spotify.
type SpotifyConfig struct {
	ClientID     string        `yaml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string        `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string        `yaml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI"`
	Username     string        `yaml:"username" env:"SPOTIFY_USERNAME"`
	TokenCache   string        `yaml:"token_cache" env:"SPOTIFY_TOKEN_CACHE"`
	BaseURL      string        `yaml:"base_url" env:"SPOTIFY_API_URL"`
	Timeout      time.Duration `yaml:"timeout" env:"SPOTIFY_TIMEOUT"`
}

// TokenCachePath returns where the OAuth token is kept between runs. It
// defaults to ".cache-<username>", or ".cache" without a username.
func (c SpotifyConfig) TokenCachePath() string {
	if c.TokenCache != "" {
		return c.TokenCache
	}
	if c.Username != "" {
		return ".cache-" + c.Username
	}
	return ".cache"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Lidarr: LidarrConfig{
			URL:        "http://localhost:8686",
			RootFolder: "/mnt/media/Music",
			Monitor:    "all",
			Timeout:    30 * time.Second,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:         "https://musicbrainz.org/ws/2",
			UserAgent:       DefaultUserAgent(),
			IntervalSeconds: 1.0,
			Timeout:         15 * time.Second,
		},
		Import: ImportConfig{
			ArtistsFile: "artists.txt",
			MBIDsOutput: "output/mbids.txt",
			Report:      "output/lidarr_output.txt",
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  8 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Spotify: SpotifyConfig{
			RedirectURI: "http://127.0.0.1:8888/callback",
			BaseURL:     "https://api.spotify.com/v1",
			Timeout:     30 * time.Second,
		},
	}
}

// Load reads config from a YAML file (if it exists), then a .env file (if
// it exists), and overrides with environment variables. Environment
// variables take precedence. Validation is left to Validate, which runs
// after command-line flags have been applied.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Interval returns the minimum spacing between MusicBrainz requests.
func (c MusicBrainzConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// Validate checks the settings the given mode depends on. All problems are
// reported at once; each is a *Error.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &Error{Field: field, Reason: reason})
	}

	if c.Import.Limit < 0 {
		add("limit", "must be >= 0")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		add("logging.level", "must be one of: debug, info, warn, error")
	}
	if !logging.ValidFormat(c.Logging.Format) {
		add("logging.format", "must be one of: text, json, auto")
	}
	if c.Logging.MaxSizeMB < 0 {
		add("logging.max_size_mb", "must be >= 0")
	}
	if c.Logging.MaxFiles < 0 {
		add("logging.max_files", "must be >= 0")
	}
	if c.Logging.MaxAgeDays < 0 {
		add("logging.max_age_days", "must be >= 0")
	}
	if c.Retry.Attempts < 1 {
		add("retry.attempts", "must be >= 1")
	}
	if c.Retry.BaseDelay <= 0 {
		add("retry.base_delay", "must be > 0")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		add("retry.max_delay", "must be >= retry.base_delay")
	}

	if mode == ModeResolve || mode == ModeBulk {
		if c.MusicBrainz.IntervalSeconds < 0 {
			add("musicbrainz.interval_seconds", "must be >= 0")
		}
		if err := ValidUserAgent(c.MusicBrainz.UserAgent); err != nil {
			errs = append(errs, err)
		}
		if c.MusicBrainz.MinScore < 0 || c.MusicBrainz.MinScore > 100 {
			add("musicbrainz.min_score", "must be between 0 and 100")
		}
		if c.MusicBrainz.TieBand < 0 {
			add("musicbrainz.tie_band", "must be >= 0")
		}
	}

	if mode == ModeAdd || mode == ModeBulk {
		c.Lidarr.URL = strings.TrimRight(c.Lidarr.URL, "/")
		if c.Lidarr.URL == "" {
			add("lidarr.url", "is required")
		} else if u, err := url.ParseRequestURI(c.Lidarr.URL); err != nil || u.Host == "" {
			add("lidarr.url", "is not a valid URL")
		}
		if c.Lidarr.APIKey == "" {
			add("lidarr.api_key", "is required (set --api-key or LIDARR_API_KEY)")
		}
		if c.Lidarr.RootFolder == "" {
			add("lidarr.root_folder", "is required")
		}
		if !ValidMonitor(c.Lidarr.Monitor) {
			add("lidarr.monitor", fmt.Sprintf("must be one of: %s", strings.Join(MonitorOptions, ", ")))
		}
		if c.Lidarr.QualityProfileID < 0 {
			add("lidarr.quality_profile_id", "must be >= 0")
		}
		if c.Lidarr.MetadataProfileID < 0 {
			add("lidarr.metadata_profile_id", "must be >= 0")
		}
	}

	if mode == ModeExportSpotify {
		if c.Spotify.ClientID == "" {
			add("spotify.client_id", "is required (set SPOTIFY_CLIENT_ID)")
		}
		if c.Spotify.ClientSecret == "" {
			add("spotify.client_secret", "is required (set SPOTIFY_CLIENT_SECRET)")
		}
		if u, err := url.Parse(c.Spotify.RedirectURI); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			add("spotify.redirect_uri", "must be an http(s) URL")
		}
		if c.Import.ArtistsFile == "" {
			add("import.artists_file", "is required")
		}
	}

	return errors.Join(errs...)
}

// ValidMonitor returns true if s is a recognized monitor option.
func ValidMonitor(s string) bool {
	for _, m := range MonitorOptions {
		if s == m {
			return true
		}
	}
	return false
}

// DefaultUserAgent identifies this tool by its project URL.
func DefaultUserAgent() string {
	return fmt.Sprintf("lidarr-bulk/%s ( https://github.com/sydlexius/lidarr-bulk )", version.Version)
}

// userAgentPattern matches "tool/version (contact)" as MusicBrainz requires.
var userAgentPattern = regexp.MustCompile(`^[^\s/()]+/[^\s()]+ \(\s*[^()\s][^()]*\)$`)

// ValidUserAgent checks that ua identifies the client the way the
// MusicBrainz rate-limiting policy asks for, e.g.
// "lidarr-bulk/1.0 ( me@example.com )".
func ValidUserAgent(ua string) error {
	if strings.TrimSpace(ua) == "" {
		return &Error{Field: "musicbrainz.user_agent", Reason: "is required (set MUSICBRAINZ_UA)"}
	}
	if !userAgentPattern.MatchString(ua) {
		return &Error{Field: "musicbrainz.user_agent", Reason: fmt.Sprintf("%q must look like \"tool/version (contact)\"", ua)}
	}
	return nil
}

// Error is a configuration problem detected before any network call.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
