// Package config manages application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vidlink/internal/logging"
	"vidlink/internal/retry"
	"vidlink/internal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VIDLINK_"

// TokenEnv is the conventional variable holding the bot token.
const TokenEnv = "TELEGRAM_BOT_TOKEN"

// ErrNoToken is returned by RequireToken when no bot token is configured.
var ErrNoToken = errors.New("config: telegram token is not set")

// fileNames are searched in order in each config directory.
var fileNames = []string{"vidlink.yaml", "vidlink.yml", "vidlink.json"}

// Config holds all application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Ytdlp     YtdlpConfig     `yaml:"ytdlp"`
	Retry     RetryConfig     `yaml:"retry"`
	Shortener ShortenerConfig `yaml:"shortener"`
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	YouTube   YouTubeConfig   `yaml:"youtube"`
	Log       LogConfig       `yaml:"log"`
}

// TelegramConfig configures the bot connection.
type TelegramConfig struct {
	Token string `yaml:"token"`
	// PollTimeout is the long-polling timeout in seconds.
	PollTimeout int  `yaml:"poll_timeout"`
	Debug       bool `yaml:"debug"`
}

// YtdlpConfig configures the extractor subprocess.
type YtdlpConfig struct {
	Path        string        `yaml:"path"`
	Timeout     time.Duration `yaml:"timeout"`
	CookiesFile string        `yaml:"cookies_file"`
}

// RetryConfig mirrors retry.Config for file and env loading.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// ShortenerConfig configures the link shortener.
type ShortenerConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// SessionConfig configures the pending-selection cache.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// YouTubeConfig enables the Data API metadata source when APIKey is set.
type YouTubeConfig struct {
	APIKey string `yaml:"api_key"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	rc := retry.DefaultConfig()
	return &Config{
		Telegram: TelegramConfig{PollTimeout: 60},
		Ytdlp: YtdlpConfig{
			Path:    "yt-dlp",
			Timeout: 2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxRetries:     rc.MaxRetries,
			InitialBackoff: rc.InitialBackoff,
			MaxBackoff:     rc.MaxBackoff,
			Multiplier:     rc.Multiplier,
		},
		Shortener: ShortenerConfig{
			Endpoint:          "https://tinyurl.com/api-create.php",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
		},
		Store: StoreConfig{
			Backend: storage.BackendJSON,
			Dir:     ".",
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			MaxEntries:    1000,
			SweepInterval: time.Minute,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration. Priority: env vars > config file > defaults.
// An explicit path must exist; otherwise the default locations are searched
// and a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else if err := cfg.loadFromFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SearchPaths lists the candidate config files in lookup order.
func SearchPaths() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "vidlink"))
	}
	var paths []string
	for _, dir := range dirs {
		for _, name := range fileNames {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

func (c *Config) loadFromFile() error {
	for _, path := range SearchPaths() {
		err := c.loadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return err
	}
	return os.ErrNotExist
}

// loadFile decodes path over c. JSON files go through the YAML decoder,
// which accepts JSON as a subset and shares the duration handling.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	if v := os.Getenv(TokenEnv); v != "" {
		c.Telegram.Token = v
	}
	str("TELEGRAM_TOKEN", &c.Telegram.Token)
	integer("TELEGRAM_POLL_TIMEOUT", &c.Telegram.PollTimeout)
	boolean("TELEGRAM_DEBUG", &c.Telegram.Debug)

	str("YTDLP_PATH", &c.Ytdlp.Path)
	dur("YTDLP_TIMEOUT", &c.Ytdlp.Timeout)
	str("COOKIES_FILE", &c.Ytdlp.CookiesFile)

	integer("MAX_RETRIES", &c.Retry.MaxRetries)
	dur("INITIAL_BACKOFF", &c.Retry.InitialBackoff)
	dur("MAX_BACKOFF", &c.Retry.MaxBackoff)
	float("BACKOFF_MULTIPLIER", &c.Retry.Multiplier)

	str("SHORTENER_ENDPOINT", &c.Shortener.Endpoint)
	dur("SHORTENER_TIMEOUT", &c.Shortener.Timeout)
	float("SHORTENER_RPS", &c.Shortener.RequestsPerSecond)

	str("STORE_BACKEND", &c.Store.Backend)
	str("STORE_DIR", &c.Store.Dir)
	str("SQLITE_PATH", &c.Store.SQLitePath)

	dur("SESSION_TTL", &c.Session.TTL)
	integer("SESSION_MAX_ENTRIES", &c.Session.MaxEntries)
	dur("SESSION_SWEEP_INTERVAL", &c.Session.SweepInterval)

	str("YOUTUBE_API_KEY", &c.YouTube.APIKey)

	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_DEVELOPMENT", &c.Log.Development)

	return errors.Join(errs...)
}

// Validate checks configuration validity and normalizes the backend name.
func (c *Config) Validate() error {
	if c.Ytdlp.Path == "" {
		return fmt.Errorf("ytdlp.path must not be empty")
	}
	if c.Ytdlp.Timeout <= 0 {
		return fmt.Errorf("ytdlp.timeout must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be non-negative")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("retry.initial_backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry.max_backoff must be >= initial_backoff")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be >= 1")
	}
	if c.Shortener.Timeout <= 0 {
		return fmt.Errorf("shortener.timeout must be positive")
	}
	if c.Shortener.RequestsPerSecond < 0 {
		return fmt.Errorf("shortener.requests_per_second must be non-negative")
	}
	c.Store.Backend = strings.ToLower(c.Store.Backend)
	switch c.Store.Backend {
	case storage.BackendJSON, storage.BackendSQLite:
	default:
		return fmt.Errorf("store.backend %q: %w", c.Store.Backend, storage.ErrUnknownBackend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Session.MaxEntries <= 0 {
		return fmt.Errorf("session.max_entries must be positive")
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout must be non-negative")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// RequireToken reports ErrNoToken when the bot cannot be started.
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return ErrNoToken
	}
	return nil
}

// RetryPolicy converts the retry section for the retry package.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		MaxRetries:     c.Retry.MaxRetries,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
		JitterFraction: retry.DefaultConfig().JitterFraction,
	}
}
