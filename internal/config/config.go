// Package config provides typed configuration for the application,
// loaded from config.yaml and environment variables via viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration, constructed once at startup and passed
// into components. Nothing reads viper after Load returns.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Sources  []Source       `mapstructure:"sources"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds settings for the deal event stream. Addr may be empty,
// in which case deal events are not published.
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	DealStream   string `mapstructure:"deal_stream"`
	MaxStreamLen int64  `mapstructure:"max_stream_len"`
}

// ScraperConfig holds pipeline-wide scraping behavior.
type ScraperConfig struct {
	// PoolSize bounds the number of concurrently running source jobs.
	PoolSize int `mapstructure:"pool_size"`

	// ItemRetries bounds retries for a single failing listing before it
	// is counted as an item failure.
	ItemRetries int `mapstructure:"item_retries"`

	// FetchAttempts bounds restarts of a source's fetch sequence after
	// upstream throttling before the job fails.
	FetchAttempts int `mapstructure:"fetch_attempts"`

	// BackoffInitial and BackoffMax shape the source-scoped exponential
	// backoff applied after throttling.
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`

	// SimilarityTolerance is the relative price band (0..1) used by the
	// deduplicator's fallback title match.
	SimilarityTolerance float64 `mapstructure:"similarity_tolerance"`

	// StaleAfter is how long a product may go unseen before the sweep
	// deactivates it.
	StaleAfter time.Duration `mapstructure:"stale_after"`

	// DealTTL is the default validity window for detected deals.
	DealTTL time.Duration `mapstructure:"deal_ttl"`
}

// Default scraper settings.
const (
	DefaultPoolSize            = 4
	DefaultItemRetries         = 3
	DefaultFetchAttempts       = 3
	DefaultBackoffInitial      = 2 * time.Second
	DefaultBackoffMax          = 2 * time.Minute
	DefaultSimilarityTolerance = 0.05
	DefaultStaleAfter          = 72 * time.Hour
	DefaultDealTTL             = 48 * time.Hour
	DefaultMaxStreamLen        = 10000
)

// Load unmarshals the full configuration from viper, applies defaults, and
// validates it. Viper must already have its config file and env bindings
// set up (done in cmd).
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadRaw unmarshals the configuration and applies defaults without
// validating. Used by tooling that reports validation errors itself.
func LoadRaw() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "dealradar"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Scraper.PoolSize <= 0 {
		c.Scraper.PoolSize = DefaultPoolSize
	}
	if c.Scraper.ItemRetries <= 0 {
		c.Scraper.ItemRetries = DefaultItemRetries
	}
	if c.Scraper.FetchAttempts <= 0 {
		c.Scraper.FetchAttempts = DefaultFetchAttempts
	}
	if c.Scraper.BackoffInitial <= 0 {
		c.Scraper.BackoffInitial = DefaultBackoffInitial
	}
	if c.Scraper.BackoffMax <= 0 {
		c.Scraper.BackoffMax = DefaultBackoffMax
	}
	if c.Scraper.SimilarityTolerance <= 0 {
		c.Scraper.SimilarityTolerance = DefaultSimilarityTolerance
	}
	if c.Scraper.StaleAfter <= 0 {
		c.Scraper.StaleAfter = DefaultStaleAfter
	}
	if c.Scraper.DealTTL <= 0 {
		c.Scraper.DealTTL = DefaultDealTTL
	}
	if c.Redis.DealStream == "" {
		c.Redis.DealStream = "dealradar:deals"
	}
	if c.Redis.MaxStreamLen <= 0 {
		c.Redis.MaxStreamLen = DefaultMaxStreamLen
	}

	for i := range c.Sources {
		c.Sources[i].applyDefaults()
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Scraper.SimilarityTolerance >= 1 {
		return fmt.Errorf("scraper.similarity_tolerance must be below 1, got %v",
			c.Scraper.SimilarityTolerance)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if err := src.Validate(); err != nil {
			return fmt.Errorf("source %q: %w", src.Name, err)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name %q", src.Name)
		}
		seen[src.Name] = true
	}

	return nil
}

// Source returns the source configuration with the given name, or nil.
func (c *Config) Source(name string) *Source {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i]
		}
	}
	return nil
}

// EnabledSources returns all sources with scraping enabled.
func (c *Config) EnabledSources() []Source {
	enabled := make([]Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	return enabled
}
