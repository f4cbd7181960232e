package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Adapter types supported by the pipeline.
const (
	// AdapterHTML scrapes listing pages with CSS selectors.
	AdapterHTML = "html"

	// AdapterJSON consumes a paginated JSON listings API.
	AdapterJSON = "json"
)

// Source describes one e-commerce platform to scrape.
type Source struct {
	// Name is the unique identifier for the source
	Name string `mapstructure:"name"`
	// Adapter selects the adapter variant ("html" or "json")
	Adapter string `mapstructure:"adapter"`
	// BaseURL is the base address of the platform
	BaseURL string `mapstructure:"base_url"`
	// StartURLs are the listing pages to begin scraping from (html adapter)
	StartURLs []string `mapstructure:"start_urls"`
	// Query is the listing query passed to the adapter (json adapter)
	Query string `mapstructure:"query"`
	// Currency is the source's listing currency (ISO 4217)
	Currency string `mapstructure:"currency"`
	// RateLimit bounds outbound fetch frequency for this source
	RateLimit RateLimitProfile `mapstructure:"rate_limit"`
	// Credentials holds upstream authentication, if any
	Credentials Credentials `mapstructure:"credentials"`
	// Proxies is an optional egress rotation list, tried in order after
	// upstream throttling
	Proxies []string `mapstructure:"proxies"`
	// Selectors define CSS selectors for listing extraction (html adapter)
	Selectors Selectors `mapstructure:"selectors"`
	// Schedule is a cron expression for recurring runs
	Schedule string `mapstructure:"schedule"`
	// Enabled toggles the source on or off
	Enabled bool `mapstructure:"enabled"`
}

// RateLimitProfile is the per-source policy bounding outbound fetch
// frequency: Requests per Interval, with an allowed Burst.
type RateLimitProfile struct {
	Requests int           `mapstructure:"requests"`
	Interval time.Duration `mapstructure:"interval"`
	Burst    int           `mapstructure:"burst"`
}

// PerSecond returns the profile as requests per second.
func (p RateLimitProfile) PerSecond() float64 {
	if p.Requests <= 0 || p.Interval <= 0 {
		return 1
	}
	return float64(p.Requests) / p.Interval.Seconds()
}

// Credentials holds upstream authentication for a source.
type Credentials struct {
	APIKey   string `mapstructure:"api_key"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Selectors define the CSS selectors used for listing extraction by the
// HTML adapter.
type Selectors struct {
	// Card matches one product listing on the page
	Card string `mapstructure:"card"`
	// The remaining selectors are evaluated relative to a card
	ExternalID    string `mapstructure:"external_id"`
	Title         string `mapstructure:"title"`
	Brand         string `mapstructure:"brand"`
	Price         string `mapstructure:"price"`
	OriginalPrice string `mapstructure:"original_price"`
	Image         string `mapstructure:"image"`
	Link          string `mapstructure:"link"`
	// NextPage matches the pagination link to the next listing page
	NextPage string `mapstructure:"next_page"`
}

func (s *Source) applyDefaults() {
	if s.Adapter == "" {
		s.Adapter = AdapterHTML
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}
	if s.RateLimit.Requests <= 0 {
		s.RateLimit.Requests = 1
	}
	if s.RateLimit.Interval <= 0 {
		s.RateLimit.Interval = time.Second
	}
	if s.RateLimit.Burst <= 0 {
		s.RateLimit.Burst = s.RateLimit.Requests
	}
}

// Validate validates the source configuration.
func (s *Source) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.BaseURL == "" {
		return errors.New("base_url is required")
	}
	if _, err := url.Parse(s.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	switch s.Adapter {
	case AdapterHTML:
		if len(s.StartURLs) == 0 {
			return errors.New("at least one start_url is required for the html adapter")
		}
		if s.Selectors.Card == "" {
			return errors.New("selectors.card is required for the html adapter")
		}
		if s.Selectors.Title == "" {
			return errors.New("selectors.title is required for the html adapter")
		}
		if s.Selectors.Price == "" {
			return errors.New("selectors.price is required for the html adapter")
		}
	case AdapterJSON:
		// JSON adapters need nothing beyond the base URL
	default:
		return fmt.Errorf("unknown adapter type %q", s.Adapter)
	}

	if s.RateLimit.Interval < 0 {
		return errors.New("rate_limit.interval must be non-negative")
	}

	return nil
}
