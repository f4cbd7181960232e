package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSource() Source {
	return Source{
		Name:      "shopsmart",
		Adapter:   AdapterHTML,
		BaseURL:   "https://shopsmart.example",
		StartURLs: []string{"https://shopsmart.example/deals"},
		Selectors: Selectors{
			Card:  "div.product-card",
			Title: "h2.product-name",
			Price: "span.price",
		},
		Enabled: true,
	}
}

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Source)
		wantErr string
	}{
		{"valid html source", func(s *Source) {}, ""},
		{"missing name", func(s *Source) { s.Name = "" }, "name is required"},
		{"missing base url", func(s *Source) { s.BaseURL = "" }, "base_url is required"},
		{"html without start urls", func(s *Source) { s.StartURLs = nil }, "start_url"},
		{"html without card selector", func(s *Source) { s.Selectors.Card = "" }, "selectors.card"},
		{"html without price selector", func(s *Source) { s.Selectors.Price = "" }, "selectors.price"},
		{"unknown adapter", func(s *Source) { s.Adapter = "soap" }, "unknown adapter"},
		{"json needs no selectors", func(s *Source) {
			s.Adapter = AdapterJSON
			s.Selectors = Selectors{}
			s.StartURLs = nil
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := validSource()
			tt.mutate(&src)

			err := src.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_DuplicateSource(t *testing.T) {
	cfg := &Config{Sources: []Source{validSource(), validSource()}}
	cfg.applyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate source name")
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{Sources: []Source{{Name: "bare", BaseURL: "https://bare.example"}}}
	cfg.applyDefaults()

	assert.Equal(t, DefaultPoolSize, cfg.Scraper.PoolSize)
	assert.Equal(t, DefaultItemRetries, cfg.Scraper.ItemRetries)
	assert.Equal(t, DefaultBackoffInitial, cfg.Scraper.BackoffInitial)
	assert.Equal(t, DefaultSimilarityTolerance, cfg.Scraper.SimilarityTolerance)
	assert.Equal(t, "dealradar:deals", cfg.Redis.DealStream)

	src := cfg.Sources[0]
	assert.Equal(t, AdapterHTML, src.Adapter)
	assert.Equal(t, "USD", src.Currency)
	assert.Equal(t, 1, src.RateLimit.Requests)
	assert.Equal(t, time.Second, src.RateLimit.Interval)
	assert.Equal(t, 1, src.RateLimit.Burst)
}

func TestConfig_EnabledSources(t *testing.T) {
	on := validSource()
	off := validSource()
	off.Name = "sleepy"
	off.Enabled = false

	cfg := &Config{Sources: []Source{on, off}}

	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 1)
	assert.Equal(t, "shopsmart", enabled[0].Name)
}

func TestRateLimitProfile_PerSecond(t *testing.T) {
	tests := []struct {
		name    string
		profile RateLimitProfile
		want    float64
	}{
		{"two per second", RateLimitProfile{Requests: 2, Interval: time.Second}, 2},
		{"ten per minute", RateLimitProfile{Requests: 10, Interval: time.Minute}, 10.0 / 60.0},
		{"zero falls back to one", RateLimitProfile{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.profile.PerSecond(), 1e-9)
		})
	}
}
