// Package adapter provides per-platform source adapters. An adapter fetches
// raw listings from its platform and parses them into the source-specific
// intermediate form; it performs network I/O only and never touches the
// catalog.
package adapter

import (
	"context"
	"fmt"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/ratelimit"
)

// RawListing is one unparsed listing as emitted by Fetch.
type RawListing struct {
	// SourceURL is the page or API URL the listing came from.
	SourceURL string
	// Payload is the raw listing fragment (an HTML card or a JSON object).
	Payload []byte
}

// Listing is the source-specific intermediate record produced by Parse.
// All fields are raw strings; the normalizer owns type conversion.
type Listing struct {
	ExternalID    string
	Title         string
	Brand         string
	Currency      string
	Price         string
	OriginalPrice string
	ImageURL      string
	ProductURL    string
}

// FetchSpec narrows what a fetch run should retrieve.
type FetchSpec struct {
	// Query is a free-form listing query (json adapter).
	Query string
	// MaxPages caps pagination; zero means the adapter's default.
	MaxPages int
}

// Result is one element of the lazy fetch sequence: either a raw listing or
// an error. A terminal error (throttling) ends the sequence.
type Result struct {
	Raw RawListing
	Err error
}

// Adapter is the capability set every platform variant implements.
type Adapter interface {
	// Type returns the adapter variant name.
	Type() string

	// Source returns the name of the source this adapter scrapes.
	Source() string

	// RateLimit returns the source's declared rate-limit profile so the
	// rate limiter can enforce it without adapter-specific code.
	RateLimit() config.RateLimitProfile

	// Fetch starts a lazy, finite sequence of raw listings. The sequence
	// is restartable per call, not resumable mid-sequence. The channel is
	// closed when the sequence ends.
	Fetch(ctx context.Context, spec FetchSpec) <-chan Result

	// Parse converts one raw listing into the intermediate record.
	Parse(raw RawListing) (Listing, error)
}

// ProxyRotator is implemented by adapters configured with more than one
// egress path. The scheduler rotates after upstream throttling.
type ProxyRotator interface {
	// RotateProxy switches to the next egress path. It reports false when
	// no alternate path is configured.
	RotateProxy() bool
}

// Factory builds an adapter for a configured source.
type Factory func(src config.Source, gate ratelimit.Gate, log logger.Interface) (Adapter, error)

// Registry maps adapter type names to factories.
type Registry struct {
	factories map[string]Factory
	logger    logger.Interface
}

// NewRegistry creates a registry with the built-in adapter variants
// registered.
func NewRegistry(log logger.Interface) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    log,
	}

	r.Register(config.AdapterHTML, func(src config.Source, gate ratelimit.Gate, l logger.Interface) (Adapter, error) {
		return NewHTMLAdapter(src, gate, l)
	})
	r.Register(config.AdapterJSON, func(src config.Source, gate ratelimit.Gate, l logger.Interface) (Adapter, error) {
		return NewJSONAdapter(src, gate, l)
	})

	return r
}

// Register adds a factory for an adapter type, replacing any existing one.
func (r *Registry) Register(adapterType string, factory Factory) {
	r.factories[adapterType] = factory
}

// For builds the adapter for a source from its configured adapter type.
func (r *Registry) For(src config.Source, gate ratelimit.Gate) (Adapter, error) {
	factory, ok := r.factories[src.Adapter]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for type %q", src.Adapter)
	}
	return factory(src, gate, r.logger)
}
