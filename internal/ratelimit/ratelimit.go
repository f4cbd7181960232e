// Package ratelimit provides per-source token-bucket rate limiting for
// outbound fetches.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
)

// Gate gates a single source's outbound requests.
type Gate interface {
	// Wait blocks until a token is available or the context is done.
	Wait(ctx context.Context) error
	// Allow reports whether a request may proceed without waiting.
	Allow() bool
}

// Limiter is a token-bucket gate for one source, backed by x/time/rate.
// Tokens refill continuously at the profile's rate.
type Limiter struct {
	limiter *rate.Limiter
	source  string
	logger  logger.Interface
}

// NewLimiter creates a rate limiter for one source from its profile.
func NewLimiter(source string, profile config.RateLimitProfile, log logger.Interface) *Limiter {
	burst := profile.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(profile.PerSecond()), burst),
		source:  source,
		logger:  log,
	}
}

// Wait blocks until the source's budget allows another request.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		l.logger.Debug("rate limiter wait aborted",
			"source", l.source,
			"error", err,
		)
		return err
	}
	return nil
}

// Allow reports whether a request may proceed without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.limiter.Tokens()
}

// Registry hands out one limiter per source, creating it on first use so
// every fetch path for a source shares the same bucket.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	logger   logger.Interface
}

// NewRegistry creates an empty limiter registry.
func NewRegistry(log logger.Interface) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		logger:   log,
	}
}

// For returns the limiter for a source, creating it from the profile on
// first call. Subsequent calls ignore the profile argument.
func (r *Registry) For(source string, profile config.RateLimitProfile) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[source]; ok {
		return l
	}

	l := NewLimiter(source, profile, r.logger)
	r.limiters[source] = l
	return l
}
