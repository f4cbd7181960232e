package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dealradar/dealradar/internal/adapter"
	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/ratelimit"
	"github.com/dealradar/dealradar/internal/worker"
)

// ErrSourceBusy is returned when a run is requested for a source that
// already has a job running.
var ErrSourceBusy = errors.New("source already has a running job")

// Scheduler coordinates scrape runs across sources: one active job per
// source, total concurrency bounded by the worker pool, recurring runs
// driven by per-source cron schedules.
type Scheduler struct {
	cfg      *config.Config
	runner   *Runner
	adapters *adapter.Registry
	limits   *ratelimit.Registry
	pool     *worker.Pool
	cron     *cron.Cron
	logger   logger.Interface

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]bool
}

// New creates a scheduler over the configured sources.
func New(
	cfg *config.Config,
	runner *Runner,
	adapters *adapter.Registry,
	limits *ratelimit.Registry,
	pool *worker.Pool,
	log logger.Interface,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cfg:      cfg,
		runner:   runner,
		adapters: adapters,
		limits:   limits,
		pool:     pool,
		cron:     cron.New(),
		logger:   log.WithComponent("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[string]bool),
	}
}

// RunOnce executes one job for the source inline, blocking until the job is
// terminal. Per-source mutual exclusion still applies.
func (s *Scheduler) RunOnce(ctx context.Context, src config.Source) (*domain.ScraperJob, error) {
	if !s.acquire(src.Name) {
		return nil, ErrSourceBusy
	}
	defer s.release(src.Name)

	gate := s.limits.For(src.Name, src.RateLimit)
	ad, err := s.adapters.For(src, gate)
	if err != nil {
		return nil, fmt.Errorf("build adapter for %s: %w", src.Name, err)
	}

	return s.runner.Run(ctx, src, ad)
}

// Enqueue schedules one job for the source on the worker pool. A source
// with a job already running is skipped, not queued.
func (s *Scheduler) Enqueue(src config.Source) error {
	if !s.acquire(src.Name) {
		s.logger.Debug("skipping run, source busy", "source", src.Name)
		return ErrSourceBusy
	}

	err := s.pool.Submit(s.ctx, func(ctx context.Context) error {
		defer s.release(src.Name)

		gate := s.limits.For(src.Name, src.RateLimit)
		ad, adapterErr := s.adapters.For(src, gate)
		if adapterErr != nil {
			s.logger.Error("failed to build adapter", "source", src.Name, "error", adapterErr)
			return adapterErr
		}

		_, runErr := s.runner.Run(ctx, src, ad)
		if runErr != nil {
			s.logger.Error("scrape run errored", "source", src.Name, "error", runErr)
		}
		return runErr
	})
	if err != nil {
		s.release(src.Name)
		return err
	}

	return nil
}

// Start begins recurring runs: every enabled source with a schedule gets a
// cron entry, and each tick enqueues a job on the pool.
func (s *Scheduler) Start() error {
	if err := s.pool.Start(); err != nil {
		return err
	}

	scheduled := 0
	for _, src := range s.cfg.EnabledSources() {
		if src.Schedule == "" {
			continue
		}

		source := src
		_, err := s.cron.AddFunc(source.Schedule, func() {
			if enqueueErr := s.Enqueue(source); enqueueErr != nil && !errors.Is(enqueueErr, ErrSourceBusy) {
				s.logger.Error("failed to enqueue scheduled run",
					"source", source.Name,
					"error", enqueueErr,
				)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule for source %s: %w", source.Name, err)
		}
		scheduled++
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		"scheduled_sources", scheduled,
		"pool_size", s.pool.Size(),
	)

	return nil
}

// Stop cancels running jobs and drains the pool. In-flight persistence for
// already-fetched listings completes; jobs end as cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("scheduler stopping")

	cronCtx := s.cron.Stop()
	s.cancel()

	if err := s.pool.Stop(ctx); err != nil {
		s.logger.Warn("pool stop reported error", "error", err)
	}

	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	s.logger.Info("scheduler stopped")
	return nil
}

// RunAll enqueues one job for every enabled source.
func (s *Scheduler) RunAll() {
	for _, src := range s.cfg.EnabledSources() {
		if err := s.Enqueue(src); err != nil && !errors.Is(err, ErrSourceBusy) {
			s.logger.Error("failed to enqueue run", "source", src.Name, "error", err)
		}
	}
}

func (s *Scheduler) acquire(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[source] {
		return false
	}
	s.running[source] = true
	return true
}

func (s *Scheduler) release(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, source)
}

// IsRunning reports whether the source currently has an active job.
func (s *Scheduler) IsRunning(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[source]
}
