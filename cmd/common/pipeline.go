package common

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dealradar/dealradar/internal/adapter"
	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/events"
	"github.com/dealradar/dealradar/internal/metrics"
	"github.com/dealradar/dealradar/internal/ratelimit"
	"github.com/dealradar/dealradar/internal/scheduler"
	"github.com/dealradar/dealradar/internal/worker"
)

// drainTimeout bounds how long Close waits for in-flight jobs.
const drainTimeout = 30 * time.Second

// Pipeline bundles the wired scraping stack behind a single handle so
// commands can build it once and tear it down cleanly.
type Pipeline struct {
	Scheduler *scheduler.Scheduler
	Gateway   catalog.Gateway
	Metrics   *metrics.Metrics

	db        *sqlx.DB
	publisher events.Publisher
}

// NewPipeline connects to Postgres and Redis and wires the full scraping
// pipeline from the loaded configuration. Redis is optional: with no addr
// configured, deal events are dropped.
func NewPipeline(deps CommandDeps) (*Pipeline, error) {
	cfg := deps.Config
	log := deps.Logger

	db, err := catalog.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var publisher events.Publisher
	if cfg.Redis.Addr == "" {
		log.Info("no redis addr configured, deal events disabled")
		publisher = events.NewNopPublisher()
	} else {
		publisher, err = events.NewStreamPublisher(cfg.Redis, log)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	gateway := catalog.NewStore(db)
	m := metrics.NewMetrics()
	runner := scheduler.NewRunner(cfg.Scraper, gateway, publisher, m, log)

	pool, err := worker.NewPool(cfg.Scraper.PoolSize, drainTimeout, log)
	if err != nil {
		publisher.Close()
		db.Close()
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	sched := scheduler.New(
		cfg,
		runner,
		adapter.NewRegistry(log),
		ratelimit.NewRegistry(log),
		pool,
		log,
	)

	return &Pipeline{
		Scheduler: sched,
		Gateway:   gateway,
		Metrics:   m,
		db:        db,
		publisher: publisher,
	}, nil
}

// Close releases the pipeline's external connections. The scheduler must
// already be stopped.
func (p *Pipeline) Close() error {
	var firstErr error
	if err := p.publisher.Close(); err != nil {
		firstErr = err
	}
	if err := p.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
