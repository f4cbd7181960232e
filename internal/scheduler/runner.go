// Package scheduler drives scrape runs: one job per source per run,
// coordinating the rate-limited adapter, normalizer, deduplicator, price
// tracker, and scorer, and persisting job lifecycle and results.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dealradar/dealradar/internal/adapter"
	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/events"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/metrics"
	"github.com/dealradar/dealradar/internal/normalize"
	"github.com/dealradar/dealradar/internal/pricehistory"
	"github.com/dealradar/dealradar/internal/scoring"
)

// scoringHistoryDepth caps how many observations the scorer ranks against.
const scoringHistoryDepth = 100

// Runner executes one scrape run for one source end to end.
type Runner struct {
	cfg       config.ScraperConfig
	gateway   catalog.Gateway
	dedup     *catalog.Deduplicator
	tracker   *pricehistory.Tracker
	scorer    *scoring.Scorer
	publisher events.Publisher
	metrics   *metrics.Metrics
	backoff   *Backoff
	logger    logger.Interface

	// now is swappable for tests.
	now func() time.Time
}

// NewRunner wires the pipeline stages into a runner.
func NewRunner(
	cfg config.ScraperConfig,
	gateway catalog.Gateway,
	publisher events.Publisher,
	m *metrics.Metrics,
	log logger.Interface,
) *Runner {
	return &Runner{
		cfg:       cfg,
		gateway:   gateway,
		dedup:     catalog.NewDeduplicator(gateway.Products(), cfg.SimilarityTolerance, log),
		tracker:   pricehistory.NewTracker(gateway.Prices(), log),
		scorer:    scoring.NewScorer(cfg.DealTTL),
		publisher: publisher,
		metrics:   m,
		backoff:   NewBackoff(cfg.BackoffInitial, cfg.BackoffMax),
		logger:    log.WithComponent("runner"),
		now:       time.Now,
	}
}

// Run executes one job against one source. The returned job is terminal:
// succeeded when at least one fetch landed, failed when none did, cancelled
// when the context ended the run early. Item-level failures never fail the
// job on their own.
func (r *Runner) Run(ctx context.Context, src config.Source, ad adapter.Adapter) (*domain.ScraperJob, error) {
	log := r.logger.WithSource(src.Name)

	job := &domain.ScraperJob{Source: src.Name, Status: domain.JobStatusPending}
	if err := r.gateway.Jobs().Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	started := r.now()
	if err := job.Transition(domain.JobStatusRunning); err != nil {
		return nil, err
	}
	job.StartedAt = &started
	if err := r.gateway.Jobs().Update(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	log.Info("scrape run started", "job_id", job.ID)

	successfulFetches := r.scrape(ctx, src, ad, job, log)

	status := domain.JobStatusSucceeded
	switch {
	case ctx.Err() != nil:
		status = domain.JobStatusCancelled
		job.SetError(ctx.Err())
	case successfulFetches == 0:
		status = domain.JobStatusFailed
		if job.LastError == nil {
			job.SetError(adapter.ErrNoListings)
		}
	}

	if err := job.Transition(status); err != nil {
		return nil, err
	}
	finished := r.now()
	job.FinishedAt = &finished

	// The catalog write must survive cancellation or the run would be
	// stuck non-terminal.
	if err := r.gateway.Jobs().Update(context.WithoutCancel(ctx), job); err != nil {
		return nil, fmt.Errorf("finalize job: %w", err)
	}

	r.metrics.RecordJob(string(job.Status), finished.Sub(started))
	log.Info("scrape run finished",
		"job_id", job.ID,
		"status", string(job.Status),
		"items_scraped", job.ItemsScraped,
		"items_failed", job.ItemsFailed,
	)

	if job.Status == domain.JobStatusSucceeded {
		r.sweep(context.WithoutCancel(ctx), log)
	}

	return job, nil
}

// scrape walks the adapter's fetch sequence, restarting it after throttling
// up to the configured attempt bound. It returns the number of successfully
// fetched listings.
func (r *Runner) scrape(ctx context.Context, src config.Source, ad adapter.Adapter, job *domain.ScraperJob, log logger.Interface) int {
	successfulFetches := 0

	for attempt := 0; attempt < r.cfg.FetchAttempts; attempt++ {
		throttled, retryAfter := r.drain(ctx, src, ad, job, &successfulFetches, log)

		if ctx.Err() != nil || !throttled {
			return successfulFetches
		}
		if attempt == r.cfg.FetchAttempts-1 {
			break
		}

		delay, waitErr := r.backoff.Wait(ctx, attempt, retryAfter)
		job.RecordBackoff(delay)
		if waitErr != nil {
			return successfulFetches
		}

		if rotator, ok := ad.(adapter.ProxyRotator); ok && rotator.RotateProxy() {
			log.Info("rotated egress path after throttling", "attempt", attempt+1)
		}
	}

	return successfulFetches
}

// drain consumes one fetch sequence. It reports whether the sequence ended
// in upstream throttling and the advised retry delay.
func (r *Runner) drain(
	ctx context.Context,
	src config.Source,
	ad adapter.Adapter,
	job *domain.ScraperJob,
	successfulFetches *int,
	log logger.Interface,
) (bool, time.Duration) {
	results := ad.Fetch(ctx, adapter.FetchSpec{Query: src.Query})

	throttled := false
	var retryAfter time.Duration

	for res := range results {
		if res.Err != nil {
			var rl *adapter.RateLimitedError
			if errors.As(res.Err, &rl) {
				// Terminal for this sequence; the channel closes after it.
				throttled = true
				retryAfter = rl.RetryAfter
				job.SetError(res.Err)
				r.metrics.RecordRateLimited()
				log.Warn("source throttled the run", "retry_after", rl.RetryAfter)
				continue
			}

			job.SetError(res.Err)
			log.Warn("fetch error, continuing run", "error", res.Err)
			continue
		}

		*successfulFetches++

		// Already-fetched listings are carried through persistence even
		// when the run is being cancelled.
		if err := r.processListing(context.WithoutCancel(ctx), src, ad, res.Raw); err != nil {
			job.ItemsFailed++
			job.SetError(err)
			r.metrics.RecordItem(false)
			log.Warn("listing dropped after retries", "error", err)
			continue
		}

		job.ItemsScraped++
		r.metrics.RecordItem(true)
	}

	return throttled, retryAfter
}

// processListing carries one raw listing through parse, normalize, dedup,
// price tracking, and scoring. Parse and normalize failures are final;
// persistence failures retry up to the configured bound.
func (r *Runner) processListing(ctx context.Context, src config.Source, ad adapter.Adapter, raw adapter.RawListing) error {
	listing, err := ad.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse listing: %w", err)
	}

	np, err := normalize.Product(src.Name, listing, r.now())
	if err != nil {
		return fmt.Errorf("normalize listing: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < r.cfg.ItemRetries; attempt++ {
		if lastErr = r.persist(ctx, &np); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("persist listing: %w", lastErr)
}

// persist resolves the normalized record to a product, records the price
// observation, and keeps the product's deal in sync with the scorer.
func (r *Runner) persist(ctx context.Context, np *domain.NormalizedProduct) error {
	resolution, err := r.dedup.Resolve(ctx, np)
	if err != nil {
		return err
	}
	product := resolution.Product

	recorded, err := r.tracker.Record(ctx, product.ID, np.CurrentPrice, np.ObservedAt)
	if err != nil {
		return err
	}
	if !recorded {
		// Unchanged price: no new history entry, and the existing deal
		// state stands.
		return nil
	}

	history, err := r.gateway.Prices().History(ctx, product.ID, scoringHistoryDepth)
	if err != nil {
		return err
	}

	scored := r.scorer.Score(product, np.CurrentPrice, np.OriginalPrice, history, np.ObservedAt)
	if scored == nil {
		return r.retireDeal(ctx, product, np.ObservedAt)
	}

	return r.applyDeal(ctx, product, scored, np.ObservedAt)
}

// applyDeal upserts the product's active deal and publishes the lifecycle
// event.
func (r *Runner) applyDeal(ctx context.Context, product *domain.Product, scored *domain.NormalizedDeal, observedAt time.Time) error {
	_, activeErr := r.gateway.Deals().Active(ctx, product.ID)
	existed := activeErr == nil
	if activeErr != nil && !errors.Is(activeErr, catalog.ErrNotFound) {
		return activeErr
	}

	deal := &domain.Deal{
		ProductID:          product.ID,
		DealPrice:          scored.DealPrice,
		OriginalPrice:      scored.OriginalPrice,
		DiscountPercentage: scored.DiscountPercentage,
		AIScore:            scored.AIScore,
		AIReasoning:        scored.AIReasoning,
		DealType:           scored.DealType,
		StartsAt:           scored.StartsAt,
		ExpiresAt:          scored.ExpiresAt,
	}
	if err := r.gateway.Deals().Upsert(ctx, deal); err != nil {
		return err
	}

	eventType := events.TypeDealCreated
	if existed {
		eventType = events.TypeDealUpdated
		r.metrics.RecordDealUpdated()
	} else {
		r.metrics.RecordDealCreated()
	}

	if err := r.publisher.Publish(ctx, events.NewDealEvent(eventType, product, deal, observedAt)); err != nil {
		// Event delivery is best effort; the catalog stays authoritative.
		r.logger.Warn("failed to publish deal event", "error", err, "product_id", product.ID)
	}

	return nil
}

// retireDeal deactivates the product's active deal after a price revert.
func (r *Runner) retireDeal(ctx context.Context, product *domain.Product, observedAt time.Time) error {
	active, err := r.gateway.Deals().Active(ctx, product.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.gateway.Deals().Deactivate(ctx, product.ID); err != nil {
		return err
	}
	r.metrics.RecordDealDeactivated()

	active.IsActive = false
	if pubErr := r.publisher.Publish(ctx, events.NewDealEvent(events.TypeDealDeactivated, product, active, observedAt)); pubErr != nil {
		r.logger.Warn("failed to publish deal event", "error", pubErr, "product_id", product.ID)
	}

	return nil
}

// sweep retires expired deals and deactivates products the sources stopped
// reporting.
func (r *Runner) sweep(ctx context.Context, log logger.Interface) {
	now := r.now()

	if retired, err := r.gateway.Deals().DeactivateExpired(ctx, now); err != nil {
		log.Warn("expired deal sweep failed", "error", err)
	} else if retired > 0 {
		log.Info("retired expired deals", "count", retired)
	}

	if r.cfg.StaleAfter <= 0 {
		return
	}
	if stale, err := r.gateway.Products().DeactivateStale(ctx, now.Add(-r.cfg.StaleAfter)); err != nil {
		log.Warn("stale product sweep failed", "error", err)
	} else if stale > 0 {
		log.Info("deactivated stale products", "count", stale)
	}
}
