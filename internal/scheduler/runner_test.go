package scheduler_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealradar/dealradar/internal/adapter"
	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/events"
	"github.com/dealradar/dealradar/internal/logger"
	"github.com/dealradar/dealradar/internal/metrics"
	"github.com/dealradar/dealradar/internal/scheduler"
)

// scriptedAdapter replays canned fetch sequences, one per Fetch call. The
// last sequence repeats once exhausted.
type scriptedAdapter struct {
	source    string
	sequences [][]adapter.Result
	calls     int
	rotations int
}

func (a *scriptedAdapter) Type() string   { return "scripted" }
func (a *scriptedAdapter) Source() string { return a.source }

func (a *scriptedAdapter) RateLimit() config.RateLimitProfile {
	return config.RateLimitProfile{Requests: 100, Interval: time.Second}
}

func (a *scriptedAdapter) Fetch(ctx context.Context, _ adapter.FetchSpec) <-chan adapter.Result {
	idx := a.calls
	if idx >= len(a.sequences) {
		idx = len(a.sequences) - 1
	}
	a.calls++
	seq := a.sequences[idx]

	out := make(chan adapter.Result)
	go func() {
		defer close(out)
		for _, res := range seq {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (a *scriptedAdapter) Parse(raw adapter.RawListing) (adapter.Listing, error) {
	if string(raw.Payload) == "unparsable" {
		return adapter.Listing{}, adapter.NewScrapeError(a.source, "unparsable listing", nil)
	}

	var listing adapter.Listing
	if err := json.Unmarshal(raw.Payload, &listing); err != nil {
		return adapter.Listing{}, adapter.NewScrapeError(a.source, "decode listing", err)
	}
	return listing, nil
}

func (a *scriptedAdapter) RotateProxy() bool {
	a.rotations++
	return true
}

// capturePublisher records published events in order.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.DealEvent
}

func (p *capturePublisher) Publish(_ context.Context, event events.DealEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

func rawListing(t *testing.T, externalID, title, price, originalPrice string) adapter.Result {
	t.Helper()

	payload, err := json.Marshal(adapter.Listing{
		ExternalID:    externalID,
		Title:         title,
		Currency:      "USD",
		Price:         price,
		OriginalPrice: originalPrice,
		ProductURL:    "https://shop.example.com/p/" + externalID,
	})
	require.NoError(t, err)

	return adapter.Result{Raw: adapter.RawListing{SourceURL: "https://shop.example.com", Payload: payload}}
}

func throttledResult(retryAfter time.Duration) adapter.Result {
	return adapter.Result{Err: &adapter.RateLimitedError{Source: "example-shop", RetryAfter: retryAfter}}
}

func scraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		PoolSize:            2,
		ItemRetries:         2,
		FetchAttempts:       2,
		BackoffInitial:      time.Millisecond,
		BackoffMax:          4 * time.Millisecond,
		SimilarityTolerance: 0.05,
		StaleAfter:          72 * time.Hour,
		DealTTL:             48 * time.Hour,
	}
}

func testSource() config.Source {
	return config.Source{
		Name:    "example-shop",
		Adapter: "scripted",
		Enabled: true,
	}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type runnerFixture struct {
	runner    *scheduler.Runner
	gateway   *catalog.Memory
	publisher *capturePublisher
	metrics   *metrics.Metrics
}

func newRunnerFixture() *runnerFixture {
	gateway := catalog.NewMemory()
	publisher := &capturePublisher{}
	m := metrics.NewMetrics()

	return &runnerFixture{
		runner:    scheduler.NewRunner(scraperConfig(), gateway, publisher, m, logger.NewNoOp()),
		gateway:   gateway,
		publisher: publisher,
		metrics:   m,
	}
}

func TestRunner_SuccessfulRunCreatesDeal(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source:    "example-shop",
		sequences: [][]adapter.Result{{rawListing(t, "X123", "Blue Kettle", "80", "100")}},
	}
	ctx := context.Background()

	job, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, 1, job.ItemsScraped)
	assert.Equal(t, 0, job.ItemsFailed)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.FinishedAt)

	product, err := f.gateway.Products().GetByIdentity(ctx, "example-shop", "X123")
	require.NoError(t, err)
	assert.Equal(t, "80", product.CurrentPrice.String())

	deal, err := f.gateway.Deals().Active(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, deal.IsActive)
	require.NotNil(t, deal.DiscountPercentage)
	assert.Equal(t, "20", deal.DiscountPercentage.String())

	history, err := f.gateway.Prices().History(ctx, product.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	assert.Equal(t, []string{events.TypeDealCreated}, f.publisher.types())
}

func TestRunner_UnchangedPriceIsNoOp(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source:    "example-shop",
		sequences: [][]adapter.Result{{rawListing(t, "X123", "Blue Kettle", "80", "100")}},
	}
	ctx := context.Background()

	_, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)

	// Same price next cycle: no new history entry, no new deal, the
	// existing deal's state untouched.
	job, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)

	product, err := f.gateway.Products().GetByIdentity(ctx, "example-shop", "X123")
	require.NoError(t, err)

	history, err := f.gateway.Prices().History(ctx, product.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	deal, err := f.gateway.Deals().Active(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, deal.IsActive)

	assert.Equal(t, []string{events.TypeDealCreated}, f.publisher.types())
}

func TestRunner_PriceRevertDeactivatesDeal(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source: "example-shop",
		sequences: [][]adapter.Result{
			{rawListing(t, "X123", "Blue Kettle", "80", "100")},
			{rawListing(t, "X123", "Blue Kettle", "100", "100")},
		},
	}
	ctx := context.Background()

	_, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)

	_, err = f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)

	product, err := f.gateway.Products().GetByIdentity(ctx, "example-shop", "X123")
	require.NoError(t, err)

	_, err = f.gateway.Deals().Active(ctx, product.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	history, err := f.gateway.Prices().History(ctx, product.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	assert.Equal(t, []string{events.TypeDealCreated, events.TypeDealDeactivated}, f.publisher.types())
}

func TestRunner_AllThrottledRunFails(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source:    "example-shop",
		sequences: [][]adapter.Result{{throttledResult(2 * time.Millisecond)}},
	}

	job, err := f.runner.Run(context.Background(), testSource(), ad)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.ItemsScraped)
	require.NotNil(t, job.LastError)
	assert.NotEmpty(t, job.BackoffTrail, "throttled run must record its backoff trail")
	assert.Equal(t, 1, ad.rotations, "scheduler rotates egress between attempts")
	assert.Equal(t, 2, ad.calls, "fetch restarted up to the attempt bound")

	snap := f.metrics.Snapshot()
	assert.Equal(t, int64(2), snap.RateLimitedRequests)
}

func TestRunner_ItemFailureDoesNotFailJob(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source: "example-shop",
		sequences: [][]adapter.Result{{
			rawListing(t, "X123", "Blue Kettle", "80", "100"),
			{Raw: adapter.RawListing{SourceURL: "https://shop.example.com", Payload: []byte("unparsable")}},
		}},
	}

	job, err := f.runner.Run(context.Background(), testSource(), ad)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, 1, job.ItemsScraped)
	assert.Equal(t, 1, job.ItemsFailed)
	require.NotNil(t, job.LastError)
}

func TestRunner_CancelledRun(t *testing.T) {
	f := newRunnerFixture()
	ad := &scriptedAdapter{
		source:    "example-shop",
		sequences: [][]adapter.Result{{rawListing(t, "X123", "Blue Kettle", "80", "100")}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCancelled, job.Status)

	// The terminal state is persisted despite the cancelled context.
	stored, err := f.gateway.Jobs().GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, stored.Status)
}

func TestRunner_DealExpirySweep(t *testing.T) {
	f := newRunnerFixture()
	ctx := context.Background()

	// Seed an active deal that expired in the past.
	product, _, err := f.gateway.Products().Upsert(ctx, &domain.NormalizedProduct{
		Source:       "example-shop",
		ExternalID:   "OLD-1",
		Title:        "Old Toaster",
		Currency:     "USD",
		CurrentPrice: decimalFromString(t, "20"),
		ProductURL:   "https://shop.example.com/p/OLD-1",
		ObservedAt:   time.Now().Add(-96 * time.Hour),
	})
	require.NoError(t, err)

	expired := time.Now().Add(-time.Hour)
	require.NoError(t, f.gateway.Deals().Upsert(ctx, &domain.Deal{
		ProductID:     product.ID,
		DealPrice:     decimalFromString(t, "20"),
		OriginalPrice: decimalFromString(t, "40"),
		DealType:      domain.DealTypePriceDrop,
		StartsAt:      time.Now().Add(-48 * time.Hour),
		ExpiresAt:     &expired,
	}))

	ad := &scriptedAdapter{
		source:    "example-shop",
		sequences: [][]adapter.Result{{rawListing(t, "X123", "Blue Kettle", "80", "100")}},
	}

	job, err := f.runner.Run(ctx, testSource(), ad)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusSucceeded, job.Status)

	// The post-run sweep retired the expired deal and the stale product.
	_, err = f.gateway.Deals().Active(ctx, product.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	stale, err := f.gateway.Products().GetByID(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, stale.IsActive)
}
