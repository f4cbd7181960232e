package catalog_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
)

func normalized(externalID, title, price string) *domain.NormalizedProduct {
	return &domain.NormalizedProduct{
		Source:       "example-shop",
		ExternalID:   externalID,
		Title:        title,
		Currency:     "USD",
		CurrentPrice: decimal.RequireFromString(price),
		ProductURL:   "https://shop.example.com/p/" + externalID,
		ObservedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newDeduplicator(gateway catalog.Gateway) *catalog.Deduplicator {
	return catalog.NewDeduplicator(gateway.Products(), 0.05, logger.NewNoOp())
}

func TestDeduplicator_CreatesThenMatchesExact(t *testing.T) {
	memory := catalog.NewMemory()
	dedup := newDeduplicator(memory)
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", "79.99"))
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.False(t, first.Rebound)

	second, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", "69.99"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Equal(t, "69.99", second.Product.CurrentPrice.String())
}

func TestDeduplicator_TitleFallbackRebinds(t *testing.T) {
	memory := catalog.NewMemory()
	dedup := newDeduplicator(memory)
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", "100.00"))
	require.NoError(t, err)

	// Same title, price within 5%, new external ID: the existing product
	// adopts the new identity instead of a duplicate being created.
	second, err := dedup.Resolve(ctx, normalized("SKU-1-NEW", "Blue Kettle", "104.00"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, second.Rebound)
	assert.Equal(t, first.Product.ID, second.Product.ID)
	assert.Equal(t, "SKU-1-NEW", second.Product.ExternalID)
}

func TestDeduplicator_PriceOutsideToleranceCreatesNew(t *testing.T) {
	memory := catalog.NewMemory()
	dedup := newDeduplicator(memory)
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", "100.00"))
	require.NoError(t, err)

	second, err := dedup.Resolve(ctx, normalized("SKU-2", "Blue Kettle", "150.00"))
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.False(t, second.Rebound)
	assert.NotEqual(t, first.Product.ID, second.Product.ID)
}

func TestDeduplicator_DifferentSourcesStaySeparate(t *testing.T) {
	memory := catalog.NewMemory()
	dedup := newDeduplicator(memory)
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", "79.99"))
	require.NoError(t, err)

	other := normalized("SKU-1", "Blue Kettle", "79.99")
	other.Source = "other-shop"
	other.ProductURL = "https://other.example.com/p/SKU-1"

	second, err := dedup.Resolve(ctx, other)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.Product.ID, second.Product.ID)
}

func TestDeduplicator_ConcurrentSameIdentity(t *testing.T) {
	memory := catalog.NewMemory()
	dedup := newDeduplicator(memory)
	ctx := context.Background()

	const workers = 16

	var wg sync.WaitGroup
	created := make(chan bool, workers)
	ids := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := dedup.Resolve(ctx, normalized("SKU-1", "Blue Kettle", fmt.Sprintf("79.%02d", n)))
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			created <- res.Created
			ids <- res.Product.ID
		}(i)
	}
	wg.Wait()
	close(created)
	close(ids)

	createdCount := 0
	for c := range created {
		if c {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount, "exactly one resolve should create the product")

	unique := map[string]struct{}{}
	for id := range ids {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 1, "all resolves should land on the same product")
}
