// Package pricehistory maintains the append-only price record per product
// and derives the statistics the scorer consumes.
package pricehistory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
)

// Tracker appends price observations for products. Appends are serialized
// per product, and an observation is only recorded when it is newer than the
// latest entry and carries a different price. Replaying the same scrape is
// therefore a no-op.
type Tracker struct {
	prices catalog.PriceStore
	logger logger.Interface

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a price history tracker.
func NewTracker(prices catalog.PriceStore, log logger.Interface) *Tracker {
	return &Tracker{
		prices: prices,
		logger: log.WithComponent("pricehistory"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Record appends one observation for a product. It reports whether a new
// entry was written; observations older than the latest entry or repeating
// its price are dropped.
func (t *Tracker) Record(ctx context.Context, productID string, price decimal.Decimal, observedAt time.Time) (bool, error) {
	lock := t.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := t.prices.Latest(ctx, productID)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		// First observation for the product.
	case err != nil:
		return false, fmt.Errorf("load latest price: %w", err)
	default:
		if !observedAt.After(latest.RecordedAt) {
			return false, nil
		}
		if price.Equal(latest.Price) {
			return false, nil
		}
	}

	entry := &domain.PriceHistoryEntry{
		ProductID:  productID,
		Price:      price,
		RecordedAt: observedAt,
	}
	if appendErr := t.prices.Append(ctx, entry); appendErr != nil {
		return false, fmt.Errorf("append price: %w", appendErr)
	}

	t.logger.Debug("recorded price change",
		"product_id", productID,
		"price", price.String(),
	)

	return true, nil
}

func (t *Tracker) lockFor(productID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[productID] = lock
	}
	return lock
}

// HistoricLow returns the lowest price among the entries. The second return
// is false when the history is empty.
func HistoricLow(entries []domain.PriceHistoryEntry) (decimal.Decimal, bool) {
	if len(entries) == 0 {
		return decimal.Zero, false
	}

	low := entries[0].Price
	for _, entry := range entries[1:] {
		if entry.Price.LessThan(low) {
			low = entry.Price
		}
	}
	return low, true
}

// HistoricHigh returns the highest price among the entries. The second
// return is false when the history is empty.
func HistoricHigh(entries []domain.PriceHistoryEntry) (decimal.Decimal, bool) {
	if len(entries) == 0 {
		return decimal.Zero, false
	}

	high := entries[0].Price
	for _, entry := range entries[1:] {
		if entry.Price.GreaterThan(high) {
			high = entry.Price
		}
	}
	return high, true
}

// Percentile returns the percentage of entries whose price is strictly below
// the given price, from 0 to 100. A price at or below every recorded entry
// yields 0; a price above all of them yields 100.
func Percentile(entries []domain.PriceHistoryEntry, price decimal.Decimal) float64 {
	if len(entries) == 0 {
		return 0
	}

	below := 0
	for _, entry := range entries {
		if entry.Price.LessThan(price) {
			below++
		}
	}

	return float64(below) / float64(len(entries)) * 100
}
