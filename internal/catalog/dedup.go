package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/logger"
)

// Resolution describes how a normalized record was mapped to a product.
type Resolution struct {
	Product *domain.Product

	// Created is true when the record seeded a new product.
	Created bool

	// Rebound is true when the record matched an existing product through
	// the title fallback and adopted its identity.
	Rebound bool
}

// Deduplicator resolves normalized records to canonical products. Resolution
// is serialized per identity key, so two workers carrying the same (source,
// external_id) cannot both create a product.
type Deduplicator struct {
	products  ProductStore
	tolerance decimal.Decimal
	keys      *keyMutex
	logger    logger.Interface
}

// NewDeduplicator creates a deduplicator. tolerance is the relative price
// band for title-fallback matches, e.g. 0.05 for five percent.
func NewDeduplicator(products ProductStore, tolerance float64, log logger.Interface) *Deduplicator {
	return &Deduplicator{
		products:  products,
		tolerance: decimal.NewFromFloat(tolerance),
		keys:      newKeyMutex(),
		logger:    log.WithComponent("dedup"),
	}
}

// Resolve maps a normalized record to its canonical product, creating one
// when nothing matches. Exact identity wins; otherwise an active product in
// the same source with the same title and a price within tolerance adopts
// the record's external ID before the upsert.
func (d *Deduplicator) Resolve(ctx context.Context, np *domain.NormalizedProduct) (*Resolution, error) {
	key := np.IdentityKey()
	d.keys.Lock(key)
	defer d.keys.Unlock(key)

	rebound := false

	_, err := d.products.GetByIdentity(ctx, np.Source, np.ExternalID)
	switch {
	case err == nil:
		// Exact match; the upsert below refreshes it.
	case errors.Is(err, ErrNotFound):
		match, fallbackErr := d.fallbackMatch(ctx, np)
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		if match != nil {
			if rebindErr := d.products.Rebind(ctx, match.ID, np.ExternalID); rebindErr != nil {
				return nil, fmt.Errorf("rebind matched product: %w", rebindErr)
			}
			rebound = true
			d.logger.Debug("resolved listing through title fallback",
				"source", np.Source,
				"external_id", np.ExternalID,
				"product_id", match.ID,
			)
		}
	default:
		return nil, fmt.Errorf("lookup product identity: %w", err)
	}

	product, created, err := d.products.Upsert(ctx, np)
	if err != nil {
		return nil, err
	}

	return &Resolution{Product: product, Created: created, Rebound: rebound}, nil
}

// fallbackMatch finds an active product in the record's source with the same
// title and a current price within the configured tolerance.
func (d *Deduplicator) fallbackMatch(ctx context.Context, np *domain.NormalizedProduct) (*domain.Product, error) {
	candidates, err := d.products.FindByTitle(ctx, np.Source, np.Title)
	if err != nil {
		return nil, fmt.Errorf("find fallback candidates: %w", err)
	}

	for _, candidate := range candidates {
		if d.withinTolerance(candidate.CurrentPrice, np.CurrentPrice) {
			return candidate, nil
		}
	}

	return nil, nil
}

func (d *Deduplicator) withinTolerance(known, observed decimal.Decimal) bool {
	if known.IsZero() {
		return observed.IsZero()
	}
	diff := observed.Sub(known).Abs()
	return diff.Div(known).LessThanOrEqual(d.tolerance)
}
