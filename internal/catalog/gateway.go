// Package catalog provides persistence for products, price history, deals,
// and scraper jobs, plus the deduplication logic that resolves incoming
// normalized records to canonical products.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ProductStore defines the contract for product data access.
type ProductStore interface {
	// Upsert inserts or refreshes a product keyed on (source, external_id).
	// The returned flag is true when a new row was created.
	Upsert(ctx context.Context, np *domain.NormalizedProduct) (*domain.Product, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIdentity(ctx context.Context, source, externalID string) (*domain.Product, error)

	// FindByTitle returns active products in a source with an exact title
	// match, used as the dedup fallback when external IDs drift.
	FindByTitle(ctx context.Context, source, title string) ([]*domain.Product, error)

	// Rebind rewrites a product's external ID after a fallback match, so
	// future scrapes resolve on the exact identity path.
	Rebind(ctx context.Context, id, externalID string) error

	// DeactivateStale marks products unseen since the cutoff inactive and
	// returns how many rows changed.
	DeactivateStale(ctx context.Context, cutoff time.Time) (int, error)
}

// PriceStore defines the contract for price history data access.
type PriceStore interface {
	Append(ctx context.Context, entry *domain.PriceHistoryEntry) error
	Latest(ctx context.Context, productID string) (*domain.PriceHistoryEntry, error)
	History(ctx context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error)
	LowestPrice(ctx context.Context, productID string) (decimal.Decimal, error)
}

// DealListing is a deal joined with the identifying fields of its product,
// used by read paths that present deals to an operator.
type DealListing struct {
	domain.Deal
	ProductTitle string `db:"product_title" json:"product_title"`
	Source       string `db:"source"        json:"source"`
	Currency     string `db:"currency"      json:"currency"`
}

// DealStore defines the contract for deal data access.
type DealStore interface {
	// Upsert replaces the product's active deal or creates one. At most one
	// active deal exists per product.
	Upsert(ctx context.Context, deal *domain.Deal) error
	Active(ctx context.Context, productID string) (*domain.Deal, error)
	Deactivate(ctx context.Context, productID string) error

	// DeactivateExpired retires active deals whose expiry has passed and
	// returns how many rows changed.
	DeactivateExpired(ctx context.Context, now time.Time) (int, error)
	Top(ctx context.Context, limit int) ([]DealListing, error)
}

// JobStore defines the contract for scraper job data access.
type JobStore interface {
	Create(ctx context.Context, job *domain.ScraperJob) error
	Update(ctx context.Context, job *domain.ScraperJob) error
	GetByID(ctx context.Context, id string) (*domain.ScraperJob, error)
	ListRecent(ctx context.Context, source string, limit int) ([]*domain.ScraperJob, error)
}

// Gateway bundles all catalog stores behind one dependency.
type Gateway interface {
	Products() ProductStore
	Prices() PriceStore
	Deals() DealStore
	Jobs() JobStore
}

// Store is the Postgres-backed Gateway.
type Store struct {
	products *ProductRepository
	prices   *PriceHistoryRepository
	deals    *DealRepository
	jobs     *JobRepository
}

// Products returns the product store.
func (s *Store) Products() ProductStore { return s.products }

// Prices returns the price history store.
func (s *Store) Prices() PriceStore { return s.prices }

// Deals returns the deal store.
func (s *Store) Deals() DealStore { return s.deals }

// Jobs returns the job store.
func (s *Store) Jobs() JobStore { return s.jobs }
