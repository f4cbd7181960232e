package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dealradar/dealradar/internal/domain"
)

// productColumns lists the columns returned by product SELECT queries.
const productColumns = `id, source, external_id, title, brand, currency, current_price,
	original_price, image_url, product_url, category, is_active,
	last_scraped_at, created_at, updated_at`

// ProductRepository handles database operations for products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// upsertRow carries the product plus the insert-vs-update flag derived from
// the row's system columns.
type upsertRow struct {
	domain.Product
	Created bool `db:"created"`
}

// Upsert inserts or refreshes a product keyed on (source, external_id).
// On conflict the existing row is updated and its identity preserved. The
// returned flag is true only when a new row was inserted; xmax is zero for
// freshly inserted tuples.
func (r *ProductRepository) Upsert(ctx context.Context, np *domain.NormalizedProduct) (*domain.Product, bool, error) {
	query := `
		INSERT INTO products (
			id, source, external_id, title, brand, currency, current_price,
			original_price, image_url, product_url, is_active, last_scraped_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11)
		ON CONFLICT (source, external_id) DO UPDATE SET
			title           = EXCLUDED.title,
			brand           = EXCLUDED.brand,
			currency        = EXCLUDED.currency,
			current_price   = EXCLUDED.current_price,
			original_price  = EXCLUDED.original_price,
			image_url       = EXCLUDED.image_url,
			product_url     = EXCLUDED.product_url,
			is_active       = TRUE,
			last_scraped_at = EXCLUDED.last_scraped_at,
			updated_at      = NOW()
		RETURNING ` + productColumns + `, (xmax = 0) AS created
	`

	var row upsertRow
	err := r.db.GetContext(
		ctx,
		&row,
		query,
		uuid.New().String(),
		np.Source,
		np.ExternalID,
		np.Title,
		np.Brand,
		np.Currency,
		np.CurrentPrice,
		np.OriginalPrice,
		np.ImageURL,
		np.ProductURL,
		np.ObservedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert product: %w", err)
	}

	return &row.Product, row.Created, nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	err := r.db.GetContext(ctx, &product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// GetByIdentity retrieves a product by its (source, external_id) pair.
func (r *ProductRepository) GetByIdentity(ctx context.Context, source, externalID string) (*domain.Product, error) {
	var product domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE source = $1 AND external_id = $2`

	err := r.db.GetContext(ctx, &product, query, source, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by identity: %w", err)
	}

	return &product, nil
}

// FindByTitle retrieves active products in a source with an exact title match.
func (r *ProductRepository) FindByTitle(ctx context.Context, source, title string) ([]*domain.Product, error) {
	var products []*domain.Product
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE source = $1 AND title = $2 AND is_active = TRUE
		ORDER BY last_scraped_at DESC
	`

	err := r.db.SelectContext(ctx, &products, query, source, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find products by title: %w", err)
	}

	if products == nil {
		products = []*domain.Product{}
	}

	return products, nil
}

// Rebind rewrites a product's external ID.
func (r *ProductRepository) Rebind(ctx context.Context, id, externalID string) error {
	query := `UPDATE products SET external_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, externalID, id)
	if err != nil {
		return fmt.Errorf("failed to rebind product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeactivateStale marks active products not scraped since the cutoff
// inactive and returns how many rows changed.
func (r *ProductRepository) DeactivateStale(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE products
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active = TRUE AND last_scraped_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale products: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}
