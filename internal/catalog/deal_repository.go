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

// dealColumns lists the columns returned by deal SELECT queries.
const dealColumns = `id, product_id, deal_price, original_price, discount_percentage,
	ai_score, ai_reasoning, deal_type, starts_at, expires_at, is_active,
	created_at, updated_at`

// DealRepository handles database operations for deals.
type DealRepository struct {
	db *sqlx.DB
}

// NewDealRepository creates a new deal repository.
func NewDealRepository(db *sqlx.DB) *DealRepository {
	return &DealRepository{db: db}
}

// Upsert replaces the product's active deal or creates one. A partial unique
// index on (product_id) WHERE is_active enforces at most one active deal per
// product; the conflict path refreshes the existing deal in place.
func (r *DealRepository) Upsert(ctx context.Context, deal *domain.Deal) error {
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}

	query := `
		INSERT INTO deals (
			id, product_id, deal_price, original_price, discount_percentage,
			ai_score, ai_reasoning, deal_type, starts_at, expires_at, is_active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
		ON CONFLICT (product_id) WHERE is_active DO UPDATE SET
			deal_price          = EXCLUDED.deal_price,
			original_price      = EXCLUDED.original_price,
			discount_percentage = EXCLUDED.discount_percentage,
			ai_score            = EXCLUDED.ai_score,
			ai_reasoning        = EXCLUDED.ai_reasoning,
			deal_type           = EXCLUDED.deal_type,
			expires_at          = EXCLUDED.expires_at,
			updated_at          = NOW()
		RETURNING id, starts_at, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		deal.ID,
		deal.ProductID,
		deal.DealPrice,
		deal.OriginalPrice,
		deal.DiscountPercentage,
		deal.AIScore,
		deal.AIReasoning,
		deal.DealType,
		deal.StartsAt,
		deal.ExpiresAt,
	).Scan(&deal.ID, &deal.StartsAt, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert deal: %w", err)
	}

	deal.IsActive = true
	return nil
}

// Active retrieves the product's active deal, if any.
func (r *DealRepository) Active(ctx context.Context, productID string) (*domain.Deal, error) {
	var deal domain.Deal
	query := `SELECT ` + dealColumns + ` FROM deals WHERE product_id = $1 AND is_active = TRUE`

	err := r.db.GetContext(ctx, &deal, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active deal: %w", err)
	}

	return &deal, nil
}

// Deactivate retires the product's active deal. Deactivating a product with
// no active deal is a no-op.
func (r *DealRepository) Deactivate(ctx context.Context, productID string) error {
	query := `
		UPDATE deals
		SET is_active = FALSE, updated_at = NOW()
		WHERE product_id = $1 AND is_active = TRUE
	`

	if _, err := r.db.ExecContext(ctx, query, productID); err != nil {
		return fmt.Errorf("failed to deactivate deal: %w", err)
	}

	return nil
}

// DeactivateExpired retires active deals whose expiry has passed and returns
// how many rows changed.
func (r *DealRepository) DeactivateExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE deals
		SET is_active = FALSE, updated_at = NOW()
		WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at < $1
	`

	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired deals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// Top retrieves active deals joined with product fields, highest score first.
func (r *DealRepository) Top(ctx context.Context, limit int) ([]DealListing, error) {
	var listings []DealListing
	query := `
		SELECT d.id, d.product_id, d.deal_price, d.original_price,
		       d.discount_percentage, d.ai_score, d.ai_reasoning, d.deal_type,
		       d.starts_at, d.expires_at, d.is_active, d.created_at, d.updated_at,
		       p.title AS product_title, p.source, p.currency
		FROM deals d
		JOIN products p ON p.id = d.product_id
		WHERE d.is_active = TRUE
		ORDER BY d.ai_score DESC, d.updated_at DESC
		LIMIT $1
	`

	err := r.db.SelectContext(ctx, &listings, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top deals: %w", err)
	}

	if listings == nil {
		listings = []DealListing{}
	}

	return listings, nil
}
