package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/domain"
)

// PriceHistoryRepository handles database operations for price history.
// History rows are append-only; nothing ever updates or deletes them.
type PriceHistoryRepository struct {
	db *sqlx.DB
}

// NewPriceHistoryRepository creates a new price history repository.
func NewPriceHistoryRepository(db *sqlx.DB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Append inserts one observation for a product.
func (r *PriceHistoryRepository) Append(ctx context.Context, entry *domain.PriceHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO price_history (id, product_id, price, recorded_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, entry.ID, entry.ProductID, entry.Price, entry.RecordedAt).
		Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append price history: %w", err)
	}

	return nil
}

// Latest retrieves the most recent observation for a product.
func (r *PriceHistoryRepository) Latest(ctx context.Context, productID string) (*domain.PriceHistoryEntry, error) {
	var entry domain.PriceHistoryEntry
	query := `
		SELECT id, product_id, price, recorded_at, created_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &entry, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	return &entry, nil
}

// History retrieves a product's observations, newest first.
func (r *PriceHistoryRepository) History(ctx context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error) {
	var entries []domain.PriceHistoryEntry
	query := `
		SELECT id, product_id, price, recorded_at, created_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &entries, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}

	if entries == nil {
		entries = []domain.PriceHistoryEntry{}
	}

	return entries, nil
}

// LowestPrice retrieves the lowest price ever observed for a product.
func (r *PriceHistoryRepository) LowestPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	var lowest decimal.Decimal
	query := `
		SELECT price
		FROM price_history
		WHERE product_id = $1
		ORDER BY price ASC
		LIMIT 1
	`

	err := r.db.GetContext(ctx, &lowest, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get lowest price: %w", err)
	}

	return lowest, nil
}
