package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryEntry is one observation in a product's append-only price
// ledger. Entries are never mutated or deleted once written; corrections
// are new entries. RecordedAt is strictly non-decreasing per product.
type PriceHistoryEntry struct {
	ID         string          `db:"id"          json:"id"`
	ProductID  string          `db:"product_id"  json:"product_id"`
	Price      decimal.Decimal `db:"price"       json:"price"`
	RecordedAt time.Time       `db:"recorded_at" json:"recorded_at"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}
