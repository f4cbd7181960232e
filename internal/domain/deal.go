package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deal types assigned by the scorer.
const (
	// DealTypePriceDrop is a regular detected price drop.
	DealTypePriceDrop = "price_drop"

	// DealTypeHistoricLow is a price drop to or below the lowest recorded price.
	DealTypeHistoricLow = "historic_low"
)

// Deal is a detected promotional price instance for a product. A deal holds
// a non-owning reference to its product; many deals may reference one
// product over time.
type Deal struct {
	ID                 string           `db:"id"                  json:"id"`
	ProductID          string           `db:"product_id"          json:"product_id"`
	DealPrice          decimal.Decimal  `db:"deal_price"          json:"deal_price"`
	OriginalPrice      decimal.Decimal  `db:"original_price"      json:"original_price"`
	DiscountPercentage *decimal.Decimal `db:"discount_percentage" json:"discount_percentage,omitempty"`
	AIScore            float64          `db:"ai_score"            json:"ai_score"`
	AIReasoning        string           `db:"ai_reasoning"        json:"ai_reasoning"`
	DealType           string           `db:"deal_type"           json:"deal_type"`
	StartsAt           time.Time        `db:"starts_at"           json:"starts_at"`
	ExpiresAt          *time.Time       `db:"expires_at"          json:"expires_at,omitempty"`
	IsActive           bool             `db:"is_active"           json:"is_active"`
	CreatedAt          time.Time        `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at"          json:"updated_at"`
}

// IsExpired reports whether the deal's validity window has passed at the
// given time. Deals without an expiry never expire on their own.
func (d *Deal) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && now.After(*d.ExpiresAt)
}
