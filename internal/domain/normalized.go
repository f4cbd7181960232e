package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedProduct is the canonical, source-independent shape a raw listing
// is reduced to. It is transient: it is either merged into an existing
// Product or becomes the seed for a new one.
type NormalizedProduct struct {
	Source        string           `json:"source"`
	ExternalID    string           `json:"external_id"`
	Title         string           `json:"title"`
	Brand         *string          `json:"brand,omitempty"`
	Currency      string           `json:"currency"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	ImageURL      *string          `json:"image_url,omitempty"`
	ProductURL    string           `json:"product_url"`
	ObservedAt    time.Time        `json:"observed_at"`
}

// IdentityKey returns the catalog identity key for the normalized record.
func (n *NormalizedProduct) IdentityKey() string {
	return n.Source + "|" + n.ExternalID
}

// NormalizedDeal is the scorer's output attached to a product before
// persistence. Same shape as Deal's scoring fields, not yet assigned an
// identity.
type NormalizedDeal struct {
	DealPrice          decimal.Decimal  `json:"deal_price"`
	OriginalPrice      decimal.Decimal  `json:"original_price"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	AIScore            float64          `json:"ai_score"`
	AIReasoning        string           `json:"ai_reasoning"`
	DealType           string           `json:"deal_type"`
	StartsAt           time.Time        `json:"starts_at"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
}
