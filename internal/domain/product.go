// Package domain provides domain models used across the application.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a canonical catalog entry, deduplicated across scrape cycles.
// Identity is the (source, external_id) pair; a product is never deleted,
// only deactivated when its source stops reporting it.
type Product struct {
	ID            string           `db:"id"              json:"id"`
	Source        string           `db:"source"          json:"source"`
	ExternalID    string           `db:"external_id"     json:"external_id"`
	Title         string           `db:"title"           json:"title"`
	Brand         *string          `db:"brand"           json:"brand,omitempty"`
	Currency      string           `db:"currency"        json:"currency"`
	CurrentPrice  decimal.Decimal  `db:"current_price"   json:"current_price"`
	OriginalPrice *decimal.Decimal `db:"original_price"  json:"original_price,omitempty"`
	ImageURL      *string          `db:"image_url"       json:"image_url,omitempty"`
	ProductURL    string           `db:"product_url"     json:"product_url"`
	Category      *string          `db:"category"        json:"category,omitempty"`
	IsActive      bool             `db:"is_active"       json:"is_active"`
	LastScrapedAt time.Time        `db:"last_scraped_at" json:"last_scraped_at"`
	CreatedAt     time.Time        `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"      json:"updated_at"`
}

// IdentityKey returns the catalog identity key for the product.
func (p *Product) IdentityKey() string {
	return p.Source + "|" + p.ExternalID
}
