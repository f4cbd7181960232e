// Package normalize maps any adapter's intermediate listing form into the
// canonical normalized shape. Every function here is pure: the same input
// always yields an identical normalized record, which is what makes
// re-scrapes idempotent.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/adapter"
	"github.com/dealradar/dealradar/internal/domain"
)

// Validation errors.
var (
	// ErrMissingExternalID is returned when a listing carries no identifier.
	ErrMissingExternalID = errors.New("listing has no external id")

	// ErrMissingTitle is returned when a listing carries no title.
	ErrMissingTitle = errors.New("listing has no title")

	// ErrMissingProductURL is returned when a listing carries no product URL.
	ErrMissingProductURL = errors.New("listing has no product url")
)

// Product converts an intermediate listing into the canonical normalized
// record. observedAt is the scrape observation time and is passed through
// untouched so the mapping itself stays deterministic.
func Product(source string, listing adapter.Listing, observedAt time.Time) (domain.NormalizedProduct, error) {
	externalID := strings.TrimSpace(listing.ExternalID)
	if externalID == "" {
		return domain.NormalizedProduct{}, ErrMissingExternalID
	}

	title := Title(listing.Title)
	if title == "" {
		return domain.NormalizedProduct{}, ErrMissingTitle
	}

	productURL := strings.TrimSpace(listing.ProductURL)
	if productURL == "" {
		return domain.NormalizedProduct{}, ErrMissingProductURL
	}

	price, err := Price(listing.Price)
	if err != nil {
		return domain.NormalizedProduct{}, fmt.Errorf("current price: %w", err)
	}

	np := domain.NormalizedProduct{
		Source:       source,
		ExternalID:   externalID,
		Title:        title,
		Brand:        optional(Title(listing.Brand)),
		Currency:     currency(listing.Currency),
		CurrentPrice: price,
		ImageURL:     optional(strings.TrimSpace(listing.ImageURL)),
		ProductURL:   productURL,
		ObservedAt:   observedAt,
	}

	// A missing or unparsable original price is not an error; it only
	// means no discount can be derived.
	if raw := strings.TrimSpace(listing.OriginalPrice); raw != "" {
		if original, origErr := Price(raw); origErr == nil && original.GreaterThan(decimal.Zero) {
			np.OriginalPrice = &original
		}
	}

	return np, nil
}

// Title strips markup, HTML entities, and excess whitespace from a title
// or description fragment.
func Title(raw string) string {
	clean := sanitize.HTML(raw)
	clean = strings.Join(strings.Fields(clean), " ")
	return strings.TrimSpace(clean)
}

// currency canonicalizes a currency code, defaulting to USD.
func currency(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "USD"
	}
	return code
}

// optional maps an empty string to nil so it persists as NULL rather than
// an empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
