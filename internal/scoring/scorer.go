// Package scoring evaluates price observations against product history and
// produces scored deals. Scoring is a pure function of its inputs: the same
// product, price, history, and observation time always yield the same deal,
// so identical scrape runs never flap deal rankings.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/domain"
	"github.com/dealradar/dealradar/internal/pricehistory"
)

// Composite score weights. Discount depth dominates, historical rank second,
// recency of the observation third.
const (
	weightDiscount       = 0.45
	weightAttractiveness = 0.35
	weightFreshness      = 0.20
)

const (
	// neutralAttractiveness is used when the history is too short to rank
	// against.
	neutralAttractiveness = 50.0

	// minHistoryForRank is the minimum number of observations required
	// before percentile ranking is meaningful.
	minHistoryForRank = 2

	// freshnessHalfLife controls the decay of the freshness component.
	freshnessHalfLife = 24 * time.Hour

	scoreMin = 0.0
	scoreMax = 100.0
)

var oneHundred = decimal.NewFromInt(100)

// Scorer turns qualifying price drops into scored deals.
type Scorer struct {
	dealTTL time.Duration
}

// NewScorer creates a scorer. dealTTL bounds a deal's validity window; zero
// disables expiry.
func NewScorer(dealTTL time.Duration) *Scorer {
	return &Scorer{dealTTL: dealTTL}
}

// Score evaluates one price observation. history is the product's recorded
// observations, newest first. It returns nil when the observation does not
// qualify as a deal: no original price, or no positive discount against it.
func (s *Scorer) Score(
	product *domain.Product,
	currentPrice decimal.Decimal,
	originalPrice *decimal.Decimal,
	history []domain.PriceHistoryEntry,
	now time.Time,
) *domain.NormalizedDeal {
	if originalPrice == nil || !originalPrice.GreaterThan(decimal.Zero) {
		return nil
	}

	discount := DiscountPercentage(currentPrice, *originalPrice)
	if !discount.GreaterThan(decimal.Zero) {
		return nil
	}

	discountPart, _ := discount.Float64()
	attractiveness := s.attractiveness(history, currentPrice)
	freshness := s.freshness(history, now)

	score := weightDiscount*discountPart +
		weightAttractiveness*attractiveness +
		weightFreshness*freshness
	score = math.Min(scoreMax, math.Max(scoreMin, score))

	dealType := domain.DealTypePriceDrop
	if low, ok := pricehistory.HistoricLow(history); ok && currentPrice.LessThanOrEqual(low) {
		dealType = domain.DealTypeHistoricLow
	}

	deal := &domain.NormalizedDeal{
		DealPrice:          currentPrice,
		OriginalPrice:      *originalPrice,
		DiscountPercentage: &discount,
		AIScore:            score,
		AIReasoning:        s.reasoning(dealType, discount, discountPart, attractiveness, freshness, len(history)),
		DealType:           dealType,
		StartsAt:           now,
	}
	if s.dealTTL > 0 {
		expires := now.Add(s.dealTTL)
		deal.ExpiresAt = &expires
	}

	return deal
}

// DiscountPercentage computes (original - current) / original * 100 rounded
// to two decimal places. The caller guarantees original is positive.
func DiscountPercentage(current, original decimal.Decimal) decimal.Decimal {
	return original.Sub(current).Div(original).Mul(oneHundred).Round(2)
}

// attractiveness ranks the price against the historical distribution: the
// lower the price sits, the higher the component. Short histories rank at
// the neutral midpoint.
func (s *Scorer) attractiveness(history []domain.PriceHistoryEntry, price decimal.Decimal) float64 {
	if len(history) < minHistoryForRank {
		return neutralAttractiveness
	}
	return scoreMax - pricehistory.Percentile(history, price)
}

// freshness decays with the age of the newest observation relative to now.
// A just-observed price scores 100; each half-life halves the component.
func (s *Scorer) freshness(history []domain.PriceHistoryEntry, now time.Time) float64 {
	if len(history) == 0 {
		return scoreMax
	}

	newest := history[0].RecordedAt
	for _, entry := range history[1:] {
		if entry.RecordedAt.After(newest) {
			newest = entry.RecordedAt
		}
	}

	age := now.Sub(newest)
	if age <= 0 {
		return scoreMax
	}

	return scoreMax * math.Exp2(-age.Hours()/freshnessHalfLife.Hours())
}

// reasoning renders the templated rationale naming the dominant weighted
// factor. The output depends only on the scoring inputs.
func (s *Scorer) reasoning(
	dealType string,
	discount decimal.Decimal,
	discountPart, attractiveness, freshness float64,
	historyLen int,
) string {
	if dealType == domain.DealTypeHistoricLow {
		return fmt.Sprintf("Lowest price recorded across %d observations, %s%% below the original price", historyLen, discount.String())
	}

	weighted := map[string]float64{
		"discount":       weightDiscount * discountPart,
		"attractiveness": weightAttractiveness * attractiveness,
		"freshness":      weightFreshness * freshness,
	}

	dominant := "discount"
	for _, factor := range []string{"attractiveness", "freshness"} {
		if weighted[factor] > weighted[dominant] {
			dominant = factor
		}
	}

	switch dominant {
	case "attractiveness":
		return fmt.Sprintf("Price sits in the lower %.0f%% of recorded history with a %s%% discount", attractiveness, discount.String())
	case "freshness":
		return fmt.Sprintf("Recently observed price drop of %s%% off the original price", discount.String())
	default:
		return fmt.Sprintf("Discount of %s%% off the original price", discount.String())
	}
}
