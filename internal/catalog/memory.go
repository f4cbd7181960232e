package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/domain"
)

// Memory is an in-memory Gateway with the same observable behavior as the
// Postgres store. It backs tests and dry runs; it is safe for concurrent use.
type Memory struct {
	state *memoryState

	products *memoryProducts
	prices   *memoryPrices
	deals    *memoryDeals
	jobs     *memoryJobs
}

type memoryState struct {
	mu sync.Mutex

	products map[string]*domain.Product // by id
	identity map[string]string          // identity key -> id
	history  map[string][]domain.PriceHistoryEntry
	deals    map[string]*domain.Deal // active deal by product id
	retired  []*domain.Deal
	jobs     map[string]*domain.ScraperJob
	jobOrder []string
}

// NewMemory creates an empty in-memory Gateway.
func NewMemory() *Memory {
	state := &memoryState{
		products: make(map[string]*domain.Product),
		identity: make(map[string]string),
		history:  make(map[string][]domain.PriceHistoryEntry),
		deals:    make(map[string]*domain.Deal),
		jobs:     make(map[string]*domain.ScraperJob),
	}
	return &Memory{
		state:    state,
		products: &memoryProducts{state: state},
		prices:   &memoryPrices{state: state},
		deals:    &memoryDeals{state: state},
		jobs:     &memoryJobs{state: state},
	}
}

// Products returns the product store.
func (m *Memory) Products() ProductStore { return m.products }

// Prices returns the price history store.
func (m *Memory) Prices() PriceStore { return m.prices }

// Deals returns the deal store.
func (m *Memory) Deals() DealStore { return m.deals }

// Jobs returns the job store.
func (m *Memory) Jobs() JobStore { return m.jobs }

type memoryProducts struct {
	state *memoryState
}

func (s *memoryProducts) Upsert(_ context.Context, np *domain.NormalizedProduct) (*domain.Product, bool, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	now := time.Now().UTC()

	if id, ok := s.state.identity[np.IdentityKey()]; ok {
		existing := s.state.products[id]
		existing.Title = np.Title
		existing.Brand = np.Brand
		existing.Currency = np.Currency
		existing.CurrentPrice = np.CurrentPrice
		existing.OriginalPrice = np.OriginalPrice
		existing.ImageURL = np.ImageURL
		existing.ProductURL = np.ProductURL
		existing.IsActive = true
		existing.LastScrapedAt = np.ObservedAt
		existing.UpdatedAt = now

		clone := *existing
		return &clone, false, nil
	}

	product := &domain.Product{
		ID:            uuid.New().String(),
		Source:        np.Source,
		ExternalID:    np.ExternalID,
		Title:         np.Title,
		Brand:         np.Brand,
		Currency:      np.Currency,
		CurrentPrice:  np.CurrentPrice,
		OriginalPrice: np.OriginalPrice,
		ImageURL:      np.ImageURL,
		ProductURL:    np.ProductURL,
		IsActive:      true,
		LastScrapedAt: np.ObservedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.state.products[product.ID] = product
	s.state.identity[product.IdentityKey()] = product.ID

	clone := *product
	return &clone, true, nil
}

func (s *memoryProducts) GetByID(_ context.Context, id string) (*domain.Product, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	product, ok := s.state.products[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *product
	return &clone, nil
}

func (s *memoryProducts) GetByIdentity(_ context.Context, source, externalID string) (*domain.Product, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	id, ok := s.state.identity[source+"|"+externalID]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *s.state.products[id]
	return &clone, nil
}

func (s *memoryProducts) FindByTitle(_ context.Context, source, title string) ([]*domain.Product, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	matches := []*domain.Product{}
	for _, product := range s.state.products {
		if product.Source == source && product.Title == title && product.IsActive {
			clone := *product
			matches = append(matches, &clone)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastScrapedAt.After(matches[j].LastScrapedAt)
	})

	return matches, nil
}

func (s *memoryProducts) Rebind(_ context.Context, id, externalID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	product, ok := s.state.products[id]
	if !ok {
		return ErrNotFound
	}

	delete(s.state.identity, product.IdentityKey())
	product.ExternalID = externalID
	product.UpdatedAt = time.Now().UTC()
	s.state.identity[product.IdentityKey()] = product.ID

	return nil
}

func (s *memoryProducts) DeactivateStale(_ context.Context, cutoff time.Time) (int, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	changed := 0
	for _, product := range s.state.products {
		if product.IsActive && product.LastScrapedAt.Before(cutoff) {
			product.IsActive = false
			product.UpdatedAt = time.Now().UTC()
			changed++
		}
	}

	return changed, nil
}

type memoryPrices struct {
	state *memoryState
}

func (s *memoryPrices) Append(_ context.Context, entry *domain.PriceHistoryEntry) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()
	s.state.history[entry.ProductID] = append(s.state.history[entry.ProductID], *entry)

	return nil
}

func (s *memoryPrices) Latest(_ context.Context, productID string) (*domain.PriceHistoryEntry, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	entries := s.state.history[productID]
	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	latest := entries[0]
	for _, entry := range entries[1:] {
		if entry.RecordedAt.After(latest.RecordedAt) {
			latest = entry
		}
	}

	return &latest, nil
}

func (s *memoryPrices) History(_ context.Context, productID string, limit int) ([]domain.PriceHistoryEntry, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	entries := append([]domain.PriceHistoryEntry(nil), s.state.history[productID]...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RecordedAt.After(entries[j].RecordedAt)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func (s *memoryPrices) LowestPrice(_ context.Context, productID string) (decimal.Decimal, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	entries := s.state.history[productID]
	if len(entries) == 0 {
		return decimal.Zero, ErrNotFound
	}

	lowest := entries[0].Price
	for _, entry := range entries[1:] {
		if entry.Price.LessThan(lowest) {
			lowest = entry.Price
		}
	}

	return lowest, nil
}

type memoryDeals struct {
	state *memoryState
}

func (s *memoryDeals) Upsert(_ context.Context, deal *domain.Deal) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	now := time.Now().UTC()

	if existing, ok := s.state.deals[deal.ProductID]; ok {
		existing.DealPrice = deal.DealPrice
		existing.OriginalPrice = deal.OriginalPrice
		existing.DiscountPercentage = deal.DiscountPercentage
		existing.AIScore = deal.AIScore
		existing.AIReasoning = deal.AIReasoning
		existing.DealType = deal.DealType
		existing.ExpiresAt = deal.ExpiresAt
		existing.UpdatedAt = now

		*deal = *existing
		return nil
	}

	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}
	deal.IsActive = true
	deal.CreatedAt = now
	deal.UpdatedAt = now

	clone := *deal
	s.state.deals[deal.ProductID] = &clone

	return nil
}

func (s *memoryDeals) Active(_ context.Context, productID string) (*domain.Deal, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	deal, ok := s.state.deals[productID]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *deal
	return &clone, nil
}

func (s *memoryDeals) Deactivate(_ context.Context, productID string) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	deal, ok := s.state.deals[productID]
	if !ok {
		return nil
	}

	deal.IsActive = false
	deal.UpdatedAt = time.Now().UTC()
	s.state.retired = append(s.state.retired, deal)
	delete(s.state.deals, productID)

	return nil
}

func (s *memoryDeals) DeactivateExpired(_ context.Context, now time.Time) (int, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	changed := 0
	for productID, deal := range s.state.deals {
		if deal.IsExpired(now) {
			deal.IsActive = false
			deal.UpdatedAt = time.Now().UTC()
			s.state.retired = append(s.state.retired, deal)
			delete(s.state.deals, productID)
			changed++
		}
	}

	return changed, nil
}

func (s *memoryDeals) Top(_ context.Context, limit int) ([]DealListing, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	listings := []DealListing{}
	for productID, deal := range s.state.deals {
		listing := DealListing{Deal: *deal}
		if product, ok := s.state.products[productID]; ok {
			listing.ProductTitle = product.Title
			listing.Source = product.Source
			listing.Currency = product.Currency
		}
		listings = append(listings, listing)
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].AIScore > listings[j].AIScore
	})

	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}

	return listings, nil
}

type memoryJobs struct {
	state *memoryState
}

func (s *memoryJobs) Create(_ context.Context, job *domain.ScraperJob) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	clone := *job
	s.state.jobs[job.ID] = &clone
	s.state.jobOrder = append(s.state.jobOrder, job.ID)

	return nil
}

func (s *memoryJobs) Update(_ context.Context, job *domain.ScraperJob) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if _, ok := s.state.jobs[job.ID]; !ok {
		return ErrNotFound
	}

	job.UpdatedAt = time.Now().UTC()
	clone := *job
	s.state.jobs[job.ID] = &clone

	return nil
}

func (s *memoryJobs) GetByID(_ context.Context, id string) (*domain.ScraperJob, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	job, ok := s.state.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *job
	return &clone, nil
}

func (s *memoryJobs) ListRecent(_ context.Context, source string, limit int) ([]*domain.ScraperJob, error) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	jobs := []*domain.ScraperJob{}
	for i := len(s.state.jobOrder) - 1; i >= 0; i-- {
		job := s.state.jobs[s.state.jobOrder[i]]
		if source != "" && job.Source != source {
			continue
		}
		clone := *job
		jobs = append(jobs, &clone)
		if limit > 0 && len(jobs) == limit {
			break
		}
	}

	return jobs, nil
}
