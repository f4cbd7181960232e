package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/domain"
)

// productColumns lists the columns returned by product SELECT queries.
var productColumns = []string{
	"id", "source", "external_id", "title", "brand", "currency", "current_price",
	"original_price", "image_url", "product_url", "category", "is_active",
	"last_scraped_at", "created_at", "updated_at",
}

func newProductRepo(t *testing.T) (*catalog.ProductRepository, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	repo := catalog.NewProductRepository(db)

	return repo, mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func productRow(id string, created bool, observed time.Time) *sqlmock.Rows {
	columns := append(append([]string{}, productColumns...), "created")
	return sqlmock.NewRows(columns).AddRow(
		id, "example-shop", "SKU-1", "Blue Kettle", nil, "USD", "79.99",
		nil, nil, "https://shop.example.com/p/sku-1", nil, true,
		observed, observed, observed, created,
	)
}

func TestProductRepository_Upsert_Insert(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	observed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO products").
		WithArgs(
			sqlmock.AnyArg(), // generated uuid
			"example-shop",
			"SKU-1",
			"Blue Kettle",
			nil,
			"USD",
			decimal.RequireFromString("79.99"),
			nil,
			nil,
			"https://shop.example.com/p/sku-1",
			observed,
		).
		WillReturnRows(productRow("prod-1", true, observed))

	np := &domain.NormalizedProduct{
		Source:       "example-shop",
		ExternalID:   "SKU-1",
		Title:        "Blue Kettle",
		Currency:     "USD",
		CurrentPrice: decimal.RequireFromString("79.99"),
		ProductURL:   "https://shop.example.com/p/sku-1",
		ObservedAt:   observed,
	}

	product, created, err := repo.Upsert(context.Background(), np)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !created {
		t.Error("Upsert() created = false, want true")
	}
	if product.ID != "prod-1" {
		t.Errorf("Upsert() product ID = %q, want %q", product.ID, "prod-1")
	}

	expectationsMet(t, mock)
}

func TestProductRepository_Upsert_ConflictUpdates(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	observed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// xmax is nonzero for updated tuples, so created comes back false.
	mock.ExpectQuery("INSERT INTO products").
		WillReturnRows(productRow("prod-1", false, observed))

	np := &domain.NormalizedProduct{
		Source:       "example-shop",
		ExternalID:   "SKU-1",
		Title:        "Blue Kettle",
		Currency:     "USD",
		CurrentPrice: decimal.RequireFromString("79.99"),
		ProductURL:   "https://shop.example.com/p/sku-1",
		ObservedAt:   observed,
	}

	product, created, err := repo.Upsert(context.Background(), np)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if created {
		t.Error("Upsert() created = true, want false")
	}
	if product.ID != "prod-1" {
		t.Errorf("Upsert() product ID = %q, want %q", product.ID, "prod-1")
	}

	expectationsMet(t, mock)
}

func TestProductRepository_GetByIdentity_NotFound(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM products").
		WithArgs("example-shop", "missing").
		WillReturnRows(sqlmock.NewRows(productColumns))

	_, err := repo.GetByIdentity(context.Background(), "example-shop", "missing")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("GetByIdentity() error = %v, want ErrNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestProductRepository_Rebind(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE products").
		WithArgs("SKU-2", "prod-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Rebind(context.Background(), "prod-1", "SKU-2"); err != nil {
		t.Fatalf("Rebind() error = %v", err)
	}

	expectationsMet(t, mock)
}

func TestProductRepository_Rebind_NotFound(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE products").
		WithArgs("SKU-2", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Rebind(context.Background(), "missing", "SKU-2")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("Rebind() error = %v, want ErrNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestProductRepository_DeactivateStale(t *testing.T) {
	repo, mock, cleanup := newProductRepo(t)
	defer cleanup()

	cutoff := time.Date(2025, 5, 29, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE products").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	changed, err := repo.DeactivateStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeactivateStale() error = %v", err)
	}
	if changed != 3 {
		t.Errorf("DeactivateStale() changed = %d, want 3", changed)
	}

	expectationsMet(t, mock)
}
