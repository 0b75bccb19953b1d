package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	domain "github.com/tiendacaps/pos-api/internal/domain"
)

type stubLookup struct {
	scan        func(ctx context.Context, code string) (domain.ScanResult, error)
	search      func(ctx context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error)
	quickSearch func(ctx context.Context, term string, limit int) ([]domain.ProductSummary, error)
	getVariant  func(ctx context.Context, variantID int64) (domain.ProductSummary, error)
}

func (s *stubLookup) Scan(ctx context.Context, code string) (domain.ScanResult, error) {
	if s.scan == nil {
		return domain.ScanResult{}, errors.New("unexpected call to Scan")
	}
	return s.scan(ctx, code)
}

func (s *stubLookup) Search(ctx context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error) {
	if s.search == nil {
		return nil, errors.New("unexpected call to Search")
	}
	return s.search(ctx, query)
}

func (s *stubLookup) QuickSearch(ctx context.Context, term string, limit int) ([]domain.ProductSummary, error) {
	if s.quickSearch == nil {
		return nil, errors.New("unexpected call to QuickSearch")
	}
	return s.quickSearch(ctx, term, limit)
}

func (s *stubLookup) GetVariant(ctx context.Context, variantID int64) (domain.ProductSummary, error) {
	if s.getVariant == nil {
		return domain.ProductSummary{}, errors.New("unexpected call to GetVariant")
	}
	return s.getVariant(ctx, variantID)
}

func TestCatalogScanCachesResults(t *testing.T) {
	calls := 0
	lookup := &stubLookup{
		scan: func(_ context.Context, code string) (domain.ScanResult, error) {
			calls++
			product := testProduct()
			return domain.ScanResult{Found: true, Product: &product}, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{Lookup: lookup, Clock: testClock})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		result, err := service.Scan(ctx, "CH-001")
		if err != nil {
			t.Fatalf("Scan returned error: %v", err)
		}
		if !result.Found || result.Product == nil || result.Product.VariantID != 42 {
			t.Fatalf("unexpected scan result: %+v", result)
		}
	}
	if calls != 1 {
		t.Errorf("expected one backend call, got %d", calls)
	}
}

func TestCatalogScanCacheExpires(t *testing.T) {
	current := testClock()
	calls := 0
	lookup := &stubLookup{
		scan: func(context.Context, string) (domain.ScanResult, error) {
			calls++
			return domain.ScanResult{Found: false, Message: "Producto no encontrado"}, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{
		Lookup:   lookup,
		Clock:    func() time.Time { return current },
		CacheTTL: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	ctx := context.Background()
	if _, err := service.Scan(ctx, "GHOST"); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	// A miss is served from cache while fresh.
	if _, err := service.Scan(ctx, "GHOST"); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cached miss, got %d backend calls", calls)
	}

	current = current.Add(11 * time.Second)
	if _, err := service.Scan(ctx, "GHOST"); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected expired entry to refetch, got %d backend calls", calls)
	}
}

func TestCatalogScanDoesNotCacheErrors(t *testing.T) {
	calls := 0
	lookup := &stubLookup{
		scan: func(context.Context, string) (domain.ScanResult, error) {
			calls++
			if calls == 1 {
				return domain.ScanResult{}, catalog.ErrUnavailable
			}
			product := testProduct()
			return domain.ScanResult{Found: true, Product: &product}, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{Lookup: lookup, Clock: testClock})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	ctx := context.Background()
	if _, err := service.Scan(ctx, "CH-001"); !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	result, err := service.Scan(ctx, "CH-001")
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if !result.Found {
		t.Errorf("retry should reach the backend, got %+v", result)
	}
}

func TestCatalogScanRejectsBlankCode(t *testing.T) {
	service, err := NewCatalogService(CatalogServiceDeps{Lookup: &stubLookup{}, Clock: testClock})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	if _, err := service.Scan(context.Background(), "  "); !errors.Is(err, catalog.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCatalogQuickSearchAppliesLimit(t *testing.T) {
	lookup := &stubLookup{
		quickSearch: func(_ context.Context, term string, limit int) ([]domain.ProductSummary, error) {
			if term != "cami" {
				t.Errorf("unexpected term: %q", term)
			}
			if limit != 5 {
				t.Errorf("unexpected limit: %d", limit)
			}
			return []domain.ProductSummary{testProduct()}, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{
		Lookup:           lookup,
		Clock:            testClock,
		QuickSearchLimit: 5,
	})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	products, err := service.QuickSearch(context.Background(), "cami")
	if err != nil {
		t.Fatalf("QuickSearch returned error: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("expected one product, got %d", len(products))
	}
}

func TestCatalogSearchForwardsQuery(t *testing.T) {
	lookup := &stubLookup{
		search: func(_ context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error) {
			if query.Category != "camisetas" || query.Size != "M" {
				t.Errorf("unexpected query: %+v", query)
			}
			return nil, nil
		},
	}
	service, err := NewCatalogService(CatalogServiceDeps{Lookup: lookup, Clock: testClock})
	if err != nil {
		t.Fatalf("NewCatalogService returned error: %v", err)
	}

	if _, err := service.Search(context.Background(), catalog.SearchQuery{Category: "camisetas", Size: "M"}); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
}
