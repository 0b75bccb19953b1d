package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	domain "github.com/tiendacaps/pos-api/internal/domain"
)

func newProductRouter(catalogSvc *stubCatalogSvc, opts ...ProductOption) http.Handler {
	handlers := NewProductHandlers(catalogSvc, opts...)
	return NewRouter(WithProductRoutes(handlers.Routes))
}

func TestScanFound(t *testing.T) {
	catalogSvc := &stubCatalogSvc{
		scan: func(_ context.Context, code string) (domain.ScanResult, error) {
			if code != "CH-001" {
				t.Errorf("unexpected code: %q", code)
			}
			product := sampleProduct()
			return domain.ScanResult{Found: true, Product: &product}, nil
		},
	}
	router := newProductRouter(catalogSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/scan", strings.NewReader(`{"code":"CH-001"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["found"] != true {
		t.Errorf("expected found=true, got %v", body)
	}
	product, ok := body["product"].(map[string]any)
	if !ok {
		t.Fatalf("expected product object, got %v", body)
	}
	if product["variant_id"] != float64(42) {
		t.Errorf("unexpected variant id: %v", product["variant_id"])
	}
	if product["available_stock"] != float64(5) {
		t.Errorf("unexpected stock: %v", product["available_stock"])
	}
}

func TestScanNotFound(t *testing.T) {
	catalogSvc := &stubCatalogSvc{
		scan: func(context.Context, string) (domain.ScanResult, error) {
			return domain.ScanResult{Found: false, Message: "Producto no encontrado"}, nil
		},
	}
	router := newProductRouter(catalogSvc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/scan", strings.NewReader(`{"code":"GHOST"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["found"] != false {
		t.Errorf("expected found=false, got %v", body)
	}
}

func TestScanRateLimited(t *testing.T) {
	calls := 0
	catalogSvc := &stubCatalogSvc{
		scan: func(context.Context, string) (domain.ScanResult, error) {
			calls++
			return domain.ScanResult{Found: false}, nil
		},
	}
	clock := func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }
	router := newProductRouter(catalogSvc, WithScanRateLimit(1, time.Minute, clock))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/products/scan", strings.NewReader(`{"code":"CH-001"}`))
		req.RemoteAddr = "10.0.0.1:5000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		if i == 0 && rr.Code != http.StatusOK {
			t.Fatalf("first scan should pass, got %d: %s", rr.Code, rr.Body.String())
		}
		if i == 1 && rr.Code != http.StatusTooManyRequests {
			t.Fatalf("second scan should be limited, got %d: %s", rr.Code, rr.Body.String())
		}
	}
	if calls != 1 {
		t.Errorf("expected one backend scan, got %d", calls)
	}
}

func TestScanRequiresCode(t *testing.T) {
	router := newProductRouter(&stubCatalogSvc{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/scan", strings.NewReader(`{"code":""}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSearchForwardsFilters(t *testing.T) {
	catalogSvc := &stubCatalogSvc{
		search: func(_ context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error) {
			if query.Term != "chaqueta" || query.Category != "abrigos" || query.Size != "M" || query.Limit != 20 {
				t.Errorf("unexpected query: %+v", query)
			}
			return []domain.ProductSummary{sampleProduct()}, nil
		},
	}
	router := newProductRouter(catalogSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=chaqueta&category=abrigos&size=M&limit=20", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["count"] != float64(1) {
		t.Errorf("unexpected count: %v", body["count"])
	}
}

func TestSearchRejectsBadLimit(t *testing.T) {
	router := newProductRouter(&stubCatalogSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?limit=abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestQuickSearchPassesTerm(t *testing.T) {
	catalogSvc := &stubCatalogSvc{
		quickSearch: func(_ context.Context, term string) ([]domain.ProductSummary, error) {
			if term != "cami" {
				t.Errorf("unexpected term: %q", term)
			}
			return nil, nil
		},
	}
	router := newProductRouter(catalogSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/quick-search/cami", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["count"] != float64(0) {
		t.Errorf("unexpected count: %v", body["count"])
	}
}

func TestGetVariantNotFound(t *testing.T) {
	catalogSvc := &stubCatalogSvc{
		getVariant: func(context.Context, int64) (domain.ProductSummary, error) {
			return domain.ProductSummary{}, catalog.ErrProductNotFound
		},
	}
	router := newProductRouter(catalogSvc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/variants/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetVariantRejectsBadID(t *testing.T) {
	router := newProductRouter(&stubCatalogSvc{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/variants/zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}
