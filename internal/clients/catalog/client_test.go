package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScanFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/products/scan" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed decoding scan body: %v", err)
		}
		if body.Code != "CH-001-M-NEG" {
			t.Errorf("unexpected code: %s", body.Code)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found": true,
			"product": map[string]any{
				"variant_id":      42,
				"product_name":    "Chaqueta de cuero",
				"sku":             "CH-001",
				"size":            "M",
				"color":           "Negro",
				"price":           85000,
				"available_stock": 3,
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	result, err := client.Scan(context.Background(), "CH-001-M-NEG")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if !result.Found {
		t.Fatal("expected scan to report found")
	}
	if result.Product == nil {
		t.Fatal("expected product payload")
	}
	if result.Product.VariantID != 42 {
		t.Errorf("unexpected variant id: %d", result.Product.VariantID)
	}
	if result.Product.Price != 85000 {
		t.Errorf("unexpected price: %d", result.Product.Price)
	}
	if result.Product.AvailableStock != 3 {
		t.Errorf("unexpected stock: %d", result.Product.AvailableStock)
	}
}

func TestScanNotFoundMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"found":   false,
			"message": "Producto no encontrado",
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	result, err := client.Scan(context.Background(), "NOPE-123")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Found {
		t.Fatal("expected scan to report not found")
	}
	if result.Product != nil {
		t.Fatal("expected no product payload")
	}
	if result.Message != "Producto no encontrado" {
		t.Errorf("unexpected message: %s", result.Message)
	}
}

func TestScanEmptyCode(t *testing.T) {
	client, err := NewClient("http://catalog.local")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.Scan(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSearchBuildsQueryParams(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"variant_id": 1, "product_name": "Gorra azul", "sku": "GO-002", "price": 25000, "available_stock": 10},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	products, err := client.Search(context.Background(), SearchQuery{Term: "gorra", Color: "Azul", Limit: 5})
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected one product, got %d", len(products))
	}
	if products[0].Name != "Gorra azul" {
		t.Errorf("unexpected product name: %s", products[0].Name)
	}
	for _, expected := range []string{"q=gorra", "color=Azul", "limit=5"} {
		if !containsParam(gotQuery, expected) {
			t.Errorf("expected query to contain %s, got %s", expected, gotQuery)
		}
	}
}

func TestQuickSearchShortTermSkipsBackend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("backend should not be called for short terms")
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	products, err := client.QuickSearch(context.Background(), "g", 10)
	if err != nil {
		t.Fatalf("QuickSearch returned error: %v", err)
	}
	if products != nil {
		t.Fatalf("expected no results, got %v", products)
	}
}

func TestGetVariantNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.GetVariant(context.Background(), 999); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestBackendFailureMapsToUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.Scan(context.Background(), "CH-001-M-NEG"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func containsParam(query, param string) bool {
	for _, part := range splitQuery(query) {
		if part == param {
			return true
		}
	}
	return false
}

func splitQuery(query string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(query); i++ {
		if i == len(query) || query[i] == '&' {
			parts = append(parts, query[start:i])
			start = i + 1
		}
	}
	return parts
}
