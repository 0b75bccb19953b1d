package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	domain "github.com/tiendacaps/pos-api/internal/domain"
	"github.com/tiendacaps/pos-api/internal/platform/httpx"
	"github.com/tiendacaps/pos-api/internal/platform/validation"
	"github.com/tiendacaps/pos-api/internal/services"
)

const maxScanBodySize = 4 * 1024

// ProductHandlers exposes the product lookup endpoints the register UI uses
// to find sellable variants.
type ProductHandlers struct {
	catalog  services.CatalogService
	limiter  rateLimiter
	validate *validatorv10.Validate
}

// ProductOption customises product handler construction.
type ProductOption func(*ProductHandlers)

// WithScanRateLimit throttles scans per client within the window. A nil
// clock uses wall time.
func WithScanRateLimit(limit int, window time.Duration, clock func() time.Time) ProductOption {
	return func(h *ProductHandlers) {
		h.limiter = newScanRateLimiter(limit, window, clock)
	}
}

// NewProductHandlers constructs handlers backed by the catalog service.
func NewProductHandlers(catalogSvc services.CatalogService, opts ...ProductOption) *ProductHandlers {
	h := &ProductHandlers{
		catalog:  catalogSvc,
		validate: validation.New(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes wires the product endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/scan", h.scan)
	r.Get("/search", h.search)
	r.Get("/quick-search/{term}", h.quickSearch)
	r.Get("/variants/{variantID}", h.getVariant)
}

type scanRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type scanResponse struct {
	Found   bool            `json:"found"`
	Product *productPayload `json:"product,omitempty"`
	Message string          `json:"message,omitempty"`
}

type productPayload struct {
	VariantID      int64  `json:"variant_id"`
	ProductName    string `json:"product_name"`
	SKU            string `json:"sku,omitempty"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	Price          int64  `json:"price"`
	AvailableStock int    `json:"available_stock"`
}

type productListResponse struct {
	Products []productPayload `json:"products"`
	Count    int              `json:"count"`
}

func (h *ProductHandlers) scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(scanClientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many scans; slow down", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxScanBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	var req scanRequest
	if err := decodeJSON(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest).WithDetails(validation.ErrorsToMap(err)))
		return
	}

	result, err := h.catalog.Scan(ctx, req.Code)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	payload := scanResponse{Found: result.Found, Message: result.Message}
	if result.Product != nil {
		p := buildProductPayload(*result.Product)
		payload.Product = &p
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *ProductHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	query := catalog.SearchQuery{
		Term:     strings.TrimSpace(r.URL.Query().Get("q")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Size:     strings.TrimSpace(r.URL.Query().Get("size")),
		Color:    strings.TrimSpace(r.URL.Query().Get("color")),
	}
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		query.Limit = limit
	}

	products, err := h.catalog.Search(ctx, query)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductList(products))
}

func (h *ProductHandlers) quickSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	term := strings.TrimSpace(chi.URLParam(r, "term"))
	products, err := h.catalog.QuickSearch(ctx, term)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductList(products))
}

func (h *ProductHandlers) getVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product lookup is unavailable", http.StatusServiceUnavailable))
		return
	}

	variantID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "variantID")), 10, 64)
	if err != nil || variantID <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "variant id must be a positive integer", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetVariant(ctx, variantID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]productPayload{"product": buildProductPayload(product)})
}

func scanClientKey(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

func buildProductPayload(p domain.ProductSummary) productPayload {
	return productPayload{
		VariantID:      p.VariantID,
		ProductName:    strings.TrimSpace(p.Name),
		SKU:            strings.TrimSpace(p.SKU),
		Size:           strings.TrimSpace(p.Size),
		Color:          strings.TrimSpace(p.Color),
		Price:          p.Price,
		AvailableStock: p.AvailableStock,
	}
}

func buildProductList(products []domain.ProductSummary) productListResponse {
	payload := productListResponse{Products: make([]productPayload, 0, len(products))}
	for _, p := range products {
		payload.Products = append(payload.Products, buildProductPayload(p))
	}
	payload.Count = len(payload.Products)
	return payload
}
