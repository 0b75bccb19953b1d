package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	domain "github.com/tiendacaps/pos-api/internal/domain"
	"github.com/tiendacaps/pos-api/internal/platform/httpx"
	"github.com/tiendacaps/pos-api/internal/platform/requestctx"
	"github.com/tiendacaps/pos-api/internal/platform/validation"
	"github.com/tiendacaps/pos-api/internal/services"
)

const maxCartBodySize = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

// CartHandlers exposes the register-scoped cart endpoints.
type CartHandlers struct {
	carts    services.CartService
	catalog  services.CatalogService
	totals   services.TotalsCalculator
	validate *validatorv10.Validate
}

// NewCartHandlers constructs handlers backed by the cart service. The catalog
// service resolves variant ids into the product snapshot a cart add records.
func NewCartHandlers(carts services.CartService, catalogSvc services.CatalogService, totals services.TotalsCalculator) *CartHandlers {
	return &CartHandlers{
		carts:    carts,
		catalog:  catalogSvc,
		totals:   totals,
		validate: validation.New(),
	}
}

// Routes wires the /cart endpoints onto the register-scoped router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/cart", h.getCart)
	r.Delete("/cart", h.clearCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{itemID}", h.setQuantity)
	r.Delete("/cart/items/{itemID}", h.removeItem)
	r.Put("/cart/items/{itemID}/discount", h.applyItemDiscount)
	r.Put("/cart/discount", h.applyGlobalDiscount)
	r.Delete("/cart/discount", h.removeGlobalDiscount)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetOrCreateCart(ctx, registerID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}

	cart, err := h.carts.Clear(ctx, registerID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

type addItemRequest struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if !h.decodeAndValidate(ctx, w, r, &req) {
		return
	}

	product, err := h.catalog.GetVariant(ctx, req.VariantID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	cart, err := h.carts.AddItem(ctx, registerID, product, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

type setQuantityRequest struct {
	// Zero removes the item, so only negatives are rejected up front.
	Quantity int `json:"quantity" validate:"gte=0"`
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	var req setQuantityRequest
	if !h.decodeAndValidate(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.SetQuantity(ctx, registerID, itemID, req.Quantity)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.RemoveItem(ctx, registerID, itemID)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

type itemDiscountRequest struct {
	Amount int64 `json:"amount" validate:"gte=0"`
}

func (h *CartHandlers) applyItemDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if itemID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "item id is required", http.StatusBadRequest))
		return
	}

	var req itemDiscountRequest
	if !h.decodeAndValidate(ctx, w, r, &req) {
		return
	}

	cart, err := h.carts.ApplyItemDiscount(ctx, registerID, itemID, req.Amount)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

type globalDiscountRequest struct {
	Kind  string  `json:"type" validate:"required,oneof=percentage amount"`
	Value float64 `json:"value" validate:"gte=0"`
}

func (h *CartHandlers) applyGlobalDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}

	var req globalDiscountRequest
	if !h.decodeAndValidate(ctx, w, r, &req) {
		return
	}

	var discount domain.Discount
	switch req.Kind {
	case "percentage":
		if req.Value > 100 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "percentage discount cannot exceed 100", http.StatusBadRequest))
			return
		}
		discount = domain.PercentageDiscount(req.Value)
	case "amount":
		discount = domain.AmountDiscount(int64(req.Value))
	}

	cart, err := h.carts.ApplyGlobalDiscount(ctx, registerID, discount)
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

func (h *CartHandlers) removeGlobalDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	registerID, ok := h.registerFrom(ctx, w, r)
	if !ok {
		return
	}

	cart, err := h.carts.ApplyGlobalDiscount(ctx, registerID, domain.Discount{})
	if err != nil {
		writeCartError(ctx, w, err)
		return
	}

	h.writeCart(ctx, w, cart)
}

func (h *CartHandlers) registerFrom(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	registerID := registerIDFrom(ctx, r)
	if registerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "register id is required", http.StatusBadRequest))
		return "", false
	}
	return registerID, true
}

func (h *CartHandlers) decodeAndValidate(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxCartBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest).WithDetails(validation.ErrorsToMap(err)))
		return false
	}
	return true
}

func (h *CartHandlers) writeCart(ctx context.Context, w http.ResponseWriter, cart domain.Cart) {
	payload := cartResponse{Cart: buildCartPayload(cart)}
	if h.totals != nil {
		totals := h.totals.Totals(ctx, cart)
		payload.Totals = buildTotalsPayload(totals)
		payload.SuggestedPaymentMethods = paymentMethodStrings(domain.SuggestedPaymentMethods(totals.Total))
	}
	payload.Validation = buildValidationPayload(domain.ValidateCart(cart))

	setCartResponseHeaders(w, cart)
	writeJSONResponse(w, http.StatusOK, payload)
}

func writeCartError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCartInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartStockExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("stock_exceeded", "requested quantity exceeds available stock", http.StatusConflict))
	case errors.Is(err, services.ErrCartUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("cart_error", "cart operation failed", http.StatusInternalServerError))
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, catalog.ErrInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, catalog.ErrUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "product lookup backend is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "product lookup failed", http.StatusInternalServerError))
	}
}

func setCartResponseHeaders(w http.ResponseWriter, cart domain.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
}

func buildCartETag(cart domain.Cart) string {
	if strings.TrimSpace(cart.RegisterID) == "" || cart.UpdatedAt.IsZero() {
		return ""
	}
	input := fmt.Sprintf("%s:%d", strings.TrimSpace(cart.RegisterID), cart.UpdatedAt.UTC().UnixNano())
	sum := sha256.Sum256([]byte(input))
	token := hex.EncodeToString(sum[:8])
	return fmt.Sprintf(`W/"%s"`, token)
}

type cartResponse struct {
	Cart                    cartPayload        `json:"cart"`
	Totals                  *totalsPayload     `json:"totals,omitempty"`
	Validation              *validationPayload `json:"validation,omitempty"`
	SuggestedPaymentMethods []string           `json:"suggested_payment_methods,omitempty"`
}

type cartPayload struct {
	RegisterID string            `json:"register_id"`
	Items      []cartItemPayload `json:"items"`
	// LineCount is the number of distinct lines; the unit count rides on
	// totals.items_count.
	LineCount int              `json:"line_count"`
	Discount  *discountPayload `json:"discount,omitempty"`
	CreatedAt string           `json:"created_at,omitempty"`
	UpdatedAt string           `json:"updated_at,omitempty"`
}

type cartItemPayload struct {
	ID             string `json:"id"`
	VariantID      int64  `json:"variant_id"`
	ProductName    string `json:"product_name"`
	SKU            string `json:"sku,omitempty"`
	Size           string `json:"size,omitempty"`
	Color          string `json:"color,omitempty"`
	UnitPrice      int64  `json:"unit_price"`
	Quantity       int    `json:"quantity"`
	AvailableStock int    `json:"available_stock"`
	Discount       int64  `json:"discount,omitempty"`
	LineSubtotal   int64  `json:"line_subtotal"`
	AddedAt        string `json:"added_at,omitempty"`
}

type discountPayload struct {
	Type    string  `json:"type"`
	Percent float64 `json:"percent,omitempty"`
	Amount  int64   `json:"amount,omitempty"`
}

type totalsPayload struct {
	ItemsSubtotal    int64 `json:"items_subtotal"`
	GlobalDiscount   int64 `json:"global_discount"`
	TaxAmount        int64 `json:"tax_amount"`
	Total            int64 `json:"total"`
	ItemsCount       int   `json:"items_count"`
	AverageItemPrice int64 `json:"average_item_price"`
}

type validationPayload struct {
	IsValid     bool                     `json:"is_valid"`
	HasWarnings bool                     `json:"has_warnings"`
	Issues      []validationIssuePayload `json:"issues"`
}

type validationIssuePayload struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	ItemID   string `json:"item_id,omitempty"`
	Message  string `json:"message"`
}

func buildCartPayload(cart domain.Cart) cartPayload {
	payload := cartPayload{
		RegisterID: strings.TrimSpace(cart.RegisterID),
		Items:      buildCartItems(cart.Items),
		LineCount:  len(cart.Items),
	}
	if !cart.Discount.IsZero() {
		payload.Discount = &discountPayload{
			Type:    string(cart.Discount.Kind),
			Percent: cart.Discount.Percent,
			Amount:  cart.Discount.Amount,
		}
	}
	if !cart.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(cart.CreatedAt)
	}
	if !cart.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(cart.UpdatedAt)
	}
	return payload
}

func buildCartItems(items []domain.LineItem) []cartItemPayload {
	if len(items) == 0 {
		return []cartItemPayload{}
	}
	payload := make([]cartItemPayload, 0, len(items))
	for _, item := range items {
		entry := cartItemPayload{
			ID:             strings.TrimSpace(item.ID),
			VariantID:      item.VariantID,
			ProductName:    strings.TrimSpace(item.Name),
			SKU:            strings.TrimSpace(item.SKU),
			Size:           strings.TrimSpace(item.Size),
			Color:          strings.TrimSpace(item.Color),
			UnitPrice:      item.UnitPrice,
			Quantity:       item.Quantity,
			AvailableStock: item.AvailableStock,
			Discount:       item.Discount,
			LineSubtotal:   item.LineSubtotal(),
		}
		if !item.AddedAt.IsZero() {
			entry.AddedAt = formatTime(item.AddedAt)
		}
		payload = append(payload, entry)
	}
	return payload
}

func buildTotalsPayload(totals domain.Totals) *totalsPayload {
	return &totalsPayload{
		ItemsSubtotal:    totals.ItemsSubtotal,
		GlobalDiscount:   totals.GlobalDiscount,
		TaxAmount:        totals.TaxAmount,
		Total:            totals.Total,
		ItemsCount:       totals.ItemsCount,
		AverageItemPrice: totals.AverageItemPrice,
	}
}

func buildValidationPayload(result domain.ValidationResult) *validationPayload {
	payload := &validationPayload{
		IsValid:     result.IsValid,
		HasWarnings: result.HasWarnings,
		Issues:      make([]validationIssuePayload, 0, len(result.Issues)),
	}
	for _, issue := range result.Issues {
		payload.Issues = append(payload.Issues, validationIssuePayload{
			Kind:     string(issue.Kind),
			Severity: string(issue.Severity),
			ItemID:   issue.ItemID,
			Message:  issue.Message,
		})
	}
	return payload
}

func paymentMethodStrings(methods []domain.PaymentMethod) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, string(m))
	}
	return out
}

func registerIDFrom(ctx context.Context, r *http.Request) string {
	if registerID := requestctx.RegisterID(ctx); registerID != "" {
		return registerID
	}
	return strings.TrimSpace(chi.URLParam(r, "registerID"))
}

func decodeJSON(body []byte, dst any) error {
	return json.Unmarshal(body, dst)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxCartBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
