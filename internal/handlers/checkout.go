package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validatorv10 "github.com/go-playground/validator/v10"

	domain "github.com/tiendacaps/pos-api/internal/domain"
	"github.com/tiendacaps/pos-api/internal/platform/httpx"
	"github.com/tiendacaps/pos-api/internal/platform/validation"
	"github.com/tiendacaps/pos-api/internal/services"
)

const maxCheckoutBodySize = 8 * 1024

// CheckoutHandlers exposes the register-scoped checkout endpoint.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	validate *validatorv10.Validate
}

// NewCheckoutHandlers constructs handlers backed by the checkout coordinator.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkout: checkout,
		validate: validation.New(),
	}
}

// Routes wires the checkout endpoint onto the register-scoped router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout", h.checkoutCart)
	r.Get("/checkout/last", h.lastSale)
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,payment_method"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=32"`
	Notes         string `json:"notes" validate:"omitempty,max=500"`
	QuickSale     bool   `json:"quick_sale"`
}

type checkoutResponse struct {
	Sale       salePayload        `json:"sale"`
	Totals     *totalsPayload     `json:"totals,omitempty"`
	Validation *validationPayload `json:"validation,omitempty"`
}

type salePayload struct {
	SaleNumber  string `json:"sale_number"`
	TotalAmount int64  `json:"total_amount"`
	ItemsCount  int    `json:"total_items"`
	CompletedAt string `json:"completed_at,omitempty"`
}

func (h *CheckoutHandlers) checkoutCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	registerID := registerIDFrom(ctx, r)
	if registerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "register id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req checkoutRequest
	if err := decodeJSON(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest).WithDetails(validation.ErrorsToMap(err)))
		return
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		RegisterID:    registerID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		QuickSale:     req.QuickSale,
	})
	if err != nil {
		h.writeCheckoutError(ctx, w, result, err)
		return
	}

	payload := checkoutResponse{
		Sale: salePayload{
			SaleNumber:  result.Sale.SaleNumber,
			TotalAmount: result.Sale.TotalAmount,
			ItemsCount:  result.Sale.ItemsCount,
			CompletedAt: formatTime(result.Sale.CompletedAt),
		},
		Totals:     buildTotalsPayload(result.Totals),
		Validation: buildValidationPayload(result.Validation),
	}
	writeJSONResponse(w, http.StatusCreated, payload)
}

// lastSale re-serves the register's most recent completed sale so the UI can
// show the receipt again after the cart was cleared.
func (h *CheckoutHandlers) lastSale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	registerID := registerIDFrom(ctx, r)
	if registerID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "register id is required", http.StatusBadRequest))
		return
	}

	sale, err := h.checkout.LastSale(ctx, registerID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCheckoutNoCompletedSale):
			httpx.WriteError(ctx, w, httpx.NewError("no_completed_sale", "no sale has been completed on this register", http.StatusNotFound))
		case errors.Is(err, services.ErrCheckoutInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to load last sale", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, salePayload{
		SaleNumber:  sale.SaleNumber,
		TotalAmount: sale.TotalAmount,
		ItemsCount:  sale.ItemsCount,
		CompletedAt: formatTime(sale.CompletedAt),
	})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, result services.CheckoutResult, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCartInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("cart_invalid", "cart cannot be checked out", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{"validation": buildValidationPayload(result.Validation)}))
	case errors.Is(err, services.ErrCheckoutAlreadyProcessing):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_in_progress", "a checkout for this register is already processing", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutRejected):
		httpx.WriteError(ctx, w, httpx.NewError("sale_rejected", "sale was rejected by the backend", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("sale_backend_unavailable", "sale backend is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}
