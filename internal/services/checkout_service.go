package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tiendacaps/pos-api/internal/clients/sales"
	domain "github.com/tiendacaps/pos-api/internal/domain"
)

var (
	errCheckoutCartServiceRequired = errors.New("checkout service: cart service is required")
	errCheckoutSubmitterRequired   = errors.New("checkout service: sale submitter is required")
	errCheckoutCalculatorRequired  = errors.New("checkout service: totals calculator is required")
	errCheckoutClockRequired       = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutCartInvalid indicates validation found blocking issues; the
// returned result carries them.
var ErrCheckoutCartInvalid = errors.New("checkout service: cart invalid")

// ErrCheckoutAlreadyProcessing indicates a checkout for the same register is
// still in flight.
var ErrCheckoutAlreadyProcessing = errors.New("checkout service: checkout already processing")

// ErrCheckoutRejected indicates the sale backend refused the submission. The
// cart is preserved so the cashier can correct and retry.
var ErrCheckoutRejected = errors.New("checkout service: sale rejected")

// ErrCheckoutUnavailable indicates the sale backend could not be reached.
var ErrCheckoutUnavailable = errors.New("checkout service: sale backend unavailable")

// ErrCheckoutNoCompletedSale indicates the register has no recorded sale yet.
var ErrCheckoutNoCompletedSale = errors.New("checkout service: no completed sale")

// CheckoutServiceDeps wires the collaborators of the checkout coordinator.
type CheckoutServiceDeps struct {
	Carts     CartService
	Submitter SaleSubmitter
	Totals    TotalsCalculator
	Clock     func() time.Time
	Logger    func(context.Context, string, map[string]any)
}

type checkoutService struct {
	carts     CartService
	submitter SaleSubmitter
	totals    TotalsCalculator
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)

	mu        sync.Mutex
	inFlight  map[string]struct{}
	lastSales map[string]domain.SaleResult
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartServiceRequired
	}
	if deps.Submitter == nil {
		return nil, errCheckoutSubmitterRequired
	}
	if deps.Totals == nil {
		return nil, errCheckoutCalculatorRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		carts:     deps.Carts,
		submitter: deps.Submitter,
		totals:    deps.Totals,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
		inFlight:  make(map[string]struct{}),
		lastSales: make(map[string]domain.SaleResult),
	}, nil
}

// Checkout validates the register's cart, submits it as a sale, and clears
// the cart on success. Only one checkout per register runs at a time.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	registerID := strings.TrimSpace(cmd.RegisterID)
	if registerID == "" {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}
	if !domain.KnownPaymentMethod(cmd.PaymentMethod) {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	if !s.acquire(registerID) {
		return CheckoutResult{}, ErrCheckoutAlreadyProcessing
	}
	defer s.release(registerID)

	cart, err := s.carts.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return CheckoutResult{}, err
	}

	validation := domain.ValidateCart(cart)
	totals := s.totals.Totals(ctx, cart)
	result := CheckoutResult{Totals: totals, Validation: validation}
	if !validation.IsValid || cart.IsEmpty() {
		s.logger(ctx, "checkout.blocked", map[string]any{
			"register_id": registerID,
			"issues":      len(validation.Issues),
		})
		return result, ErrCheckoutCartInvalid
	}

	sale, err := s.submit(ctx, registerID, cart, cmd)
	if err != nil {
		s.logger(ctx, "checkout.failed", map[string]any{
			"register_id": registerID,
			"error":       err.Error(),
		})
		return result, translateSaleError(err)
	}

	if _, err := s.carts.Clear(ctx, registerID); err != nil {
		// The sale is already recorded; keep the success but surface the
		// stale cart in logs so the register can be reset manually.
		s.logger(ctx, "checkout.clear_failed", map[string]any{
			"register_id": registerID,
			"sale_number": sale.SaleNumber,
			"error":       err.Error(),
		})
	}

	s.logger(ctx, "checkout.completed", map[string]any{
		"register_id": registerID,
		"sale_number": sale.SaleNumber,
		"total":       sale.TotalAmount,
	})

	s.recordLastSale(registerID, sale)

	result.Sale = sale
	return result, nil
}

// LastSale returns the most recent completed sale for the register, so the
// cashier can re-display the receipt after the cart has been cleared.
func (s *checkoutService) LastSale(ctx context.Context, registerID string) (domain.SaleResult, error) {
	registerID = strings.TrimSpace(registerID)
	if registerID == "" {
		return domain.SaleResult{}, ErrCheckoutInvalidInput
	}

	s.mu.Lock()
	sale, ok := s.lastSales[registerID]
	s.mu.Unlock()
	if !ok {
		return domain.SaleResult{}, ErrCheckoutNoCompletedSale
	}
	return sale, nil
}

func (s *checkoutService) recordLastSale(registerID string, sale domain.SaleResult) {
	s.mu.Lock()
	s.lastSales[registerID] = sale
	s.mu.Unlock()
}

// submit takes the quick-sale fast path only when the cashier asked for it
// and the cart qualifies; everything else goes through the full sale payload.
func (s *checkoutService) submit(ctx context.Context, registerID string, cart domain.Cart, cmd CheckoutCommand) (domain.SaleResult, error) {
	if quick, ok := quickSaleFor(cart, cmd); ok {
		return s.submitter.SubmitQuickSale(ctx, quick)
	}

	items := make([]domain.SaleItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.SaleItem{
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.Discount,
		})
	}

	req := domain.SaleRequest{
		Items:         items,
		PaymentMethod: cmd.PaymentMethod,
		CustomerPhone: strings.TrimSpace(cmd.CustomerPhone),
		Notes:         strings.TrimSpace(cmd.Notes),
		RegisterID:    registerID,
	}
	switch cart.Discount.Kind {
	case domain.DiscountPercentage:
		req.DiscountPercentage = cart.Discount.Percent
	case domain.DiscountAmount:
		req.DiscountAmount = cart.Discount.Amount
	}

	return s.submitter.SubmitSale(ctx, req)
}

// quickSaleFor qualifies a cart for the fast path: the cashier requested it,
// the cart holds a single unit with no cart-wide discount, the tender is one
// the quick endpoint accepts, and there is no extra context to carry.
func quickSaleFor(cart domain.Cart, cmd CheckoutCommand) (domain.QuickSaleRequest, bool) {
	if !cmd.QuickSale {
		return domain.QuickSaleRequest{}, false
	}
	if cart.ItemsCount() != 1 || !cart.Discount.IsZero() {
		return domain.QuickSaleRequest{}, false
	}
	switch cmd.PaymentMethod {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer:
	default:
		return domain.QuickSaleRequest{}, false
	}
	if strings.TrimSpace(cmd.CustomerPhone) != "" || strings.TrimSpace(cmd.Notes) != "" {
		return domain.QuickSaleRequest{}, false
	}
	item := cart.Items[0]
	return domain.QuickSaleRequest{
		VariantID:      item.VariantID,
		Quantity:       item.Quantity,
		PaymentMethod:  cmd.PaymentMethod,
		DiscountAmount: item.Discount,
	}, true
}

func (s *checkoutService) acquire(registerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[registerID]; busy {
		return false
	}
	s.inFlight[registerID] = struct{}{}
	return true
}

func (s *checkoutService) release(registerID string) {
	s.mu.Lock()
	delete(s.inFlight, registerID)
	s.mu.Unlock()
}

func translateSaleError(err error) error {
	switch {
	case errors.Is(err, sales.ErrSaleRejected):
		return ErrCheckoutRejected
	case errors.Is(err, sales.ErrInvalidInput):
		return ErrCheckoutInvalidInput
	case errors.Is(err, sales.ErrUnavailable):
		return ErrCheckoutUnavailable
	}
	return ErrCheckoutUnavailable
}
