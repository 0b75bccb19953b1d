package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tiendacaps/pos-api/internal/domain"
	"github.com/tiendacaps/pos-api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartStockExceeded indicates an accepted mutation would push a line item
// past its available stock snapshot. The cart is left untouched.
var ErrCartStockExceeded = errors.New("cart service: stock exceeded")

// CartServiceDeps wires the repository and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Repository  repositories.CartRepository
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type cartService struct {
	repo   repositories.CartRepository
	newID  func() string
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &cartService{
		repo:   deps.Repository,
		newID:  idGen,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}, nil
}

// GetOrCreateCart loads the register's cart, creating an empty one when absent.
func (s *cartService) GetOrCreateCart(ctx context.Context, registerID string) (domain.Cart, error) {
	id := strings.TrimSpace(registerID)
	if id == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, id)
	if err != nil {
		if !isRepoNotFound(err) {
			return domain.Cart{}, translateRepoError(err)
		}
		now := s.now()
		cart = domain.Cart{RegisterID: id, CreatedAt: now, UpdatedAt: now}
		saved, err := s.repo.SaveCart(ctx, cart)
		if err != nil {
			return domain.Cart{}, translateRepoError(err)
		}
		s.logger(ctx, "cart.created", map[string]any{"register_id": id})
		return saved, nil
	}
	return cart, nil
}

// AddItem merges the product into the cart by variant id. The merged quantity
// must fit within the stock snapshot or the cart stays untouched.
func (s *cartService) AddItem(ctx context.Context, registerID string, product domain.ProductSummary, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if product.VariantID <= 0 {
		return domain.Cart{}, ErrCartInvalidInput
	}
	if product.Price < 0 {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	if existing, ok := cart.ItemByVariant(product.VariantID); ok {
		merged := existing.Quantity + quantity
		if merged > existing.AvailableStock {
			s.logger(ctx, "cart.stock_exceeded", map[string]any{
				"register_id": cart.RegisterID,
				"variant_id":  product.VariantID,
				"requested":   merged,
				"available":   existing.AvailableStock,
			})
			return domain.Cart{}, ErrCartStockExceeded
		}
		return s.updateItem(ctx, cart, existing.ID, func(item *domain.LineItem) {
			item.Quantity = merged
		})
	}

	if quantity > product.AvailableStock {
		s.logger(ctx, "cart.stock_exceeded", map[string]any{
			"register_id": cart.RegisterID,
			"variant_id":  product.VariantID,
			"requested":   quantity,
			"available":   product.AvailableStock,
		})
		return domain.Cart{}, ErrCartStockExceeded
	}

	item := domain.LineItem{
		ID:             s.newID(),
		VariantID:      product.VariantID,
		Name:           product.Name,
		SKU:            product.SKU,
		Size:           product.Size,
		Color:          product.Color,
		UnitPrice:      product.Price,
		Quantity:       quantity,
		AvailableStock: product.AvailableStock,
		AddedAt:        s.now(),
	}
	cart.Items = append(cart.Items, item)
	return s.save(ctx, cart)
}

// RemoveItem drops the line item with the given id. Absent ids are a no-op.
func (s *cartService) RemoveItem(ctx context.Context, registerID, itemID string) (domain.Cart, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	if _, ok := cart.ItemByID(itemID); !ok {
		return cart, nil
	}
	return s.removeFromCart(ctx, cart, itemID)
}

// SetQuantity updates a line item's quantity. Zero or negative removes the
// item; a quantity above the stock snapshot leaves the cart untouched.
func (s *cartService) SetQuantity(ctx context.Context, registerID, itemID string, quantity int) (domain.Cart, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	existing, ok := cart.ItemByID(itemID)
	if !ok {
		return cart, nil
	}

	if quantity <= 0 {
		return s.removeFromCart(ctx, cart, itemID)
	}
	if quantity > existing.AvailableStock {
		s.logger(ctx, "cart.stock_exceeded", map[string]any{
			"register_id": cart.RegisterID,
			"variant_id":  existing.VariantID,
			"requested":   quantity,
			"available":   existing.AvailableStock,
		})
		return domain.Cart{}, ErrCartStockExceeded
	}

	return s.updateItem(ctx, cart, itemID, func(item *domain.LineItem) {
		item.Quantity = quantity
		if item.Discount > item.MaxDiscount() {
			item.Discount = item.MaxDiscount()
		}
	})
}

// ApplyItemDiscount sets the per-item discount, clamped to the line total.
// Absent ids are a no-op.
func (s *cartService) ApplyItemDiscount(ctx context.Context, registerID, itemID string, amount int64) (domain.Cart, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	if _, ok := cart.ItemByID(itemID); !ok {
		return cart, nil
	}

	return s.updateItem(ctx, cart, itemID, func(item *domain.LineItem) {
		if amount < 0 {
			amount = 0
		}
		if max := item.MaxDiscount(); amount > max {
			amount = max
		}
		item.Discount = amount
	})
}

// ApplyGlobalDiscount replaces the cart-wide discount with the given value.
// Constructors on domain.Discount already clamp ranges, so any tagged value
// arriving here is structurally valid.
func (s *cartService) ApplyGlobalDiscount(ctx context.Context, registerID string, discount domain.Discount) (domain.Cart, error) {
	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	switch discount.Kind {
	case domain.DiscountNone, domain.DiscountPercentage, domain.DiscountAmount, "":
	default:
		return domain.Cart{}, ErrCartInvalidInput
	}

	cart.Discount = discount
	return s.save(ctx, cart)
}

// Clear empties the cart and resets the cart-wide discount.
func (s *cartService) Clear(ctx context.Context, registerID string) (domain.Cart, error) {
	cart, err := s.GetOrCreateCart(ctx, registerID)
	if err != nil {
		return domain.Cart{}, err
	}

	cart.Items = nil
	cart.Discount = domain.Discount{}
	saved, err := s.save(ctx, cart)
	if err != nil {
		return domain.Cart{}, err
	}
	s.logger(ctx, "cart.cleared", map[string]any{"register_id": saved.RegisterID})
	return saved, nil
}

func (s *cartService) updateItem(ctx context.Context, cart domain.Cart, itemID string, mutate func(*domain.LineItem)) (domain.Cart, error) {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			mutate(&cart.Items[i])
			break
		}
	}
	return s.save(ctx, cart)
}

func (s *cartService) removeFromCart(ctx context.Context, cart domain.Cart, itemID string) (domain.Cart, error) {
	items := make([]domain.LineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.ID == itemID {
			continue
		}
		items = append(items, item)
	}
	cart.Items = items
	return s.save(ctx, cart)
}

func (s *cartService) save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	cart.UpdatedAt = s.now()
	saved, err := s.repo.SaveCart(ctx, cart)
	if err != nil {
		return domain.Cart{}, translateRepoError(err)
	}
	return saved, nil
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartUnavailable
		case repoErr.IsConflict():
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}
