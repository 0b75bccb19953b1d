package services

import (
	"context"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	"github.com/tiendacaps/pos-api/internal/domain"
)

// CartService owns the register-scoped cart state and exposes its atomic
// mutations. It performs no network I/O; product data enters through the
// snapshot handed to AddItem.
type CartService interface {
	// GetOrCreateCart returns the register's cart, creating an empty one.
	GetOrCreateCart(ctx context.Context, registerID string) (domain.Cart, error)
	// AddItem merges the product into the cart by variant id, enforcing the
	// stock ceiling on the merged quantity.
	AddItem(ctx context.Context, registerID string, product domain.ProductSummary, quantity int) (domain.Cart, error)
	// RemoveItem drops a line item. Absent ids are a no-op.
	RemoveItem(ctx context.Context, registerID, itemID string) (domain.Cart, error)
	// SetQuantity updates a line item's quantity; zero or less removes it.
	SetQuantity(ctx context.Context, registerID, itemID string, quantity int) (domain.Cart, error)
	// ApplyItemDiscount sets a per-item discount, clamped to the line total.
	ApplyItemDiscount(ctx context.Context, registerID, itemID string, amount int64) (domain.Cart, error)
	// ApplyGlobalDiscount replaces the cart-wide discount atomically.
	ApplyGlobalDiscount(ctx context.Context, registerID string, discount domain.Discount) (domain.Cart, error)
	// Clear empties the cart and resets the cart-wide discount.
	Clear(ctx context.Context, registerID string) (domain.Cart, error)
}

// TotalsCalculator derives money figures from a cart snapshot.
type TotalsCalculator interface {
	Totals(ctx context.Context, cart domain.Cart) domain.Totals
}

// CheckoutCommand carries everything the coordinator needs beyond the cart
// itself.
type CheckoutCommand struct {
	RegisterID    string
	PaymentMethod domain.PaymentMethod
	CustomerPhone string
	Notes         string
	// QuickSale requests the single-item fast path. It only takes effect
	// when the cart holds exactly one unit; otherwise the full sale runs.
	QuickSale bool
}

// CheckoutResult reports a finished checkout. Validation carries the issues
// observed on the snapshot that was submitted.
type CheckoutResult struct {
	Sale       domain.SaleResult
	Totals     domain.Totals
	Validation domain.ValidationResult
}

// CheckoutService coordinates validation, sale submission, and cart clearing
// for one register at a time.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
	// LastSale returns the register's most recent completed sale.
	LastSale(ctx context.Context, registerID string) (domain.SaleResult, error)
}

// SaleSubmitter is the boundary to the sale submission backend.
type SaleSubmitter interface {
	SubmitSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error)
	SubmitQuickSale(ctx context.Context, req domain.QuickSaleRequest) (domain.SaleResult, error)
}

// ProductLookup is the boundary to the product lookup backend.
type ProductLookup interface {
	Scan(ctx context.Context, code string) (domain.ScanResult, error)
	Search(ctx context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error)
	QuickSearch(ctx context.Context, term string, limit int) ([]domain.ProductSummary, error)
	GetVariant(ctx context.Context, variantID int64) (domain.ProductSummary, error)
}

// CatalogService fronts the product lookup backend with short-lived caching
// for the hot scan path.
type CatalogService interface {
	Scan(ctx context.Context, code string) (domain.ScanResult, error)
	Search(ctx context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error)
	QuickSearch(ctx context.Context, term string) ([]domain.ProductSummary, error)
	GetVariant(ctx context.Context, variantID int64) (domain.ProductSummary, error)
}
