package domain

import "time"

// LineItem is one product variant held in the cart. Descriptive fields and
// UnitPrice are fixed at the time the item is added; only Quantity and
// Discount change afterwards.
type LineItem struct {
	ID             string
	VariantID      int64
	Name           string
	SKU            string
	Size           string
	Color          string
	UnitPrice      int64
	Quantity       int
	AvailableStock int
	Discount       int64
	AddedAt        time.Time
}

// LineSubtotal returns the item's price contribution after its own discount.
// Never negative.
func (i LineItem) LineSubtotal() int64 {
	line := i.UnitPrice*int64(i.Quantity) - i.Discount
	if line < 0 {
		return 0
	}
	return line
}

// MaxDiscount is the ceiling for the per-item discount.
func (i LineItem) MaxDiscount() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// DiscountKind tags the cart-wide discount mode.
type DiscountKind string

const (
	// DiscountNone means no cart-wide discount is applied.
	DiscountNone DiscountKind = "none"
	// DiscountPercentage discounts a percentage of the items subtotal.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountAmount discounts a fixed amount off the items subtotal.
	DiscountAmount DiscountKind = "amount"
)

// Discount is the cart-wide discount as a single tagged value. Replacing the
// whole struct keeps the percentage/amount modes mutually exclusive; a reader
// can never observe both set at once. The zero value means no discount.
type Discount struct {
	Kind    DiscountKind
	Percent float64
	Amount  int64
}

// PercentageDiscount builds a percentage discount clamped to [0,100].
// A zero percentage collapses to the no-discount value.
func PercentageDiscount(percent float64) Discount {
	if percent <= 0 {
		return Discount{Kind: DiscountNone}
	}
	if percent > 100 {
		percent = 100
	}
	return Discount{Kind: DiscountPercentage, Percent: percent}
}

// AmountDiscount builds a fixed-amount discount clamped to >= 0.
func AmountDiscount(amount int64) Discount {
	if amount <= 0 {
		return Discount{Kind: DiscountNone}
	}
	return Discount{Kind: DiscountAmount, Amount: amount}
}

// IsZero reports whether no cart-wide discount is in effect.
func (d Discount) IsZero() bool {
	return d.Kind == "" || d.Kind == DiscountNone
}

// Cart aggregates the mutable state of one POS register's cart. Items keep
// insertion order, which is also the display order.
type Cart struct {
	RegisterID string
	Items      []LineItem
	Discount   Discount
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// ItemsCount returns the total unit count across all line items.
func (c Cart) ItemsCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// ItemByID returns the line item with the given id, if present.
func (c Cart) ItemByID(itemID string) (LineItem, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return LineItem{}, false
}

// ItemByVariant returns the line item for a variant, if present.
func (c Cart) ItemByVariant(variantID int64) (LineItem, bool) {
	for _, item := range c.Items {
		if item.VariantID == variantID {
			return item, true
		}
	}
	return LineItem{}, false
}

// Clone returns a deep copy so callers can hold snapshots without aliasing
// the store's backing slice.
func (c Cart) Clone() Cart {
	dup := c
	dup.Items = make([]LineItem, len(c.Items))
	copy(dup.Items, c.Items)
	return dup
}

// Totals summarizes the money derived from a cart snapshot. All monetary
// values are whole currency units.
type Totals struct {
	ItemsSubtotal    int64
	GlobalDiscount   int64
	TaxAmount        int64
	Total            int64
	ItemsCount       int
	AverageItemPrice int64
}

// IssueKind enumerates the validation diagnostics a cart can carry.
type IssueKind string

const (
	// IssueStockExceeded flags a line item whose quantity exceeds the stock
	// snapshot taken when it was added.
	IssueStockExceeded IssueKind = "stock_exceeded"
	// IssueLastUnit flags a line item consuming the last units in stock.
	IssueLastUnit IssueKind = "last_unit"
	// IssueEmptyCart flags a cart with no items.
	IssueEmptyCart IssueKind = "empty_cart"
)

// IssueSeverity ranks validation issues.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
	SeverityInfo    IssueSeverity = "info"
)

// ValidationIssue is one typed diagnostic about cart contents. ItemID is
// empty for cart-level issues.
type ValidationIssue struct {
	Kind     IssueKind
	Severity IssueSeverity
	ItemID   string
	Message  string
}

// ValidationResult aggregates the issues found in a cart snapshot.
type ValidationResult struct {
	IsValid     bool
	HasWarnings bool
	Issues      []ValidationIssue
}

// PaymentMethod enumerates the payment methods the sale backend accepts.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentMixed    PaymentMethod = "mixed"
	PaymentOther    PaymentMethod = "other"
)

// KnownPaymentMethod reports whether the method is one the backend accepts.
func KnownPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentMixed, PaymentOther:
		return true
	}
	return false
}

// SaleItem is one line of a sale submission.
type SaleItem struct {
	VariantID      int64
	Quantity       int
	UnitPrice      int64
	DiscountAmount int64
}

// SaleRequest is the boundary object handed to the sale submission backend
// for a full multi-item checkout. Items keep cart order.
type SaleRequest struct {
	Items              []SaleItem
	PaymentMethod      PaymentMethod
	DiscountPercentage float64
	DiscountAmount     int64
	CustomerPhone      string
	Notes              string
	RegisterID         string
}

// QuickSaleRequest is the single-item fast path payload.
type QuickSaleRequest struct {
	VariantID      int64
	Quantity       int
	PaymentMethod  PaymentMethod
	DiscountAmount int64
}

// SaleResult is what the sale backend reports for an accepted sale.
type SaleResult struct {
	SaleNumber  string
	TotalAmount int64
	ItemsCount  int
	CompletedAt time.Time
}

// ProductSummary describes a sellable variant as returned by the product
// lookup backend.
type ProductSummary struct {
	VariantID      int64
	Name           string
	SKU            string
	Size           string
	Color          string
	Price          int64
	AvailableStock int
}

// ScanResult is the outcome of a barcode or short-code scan.
type ScanResult struct {
	Found   bool
	Product *ProductSummary
	Message string
}
