package domain

import "math"

// Payment method suggestion thresholds, in whole currency units.
const (
	cardSuggestionThreshold     = 20_000
	transferSuggestionThreshold = 50_000
)

// ComputeTotals derives the money summary from a cart snapshot. Pure; carts
// are small enough that recomputing on every mutation is the baseline, and
// callers that want memoization wrap it (see services.TotalsCalculator).
func ComputeTotals(cart Cart) Totals {
	var subtotal int64
	itemsCount := 0
	for _, item := range cart.Items {
		subtotal += item.LineSubtotal()
		itemsCount += item.Quantity
	}

	var globalDiscount int64
	switch cart.Discount.Kind {
	case DiscountPercentage:
		globalDiscount = int64(math.Round(float64(subtotal) * cart.Discount.Percent / 100))
	case DiscountAmount:
		globalDiscount = cart.Discount.Amount
	}
	if globalDiscount < 0 {
		globalDiscount = 0
	}

	// Tax is a placeholder until a tax policy exists for the store.
	var taxAmount int64

	total := subtotal - globalDiscount + taxAmount
	if total < 0 {
		total = 0
	}

	var average int64
	if itemsCount > 0 {
		average = int64(math.Round(float64(subtotal) / float64(itemsCount)))
	}

	return Totals{
		ItemsSubtotal:    subtotal,
		GlobalDiscount:   globalDiscount,
		TaxAmount:        taxAmount,
		Total:            total,
		ItemsCount:       itemsCount,
		AverageItemPrice: average,
	}
}

// SuggestedPaymentMethods returns the payment methods worth offering for a
// given total: cash always, card and transfer once the total crosses the
// store's hand-tuned thresholds.
func SuggestedPaymentMethods(total int64) []PaymentMethod {
	methods := []PaymentMethod{PaymentCash}
	if total >= cardSuggestionThreshold {
		methods = append(methods, PaymentCard)
	}
	if total >= transferSuggestionThreshold {
		methods = append(methods, PaymentTransfer)
	}
	return methods
}
