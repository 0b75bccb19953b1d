package domain

import "fmt"

// ValidateCart inspects a cart snapshot against the stock snapshots carried
// by its line items. Per-item issues follow insertion order; the empty-cart
// notice, when present, is appended last so callers get a stable ordering.
func ValidateCart(cart Cart) ValidationResult {
	issues := make([]ValidationIssue, 0, len(cart.Items)+1)

	for _, item := range cart.Items {
		switch {
		case item.Quantity > item.AvailableStock:
			issues = append(issues, ValidationIssue{
				Kind:     IssueStockExceeded,
				Severity: SeverityError,
				ItemID:   item.ID,
				Message:  fmt.Sprintf("%s exceeds available stock (%d)", item.Name, item.AvailableStock),
			})
		case item.Quantity == item.AvailableStock:
			issues = append(issues, ValidationIssue{
				Kind:     IssueLastUnit,
				Severity: SeverityWarning,
				ItemID:   item.ID,
				Message:  fmt.Sprintf("%s takes the last units in stock", item.Name),
			})
		}
	}

	if cart.IsEmpty() {
		issues = append(issues, ValidationIssue{
			Kind:     IssueEmptyCart,
			Severity: SeverityInfo,
			Message:  "cart is empty",
		})
	}

	result := ValidationResult{IsValid: true, Issues: issues}
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			result.IsValid = false
		case SeverityWarning:
			result.HasWarnings = true
		}
	}
	return result
}
