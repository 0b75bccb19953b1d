package domain

import "testing"

func TestValidateCartEmpty(t *testing.T) {
	result := ValidateCart(Cart{RegisterID: "reg-1"})

	if !result.IsValid {
		t.Fatalf("expected empty cart to be valid")
	}
	if result.HasWarnings {
		t.Fatalf("expected no warnings")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.Kind != IssueEmptyCart || issue.Severity != SeverityInfo {
		t.Fatalf("expected empty-cart info issue, got %+v", issue)
	}
	if issue.ItemID != "" {
		t.Fatalf("expected no item reference, got %q", issue.ItemID)
	}
}

func TestValidateCartStockExceeded(t *testing.T) {
	result := ValidateCart(Cart{
		RegisterID: "reg-1",
		Items: []LineItem{
			{ID: "i1", VariantID: 1, Name: "Gorra azul", Quantity: 6, AvailableStock: 5},
		},
	})

	if result.IsValid {
		t.Fatalf("expected invalid cart")
	}
	if len(result.Issues) != 1 {
		t.Fatalf("expected one issue, got %d", len(result.Issues))
	}
	issue := result.Issues[0]
	if issue.Kind != IssueStockExceeded || issue.Severity != SeverityError {
		t.Fatalf("expected stock-exceeded error, got %+v", issue)
	}
	if issue.ItemID != "i1" {
		t.Fatalf("expected issue to reference i1, got %q", issue.ItemID)
	}
}

func TestValidateCartLastUnitWarning(t *testing.T) {
	result := ValidateCart(Cart{
		RegisterID: "reg-1",
		Items: []LineItem{
			{ID: "i1", VariantID: 1, Name: "Camiseta", Quantity: 5, AvailableStock: 5},
		},
	})

	if !result.IsValid {
		t.Fatalf("expected warnings to keep the cart valid")
	}
	if !result.HasWarnings {
		t.Fatalf("expected HasWarnings")
	}
	if len(result.Issues) != 1 || result.Issues[0].Kind != IssueLastUnit {
		t.Fatalf("expected a single last-unit warning, got %+v", result.Issues)
	}
}

func TestValidateCartIssueOrdering(t *testing.T) {
	result := ValidateCart(Cart{
		RegisterID: "reg-1",
		Items: []LineItem{
			{ID: "i1", VariantID: 1, Name: "A", Quantity: 2, AvailableStock: 2},
			{ID: "i2", VariantID: 2, Name: "B", Quantity: 1, AvailableStock: 9},
			{ID: "i3", VariantID: 3, Name: "C", Quantity: 4, AvailableStock: 3},
		},
	})

	if len(result.Issues) != 2 {
		t.Fatalf("expected two issues, got %d", len(result.Issues))
	}
	if result.Issues[0].ItemID != "i1" || result.Issues[1].ItemID != "i3" {
		t.Fatalf("expected issues in insertion order, got %+v", result.Issues)
	}
	if result.IsValid {
		t.Fatalf("expected invalid cart")
	}
	if !result.HasWarnings {
		t.Fatalf("expected warnings alongside errors")
	}
}
