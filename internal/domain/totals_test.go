package domain

import "testing"

func cartWith(items []LineItem, discount Discount) Cart {
	return Cart{RegisterID: "reg-1", Items: items, Discount: discount}
}

func TestComputeTotalsEmptyCart(t *testing.T) {
	totals := ComputeTotals(cartWith(nil, Discount{}))

	if totals.ItemsSubtotal != 0 || totals.Total != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
	if totals.ItemsCount != 0 {
		t.Fatalf("expected zero items count, got %d", totals.ItemsCount)
	}
	if totals.AverageItemPrice != 0 {
		t.Fatalf("expected zero average price, got %d", totals.AverageItemPrice)
	}
}

func TestComputeTotalsSubtotalAndCount(t *testing.T) {
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 10000, Quantity: 3},
		{ID: "i2", VariantID: 2, UnitPrice: 5000, Quantity: 2, Discount: 1000},
	}, Discount{}))

	if totals.ItemsSubtotal != 39000 {
		t.Fatalf("expected subtotal 39000, got %d", totals.ItemsSubtotal)
	}
	if totals.ItemsCount != 5 {
		t.Fatalf("expected 5 items, got %d", totals.ItemsCount)
	}
	if totals.Total != 39000 {
		t.Fatalf("expected total 39000, got %d", totals.Total)
	}
	if totals.AverageItemPrice != 7800 {
		t.Fatalf("expected average 7800, got %d", totals.AverageItemPrice)
	}
}

func TestComputeTotalsPercentageDiscount(t *testing.T) {
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 10000, Quantity: 3},
	}, PercentageDiscount(10)))

	if totals.GlobalDiscount != 3000 {
		t.Fatalf("expected discount 3000, got %d", totals.GlobalDiscount)
	}
	if totals.Total != 27000 {
		t.Fatalf("expected total 27000, got %d", totals.Total)
	}
}

func TestComputeTotalsAmountDiscount(t *testing.T) {
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 10000, Quantity: 3},
	}, AmountDiscount(5000)))

	if totals.GlobalDiscount != 5000 {
		t.Fatalf("expected discount 5000, got %d", totals.GlobalDiscount)
	}
	if totals.Total != 25000 {
		t.Fatalf("expected total 25000, got %d", totals.Total)
	}
}

func TestComputeTotalsNeverNegative(t *testing.T) {
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 1000, Quantity: 1},
	}, AmountDiscount(99999)))

	if totals.Total != 0 {
		t.Fatalf("expected clamped total 0, got %d", totals.Total)
	}
}

func TestComputeTotalsItemDiscountClampedPerLine(t *testing.T) {
	// A line discount larger than the line price must not drag the
	// subtotal below the other lines' contribution.
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 1000, Quantity: 1, Discount: 5000},
		{ID: "i2", VariantID: 2, UnitPrice: 2000, Quantity: 1},
	}, Discount{}))

	if totals.ItemsSubtotal != 2000 {
		t.Fatalf("expected subtotal 2000, got %d", totals.ItemsSubtotal)
	}
}

func TestComputeTotalsAverageRounds(t *testing.T) {
	totals := ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 1001, Quantity: 2},
	}, Discount{}))

	// 2002 / 2 = 1001 exactly; now force a .5 case.
	if totals.AverageItemPrice != 1001 {
		t.Fatalf("expected average 1001, got %d", totals.AverageItemPrice)
	}

	totals = ComputeTotals(cartWith([]LineItem{
		{ID: "i1", VariantID: 1, UnitPrice: 333, Quantity: 3},
		{ID: "i2", VariantID: 2, UnitPrice: 334, Quantity: 1},
	}, Discount{}))
	// subtotal 1333 over 4 items = 333.25 -> 333
	if totals.AverageItemPrice != 333 {
		t.Fatalf("expected average 333, got %d", totals.AverageItemPrice)
	}
}

func TestPercentageDiscountClamps(t *testing.T) {
	if d := PercentageDiscount(150); d.Percent != 100 {
		t.Fatalf("expected clamp to 100, got %f", d.Percent)
	}
	if d := PercentageDiscount(-5); !d.IsZero() {
		t.Fatalf("expected no discount for negative percent, got %+v", d)
	}
	if d := AmountDiscount(-100); !d.IsZero() {
		t.Fatalf("expected no discount for negative amount, got %+v", d)
	}
}

func TestSuggestedPaymentMethods(t *testing.T) {
	cases := []struct {
		total int64
		want  []PaymentMethod
	}{
		{total: 5000, want: []PaymentMethod{PaymentCash}},
		{total: 20000, want: []PaymentMethod{PaymentCash, PaymentCard}},
		{total: 75000, want: []PaymentMethod{PaymentCash, PaymentCard, PaymentTransfer}},
	}

	for _, tc := range cases {
		got := SuggestedPaymentMethods(tc.total)
		if len(got) != len(tc.want) {
			t.Fatalf("total %d: expected %v, got %v", tc.total, tc.want, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("total %d: expected %v, got %v", tc.total, tc.want, got)
			}
		}
	}
}
