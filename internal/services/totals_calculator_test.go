package services

import (
	"context"
	"testing"
	"time"

	domain "github.com/tiendacaps/pos-api/internal/domain"
)

func TestTotalsMatchesComputation(t *testing.T) {
	calculator := NewTotalsCalculator(TotalsCalculatorDeps{Clock: testClock})

	cart := cartWith(
		lineItem("item-001", 7, 2, 10000),
		lineItem("item-002", 8, 1, 45000),
	)
	cart.Discount = domain.PercentageDiscount(10)

	totals := calculator.Totals(context.Background(), cart)
	if totals.ItemsSubtotal != 65000 {
		t.Errorf("unexpected subtotal: %d", totals.ItemsSubtotal)
	}
	if totals.GlobalDiscount != 6500 {
		t.Errorf("unexpected global discount: %d", totals.GlobalDiscount)
	}
	if totals.Total != 58500 {
		t.Errorf("unexpected total: %d", totals.Total)
	}
	if totals.ItemsCount != 3 {
		t.Errorf("unexpected items count: %d", totals.ItemsCount)
	}
}

func TestTotalsCacheKeyTracksContent(t *testing.T) {
	calculator := NewTotalsCalculator(TotalsCalculatorDeps{Clock: testClock})
	ctx := context.Background()

	cart := cartWith(lineItem("item-001", 7, 2, 10000))
	first := calculator.Totals(ctx, cart)

	// Same content from a different snapshot hits the memo and agrees.
	again := calculator.Totals(ctx, cart.Clone())
	if again != first {
		t.Errorf("identical carts must produce identical totals: %+v vs %+v", first, again)
	}

	// Changing any priced input must produce fresh figures.
	cart.Items[0].Quantity = 3
	changed := calculator.Totals(ctx, cart)
	if changed.ItemsSubtotal != 30000 {
		t.Errorf("expected recomputed subtotal 30000, got %d", changed.ItemsSubtotal)
	}

	cart.Items[0].Discount = 5000
	discounted := calculator.Totals(ctx, cart)
	if discounted.ItemsSubtotal != 25000 {
		t.Errorf("expected item discount reflected, got %d", discounted.ItemsSubtotal)
	}
}

func TestTotalsCacheExpires(t *testing.T) {
	current := testClock()
	calculator := NewTotalsCalculator(TotalsCalculatorDeps{
		Clock:    func() time.Time { return current },
		CacheTTL: time.Second,
	})
	ctx := context.Background()

	cart := cartWith(lineItem("item-001", 7, 1, 10000))
	if totals := calculator.Totals(ctx, cart); totals.Total != 10000 {
		t.Fatalf("unexpected total: %d", totals.Total)
	}

	current = current.Add(2 * time.Second)
	if totals := calculator.Totals(ctx, cart); totals.Total != 10000 {
		t.Fatalf("expired entry must be recomputed, got %d", totals.Total)
	}
}

func TestTotalsCacheSweepsExpiredOnPut(t *testing.T) {
	current := testClock()
	calculator := NewTotalsCalculator(TotalsCalculatorDeps{
		Clock:    func() time.Time { return current },
		CacheTTL: time.Second,
	})
	ctx := context.Background()

	// Every mutation produces a distinct key; stale ones must not pile up.
	for i := 1; i <= 5; i++ {
		cart := cartWith(lineItem("item-001", 7, i, 10000))
		calculator.Totals(ctx, cart)
	}
	current = current.Add(2 * time.Second)
	calculator.Totals(ctx, cartWith(lineItem("item-002", 8, 1, 5000)))

	cache := calculator.(*totalsCalculator).cache
	cache.mu.RLock()
	size := len(cache.m)
	cache.mu.RUnlock()
	if size != 1 {
		t.Fatalf("expected expired entries to be swept, cache holds %d", size)
	}
}

func TestTotalsAmountDiscountFloorsAtZero(t *testing.T) {
	calculator := NewTotalsCalculator(TotalsCalculatorDeps{Clock: testClock})

	cart := cartWith(lineItem("item-001", 7, 1, 10000))
	cart.Discount = domain.AmountDiscount(25000)

	totals := calculator.Totals(context.Background(), cart)
	if totals.Total != 0 {
		t.Errorf("total must never go negative, got %d", totals.Total)
	}
}
