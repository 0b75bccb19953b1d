package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/tiendacaps/pos-api/internal/domain"
)

const (
	defaultTotalsCacheTTL = 2 * time.Second
	// maxTotalsCacheEntries bounds the memo between sweeps; every accepted
	// cart mutation produces a new key, so the map would otherwise grow for
	// the life of the process.
	maxTotalsCacheEntries = 512
)

// TotalsCalculatorDeps configures the memoizing totals calculator.
type TotalsCalculatorDeps struct {
	Clock    func() time.Time
	CacheTTL time.Duration
}

type totalsCalculator struct {
	cache *totalsCache
}

// NewTotalsCalculator wraps the pure totals computation with a short-lived
// memo keyed on cart content. Repeated UI polls for an unchanged cart reuse
// the cached figures.
func NewTotalsCalculator(deps TotalsCalculatorDeps) TotalsCalculator {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultTotalsCacheTTL
	}
	return &totalsCalculator{cache: newTotalsCache(ttl, now)}
}

// Totals returns the money summary for the cart snapshot.
func (c *totalsCalculator) Totals(_ context.Context, cart domain.Cart) domain.Totals {
	key := buildTotalsCacheKey(cart)
	if totals, ok := c.cache.Get(key); ok {
		return totals
	}
	totals := domain.ComputeTotals(cart)
	c.cache.Put(key, totals)
	return totals
}

// buildTotalsCacheKey hashes every input that feeds the computation: item
// identity, quantity, price, and both discount layers.
func buildTotalsCacheKey(cart domain.Cart) string {
	parts := make([]string, 0, len(cart.Items)+1)
	parts = append(parts, fmt.Sprintf("%s|%g|%d", cart.Discount.Kind, cart.Discount.Percent, cart.Discount.Amount))
	for _, item := range cart.Items {
		parts = append(parts, fmt.Sprintf("%d,%d,%d,%d", item.VariantID, item.Quantity, item.UnitPrice, item.Discount))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}

type totalsCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]totalsCacheEntry
}

type totalsCacheEntry struct {
	totals  domain.Totals
	expires time.Time
}

func newTotalsCache(ttl time.Duration, now func() time.Time) *totalsCache {
	return &totalsCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]totalsCacheEntry),
	}
}

func (c *totalsCache) Get(key string) (domain.Totals, bool) {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return domain.Totals{}, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return domain.Totals{}, false
	}
	return entry.totals, true
}

func (c *totalsCache) Put(key string, totals domain.Totals) {
	now := c.now()
	c.mu.Lock()
	for k, entry := range c.m {
		if now.After(entry.expires) {
			delete(c.m, k)
		}
	}
	if len(c.m) >= maxTotalsCacheEntries {
		c.m = make(map[string]totalsCacheEntry, maxTotalsCacheEntries)
	}
	c.m[key] = totalsCacheEntry{totals: totals, expires: now.Add(c.ttl)}
	c.mu.Unlock()
}
