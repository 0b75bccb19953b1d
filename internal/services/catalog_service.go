package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tiendacaps/pos-api/internal/clients/catalog"
	domain "github.com/tiendacaps/pos-api/internal/domain"
)

const (
	catalogMetricNamespace = "github.com/tiendacaps/pos-api/internal/services/catalog"

	defaultScanCacheTTL     = 30 * time.Second
	defaultQuickSearchLimit = 10
)

var (
	errCatalogLookupRequired = errors.New("catalog service: product lookup is required")
	errCatalogClockRequired  = errors.New("catalog service: clock is required")
)

// CatalogServiceDeps wires the product lookup backend and tuning knobs.
type CatalogServiceDeps struct {
	Lookup           ProductLookup
	Clock            func() time.Time
	CacheTTL         time.Duration
	QuickSearchLimit int
	Logger           func(context.Context, string, map[string]any)
	Meter            metric.Meter
}

type catalogService struct {
	lookup      ProductLookup
	cache       *scanCache
	quickLimit  int
	logger      func(context.Context, string, map[string]any)
	scanLatency metric.Float64Histogram
	cacheHits   metric.Int64Counter
}

// NewCatalogService fronts the product lookup backend with a short-lived scan
// cache. Scans repeat at the register (rescans, quantity corrections), so the
// cache absorbs the hot path without letting stock snapshots grow stale.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Lookup == nil {
		return nil, errCatalogLookupRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultScanCacheTTL
	}
	quickLimit := deps.QuickSearchLimit
	if quickLimit <= 0 {
		quickLimit = defaultQuickSearchLimit
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(catalogMetricNamespace)
	}

	scanLatency, latencyErr := meter.Float64Histogram(
		"pos.catalog.scan.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds for product scans against the backend"),
	)
	if latencyErr != nil {
		logger(context.Background(), "catalog.metric_unavailable", map[string]any{"metric": "scan.duration", "error": latencyErr.Error()})
	}

	cacheHits, cacheErr := meter.Int64Counter(
		"pos.catalog.scan.cache_hits",
		metric.WithDescription("Count of scans served from the in-process cache"),
	)
	if cacheErr != nil {
		logger(context.Background(), "catalog.metric_unavailable", map[string]any{"metric": "scan.cache_hits", "error": cacheErr.Error()})
	}

	return &catalogService{
		lookup:      deps.Lookup,
		cache:       newScanCache(ttl, func() time.Time { return deps.Clock().UTC() }),
		quickLimit:  quickLimit,
		logger:      logger,
		scanLatency: scanLatency,
		cacheHits:   cacheHits,
	}, nil
}

// Scan resolves a barcode or short code, serving recent results from cache.
func (s *catalogService) Scan(ctx context.Context, code string) (domain.ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ScanResult{}, catalog.ErrInvalidInput
	}

	if result, ok := s.cache.Get(code); ok {
		if s.cacheHits != nil {
			s.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("found", result.Found)))
		}
		return result, nil
	}

	start := time.Now()
	result, err := s.lookup.Scan(ctx, code)
	if s.scanLatency != nil {
		s.scanLatency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
			metric.WithAttributes(attribute.Bool("error", err != nil)))
	}
	if err != nil {
		return domain.ScanResult{}, err
	}

	// Misses are cached too; a mistyped code tends to be retried immediately.
	s.cache.Put(code, result)
	return result, nil
}

// Search forwards a filtered product search to the backend.
func (s *catalogService) Search(ctx context.Context, query catalog.SearchQuery) ([]domain.ProductSummary, error) {
	return s.lookup.Search(ctx, query)
}

// QuickSearch is the autocomplete path, capped at the configured limit.
func (s *catalogService) QuickSearch(ctx context.Context, term string) ([]domain.ProductSummary, error) {
	return s.lookup.QuickSearch(ctx, term, s.quickLimit)
}

// GetVariant fetches a fresh variant snapshot. Always uncached so the stock
// ceiling a cart add enforces reflects the backend's latest figure.
func (s *catalogService) GetVariant(ctx context.Context, variantID int64) (domain.ProductSummary, error) {
	if variantID <= 0 {
		return domain.ProductSummary{}, catalog.ErrInvalidInput
	}
	return s.lookup.GetVariant(ctx, variantID)
}

type scanCache struct {
	ttl time.Duration
	now func() time.Time
	mu  sync.RWMutex
	m   map[string]scanCacheEntry
}

type scanCacheEntry struct {
	result  domain.ScanResult
	expires time.Time
}

func newScanCache(ttl time.Duration, now func() time.Time) *scanCache {
	return &scanCache{
		ttl: ttl,
		now: now,
		m:   make(map[string]scanCacheEntry),
	}
}

func (c *scanCache) Get(key string) (domain.ScanResult, bool) {
	c.mu.RLock()
	entry, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return domain.ScanResult{}, false
	}
	if c.now().After(entry.expires) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return domain.ScanResult{}, false
	}
	return entry.result, true
}

func (c *scanCache) Put(key string, result domain.ScanResult) {
	c.mu.Lock()
	c.m[key] = scanCacheEntry{result: result, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}
