// Package catalog talks to the product lookup backend over HTTP. The POS
// never owns product data; it only reads stock and price snapshots.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tiendacaps/pos-api/internal/domain"
)

var (
	// ErrProductNotFound is returned when the backend has no variant for the code or id.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrUnavailable wraps transport failures and 5xx responses from the backend.
	ErrUnavailable = errors.New("catalog: backend unavailable")
	// ErrInvalidInput is returned for request parameters the backend rejects.
	ErrInvalidInput = errors.New("catalog: invalid input")
)

const defaultTimeout = 5 * time.Second

// Client is an HTTP client for the product lookup backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises Client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, primarily for testing.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient constructs a catalog client for the given base URL. Outbound
// requests carry otel spans via the instrumented transport.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("catalog: base url is required")
	}

	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// SearchQuery narrows a product search. Zero-valued fields are omitted.
type SearchQuery struct {
	Term     string
	Category string
	Size     string
	Color    string
	Limit    int
}

type productPayload struct {
	VariantID      int64   `json:"variant_id"`
	ProductName    string  `json:"product_name"`
	SKU            string  `json:"sku"`
	Size           string  `json:"size"`
	Color          string  `json:"color"`
	Price          float64 `json:"price"`
	AvailableStock int     `json:"available_stock"`
}

type scanResponse struct {
	Found   bool            `json:"found"`
	Product *productPayload `json:"product"`
	Message string          `json:"message"`
}

type searchResponse struct {
	Results []productPayload `json:"results"`
}

// Scan resolves a barcode or short code to a product variant. A scan that
// matches nothing is not an error; the result carries Found=false and the
// backend's message.
func (c *Client) Scan(ctx context.Context, code string) (domain.ScanResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ScanResult{}, fmt.Errorf("%w: empty code", ErrInvalidInput)
	}

	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("catalog: encode scan request: %w", err)
	}

	var payload scanResponse
	if err := c.do(ctx, http.MethodPost, "/products/scan", bytes.NewReader(body), &payload); err != nil {
		return domain.ScanResult{}, err
	}

	result := domain.ScanResult{Found: payload.Found, Message: payload.Message}
	if payload.Product != nil {
		product := payload.Product.toDomain()
		result.Product = &product
	}
	return result, nil
}

// Search runs a filtered product search.
func (c *Client) Search(ctx context.Context, query SearchQuery) ([]domain.ProductSummary, error) {
	params := url.Values{}
	if term := strings.TrimSpace(query.Term); term != "" {
		params.Set("q", term)
	}
	if query.Category != "" {
		params.Set("category", query.Category)
	}
	if query.Size != "" {
		params.Set("size", query.Size)
	}
	if query.Color != "" {
		params.Set("color", query.Color)
	}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}

	path := "/products/search"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var payload searchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return toDomainList(payload.Results), nil
}

// QuickSearch is the autocomplete path. Terms shorter than two characters
// return no results without hitting the backend, matching front-end behaviour.
func (c *Client) QuickSearch(ctx context.Context, term string, limit int) ([]domain.ProductSummary, error) {
	term = strings.TrimSpace(term)
	if len(term) < 2 {
		return nil, nil
	}

	path := "/products/quick-search/" + url.PathEscape(term)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var payload searchResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return toDomainList(payload.Results), nil
}

// GetVariant fetches a single variant by id.
func (c *Client) GetVariant(ctx context.Context, variantID int64) (domain.ProductSummary, error) {
	if variantID <= 0 {
		return domain.ProductSummary{}, fmt.Errorf("%w: variant id must be positive", ErrInvalidInput)
	}

	var payload productPayload
	path := "/products/variants/" + strconv.FormatInt(variantID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return domain.ProductSummary{}, err
	}
	return payload.toDomain(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: backend returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("%w: backend returned %d", ErrInvalidInput, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func (p productPayload) toDomain() domain.ProductSummary {
	return domain.ProductSummary{
		VariantID:      p.VariantID,
		Name:           p.ProductName,
		SKU:            p.SKU,
		Size:           p.Size,
		Color:          p.Color,
		Price:          int64(math.Round(p.Price)),
		AvailableStock: p.AvailableStock,
	}
}

func toDomainList(payloads []productPayload) []domain.ProductSummary {
	if len(payloads) == 0 {
		return nil
	}
	out := make([]domain.ProductSummary, 0, len(payloads))
	for _, payload := range payloads {
		out = append(out, payload.toDomain())
	}
	return out
}
