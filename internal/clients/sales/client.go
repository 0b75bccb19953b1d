// Package sales submits completed carts to the sale backend. Submissions run
// behind a circuit breaker so a struggling backend fails fast at the register
// instead of queueing cashiers.
package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tiendacaps/pos-api/internal/domain"
)

var (
	// ErrSaleRejected is returned when the backend refuses the sale payload (4xx).
	ErrSaleRejected = errors.New("sales: sale rejected by backend")
	// ErrUnavailable wraps transport failures, 5xx responses, and an open breaker.
	ErrUnavailable = errors.New("sales: backend unavailable")
	// ErrInvalidInput is returned before any network call for malformed requests.
	ErrInvalidInput = errors.New("sales: invalid input")
)

const defaultTimeout = 5 * time.Second

// BreakerSettings tunes the circuit breaker around sale submission.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// Client is an HTTP client for the sale submission backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[domain.SaleResult]
}

// Option customises Client construction.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	breaker    BreakerSettings
	onState    func(name string, from, to gobreaker.State)
}

// WithHTTPClient overrides the HTTP client, primarily for testing.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		if client != nil {
			cfg.httpClient = client
		}
	}
}

// WithBreakerSettings overrides the circuit breaker tuning.
func WithBreakerSettings(settings BreakerSettings) Option {
	return func(cfg *clientConfig) {
		cfg.breaker = settings
	}
}

// WithStateChangeHook observes breaker transitions, typically for logging.
func WithStateChangeHook(hook func(name string, from, to gobreaker.State)) Option {
	return func(cfg *clientConfig) {
		cfg.onState = hook
	}
}

// NewClient constructs a sales client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("sales: base url is required")
	}

	cfg := clientConfig{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: BreakerSettings{
			MaxRequests:         3,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
			ConsecutiveFailures: 5,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	failures := cfg.breaker.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:        "sale-submission",
		MaxRequests: cfg.breaker.MaxRequests,
		Interval:    cfg.breaker.Interval,
		Timeout:     cfg.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A rejected payload is the backend working as intended; only
		// availability failures count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSaleRejected)
		},
	}
	if cfg.onState != nil {
		settings.OnStateChange = cfg.onState
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: cfg.httpClient,
		breaker:    gobreaker.NewCircuitBreaker[domain.SaleResult](settings),
	}, nil
}

type saleItemPayload struct {
	VariantID      int64 `json:"variant_id"`
	Quantity       int   `json:"quantity"`
	UnitPrice      int64 `json:"unit_price"`
	DiscountAmount int64 `json:"discount_amount"`
}

type salePayload struct {
	Items              []saleItemPayload `json:"items"`
	PaymentMethod      string            `json:"payment_method"`
	DiscountPercentage float64           `json:"discount_percentage"`
	DiscountAmount     int64             `json:"discount_amount"`
	CustomerPhone      string            `json:"customer_phone,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	POSTerminal        string            `json:"pos_terminal,omitempty"`
}

type quickSalePayload struct {
	VariantID      int64  `json:"variant_id"`
	Quantity       int    `json:"quantity"`
	PaymentMethod  string `json:"payment_method"`
	DiscountAmount int64  `json:"discount_amount"`
}

type saleResponse struct {
	SaleNumber  string    `json:"sale_number"`
	TotalAmount float64   `json:"total_amount"`
	TotalItems  int       `json:"total_items"`
	CompletedAt time.Time `json:"completed_at"`
}

func (p saleResponse) toResult() domain.SaleResult {
	return domain.SaleResult{
		SaleNumber:  p.SaleNumber,
		TotalAmount: int64(math.Round(p.TotalAmount)),
		ItemsCount:  p.TotalItems,
		CompletedAt: p.CompletedAt,
	}
}

// The quick endpoint answers 200 for refusals too: the sale rides in an
// envelope and success=false is the rejection signal.
type quickSaleResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Sale    *saleResponse `json:"sale"`
}

// SubmitSale sends a full multi-item sale to the backend.
func (c *Client) SubmitSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	if len(req.Items) == 0 {
		return domain.SaleResult{}, fmt.Errorf("%w: sale needs at least one item", ErrInvalidInput)
	}
	if !domain.KnownPaymentMethod(req.PaymentMethod) {
		return domain.SaleResult{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, req.PaymentMethod)
	}

	items := make([]saleItemPayload, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, saleItemPayload{
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountAmount: item.DiscountAmount,
		})
	}

	payload := salePayload{
		Items:              items,
		PaymentMethod:      string(req.PaymentMethod),
		DiscountPercentage: req.DiscountPercentage,
		DiscountAmount:     req.DiscountAmount,
		CustomerPhone:      req.CustomerPhone,
		Notes:              req.Notes,
		POSTerminal:        req.RegisterID,
	}

	return c.submit(ctx, "/sales", payload, decodeSale)
}

// SubmitQuickSale sends the single-item fast path.
func (c *Client) SubmitQuickSale(ctx context.Context, req domain.QuickSaleRequest) (domain.SaleResult, error) {
	if req.VariantID <= 0 {
		return domain.SaleResult{}, fmt.Errorf("%w: variant id must be positive", ErrInvalidInput)
	}
	if req.Quantity <= 0 {
		return domain.SaleResult{}, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	// The quick endpoint only takes the simple tender types; mixed and
	// other require the full sale form.
	switch req.PaymentMethod {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentTransfer:
	default:
		return domain.SaleResult{}, fmt.Errorf("%w: payment method %q not accepted for quick sale", ErrInvalidInput, req.PaymentMethod)
	}

	payload := quickSalePayload{
		VariantID:      req.VariantID,
		Quantity:       req.Quantity,
		PaymentMethod:  string(req.PaymentMethod),
		DiscountAmount: req.DiscountAmount,
	}

	return c.submit(ctx, "/sales/quick", payload, decodeQuickSale)
}

func (c *Client) submit(ctx context.Context, path string, payload any, decode func([]byte) (domain.SaleResult, error)) (domain.SaleResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.SaleResult{}, fmt.Errorf("sales: encode request: %w", err)
	}

	result, err := c.breaker.Execute(func() (domain.SaleResult, error) {
		return c.post(ctx, path, body, decode)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.SaleResult{}, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
		}
		return domain.SaleResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, decode func([]byte) (domain.SaleResult, error)) (domain.SaleResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.SaleResult{}, fmt.Errorf("sales: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SaleResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.SaleResult{}, fmt.Errorf("%w: backend returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return domain.SaleResult{}, fmt.Errorf("%w: backend returned %d", ErrSaleRejected, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SaleResult{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	return decode(data)
}

func decodeSale(data []byte) (domain.SaleResult, error) {
	var payload saleResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.SaleResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return payload.toResult(), nil
}

func decodeQuickSale(data []byte) (domain.SaleResult, error) {
	var payload quickSaleResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.SaleResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !payload.Success {
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = "quick sale refused"
		}
		return domain.SaleResult{}, fmt.Errorf("%w: %s", ErrSaleRejected, message)
	}
	if payload.Sale == nil {
		return domain.SaleResult{}, fmt.Errorf("%w: quick sale response missing sale", ErrUnavailable)
	}
	return payload.Sale.toResult(), nil
}
