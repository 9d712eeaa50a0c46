package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"marrfa-assistant/internal/config"
	"marrfa-assistant/internal/model"
	"marrfa-assistant/internal/resilience"
)

// ErrListingsUnavailable marks every failure to obtain a listings page.
// It is distinct from a successful search with zero matches.
var ErrListingsUnavailable = errors.New("listings api unavailable")

// StatusError is a non-2xx answer from the Listings API
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("listings api status: %s", e.Status)
	}
	return fmt.Sprintf("listings api status: %s: %s", e.Status, truncate(strings.TrimSpace(e.Body), 200))
}

// Params are the Listings API query parameters; zero values are omitted
type Params struct {
	SearchQuery  string
	UnitTypes    []string
	UnitBedrooms []string
	Status       []string
	SaleStatus   []string
	PriceFrom    *float64
	PriceTo      *float64
	Page         int
	PerPage      int
}

// Values encodes the params, joining list values as CSV
func (p Params) Values() url.Values {
	v := url.Values{}
	if p.SearchQuery != "" {
		v.Set("search_query", p.SearchQuery)
	}
	if len(p.UnitTypes) > 0 {
		v.Set("unit_types", strings.Join(p.UnitTypes, ","))
	}
	if len(p.UnitBedrooms) > 0 {
		v.Set("unit_bedrooms", strings.Join(p.UnitBedrooms, ","))
	}
	if len(p.Status) > 0 {
		v.Set("status", strings.Join(p.Status, ","))
	}
	if len(p.SaleStatus) > 0 {
		v.Set("sale_status", strings.Join(p.SaleStatus, ","))
	}
	if p.PriceFrom != nil {
		v.Set("unit_price_from", strconv.FormatFloat(*p.PriceFrom, 'f', -1, 64))
	}
	if p.PriceTo != nil {
		v.Set("unit_price_to", strconv.FormatFloat(*p.PriceTo, 'f', -1, 64))
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return v
}

// Result is one normalized page of listings in API order
type Result struct {
	Listings []model.PropertyListing
	Total    int
}

// Client calls the Marrfa Listings API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewClient creates a listings client from configuration
func NewClient(cfg *config.ListingsConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.MaxAttempts
	policy.RetryInitialBackoff = cfg.InitialBackoff
	policy.BreakerEnabled = cfg.BreakerEnabled

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		executor:   resilience.NewExecutor(policy, logger),
		normalizer: NewNormalizer(cfg.ListingURLPrefix, cfg.PlaceholderImage),
		logger:     logger,
	}
}

// Search fetches and normalizes one page. Every failure wraps ErrListingsUnavailable.
func (c *Client) Search(ctx context.Context, params Params) (*Result, error) {
	var payload map[string]any

	err := c.executor.Execute(ctx, "listings.search", func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		body, err := c.get(ctx, params.Values())
		if err != nil {
			return err
		}
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		payload = nil
		if err := decoder.Decode(&payload); err != nil {
			return fmt.Errorf("failed to decode listings response: %w", err)
		}
		return nil
	}, classifyListingsError)
	if err != nil {
		c.logger.Warn("listings search failed", zap.Error(err), zap.String("params", params.Values().Encode()))
		return nil, fmt.Errorf("%w: %w", ErrListingsUnavailable, err)
	}

	listings, total := c.normalizer.Page(payload)
	c.logger.Debug("listings search completed",
		zap.Int("returned", len(listings)),
		zap.Int("total", total),
	)
	return &Result{Listings: listings, Total: total}, nil
}

func (c *Client) get(ctx context.Context, values url.Values) ([]byte, error) {
	endpoint := c.baseURL
	if encoded := values.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("listings api call",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	return body, nil
}

func classifyListingsError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	// client timeouts surface as net.Error
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
