package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultRequestTimeout is the per-request timeout for billing API calls.
	DefaultRequestTimeout = 30 * time.Second

	// maxResponseSize is the maximum allowed response body size (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// userAgent identifies this service to the billing platform.
	userAgent = "rvl-sync-api/1.0"

	// accountHeader scopes a request to one merchant account.
	accountHeader = "X-Billing-Account"
)

// Client is the typed facade over the billing platform consumed by the sync
// pipeline. List operations walk every page of the addressed collection and
// return a bounded snapshot; GetCustomer retrieves a single record.
type Client interface {
	// ListAllSubscriptions returns every subscription for the account.
	ListAllSubscriptions(ctx context.Context, accountID string) ([]Subscription, error)

	// ListAllCustomers returns every customer for the account, including
	// delinquent ones. Deleted tombstones do not appear in list output.
	ListAllCustomers(ctx context.Context, accountID string) ([]Customer, error)

	// ListAllInvoices returns every invoice for the account.
	ListAllInvoices(ctx context.Context, accountID string) ([]Invoice, error)

	// ListAllCharges returns every charge for the account.
	ListAllCharges(ctx context.Context, accountID string) ([]Charge, error)

	// GetCustomer returns a single customer. A deleted tombstone is rejected
	// with ErrCustomerDeleted rather than returned.
	GetCustomer(ctx context.Context, accountID string, customerID string) (*Customer, error)
}

// ClientConfig configures the HTTP billing client.
type ClientConfig struct {
	// BaseURL is the billing platform endpoint, e.g. https://api.billing.example.com.
	BaseURL string
	// APIKey authenticates every request as a bearer token.
	APIKey string
	// PageSize is the per-page limit for list operations (default 100).
	PageSize int
	// MaxPages bounds each list-all walk (default 100).
	MaxPages int
	// RateLimitRPS throttles outgoing requests when positive.
	RateLimitRPS float64
	// Retry configures the backoff executor for every request.
	Retry RetryOptions
	// Timeout is the per-request timeout (default DefaultRequestTimeout).
	Timeout time.Duration
}

type httpClient struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	pageSize int
	maxPages int
	retry    RetryOptions
}

// NewClient creates a billing platform client from the given configuration.
func NewClient(cfg ClientConfig) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("billing client requires a base URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid billing base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("billing client requires an API key")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	// Burst of one: requests are strictly paced so a long list walk cannot
	// front-load a burst and trip the platform limiter anyway.
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	return &httpClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
		limiter:  limiter,
		pageSize: pageSize,
		maxPages: maxPages,
		retry:    cfg.Retry,
	}, nil
}

func (c *httpClient) fetchOptions() FetchOptions {
	return FetchOptions{
		PageSize: c.pageSize,
		MaxPages: c.maxPages,
		Retry:    c.retry,
	}
}

// ListAllSubscriptions implements Client.
func (c *httpClient) ListAllSubscriptions(ctx context.Context, accountID string) ([]Subscription, error) {
	return FetchAll(ctx, func(ctx context.Context, startingAfter string, limit int) (Page[Subscription], error) {
		return listPage[Subscription](ctx, c, accountID, "/v1/subscriptions", startingAfter, limit)
	}, c.fetchOptions())
}

// ListAllCustomers implements Client.
func (c *httpClient) ListAllCustomers(ctx context.Context, accountID string) ([]Customer, error) {
	return FetchAll(ctx, func(ctx context.Context, startingAfter string, limit int) (Page[Customer], error) {
		return listPage[Customer](ctx, c, accountID, "/v1/customers", startingAfter, limit)
	}, c.fetchOptions())
}

// ListAllInvoices implements Client.
func (c *httpClient) ListAllInvoices(ctx context.Context, accountID string) ([]Invoice, error) {
	return FetchAll(ctx, func(ctx context.Context, startingAfter string, limit int) (Page[Invoice], error) {
		return listPage[Invoice](ctx, c, accountID, "/v1/invoices", startingAfter, limit)
	}, c.fetchOptions())
}

// ListAllCharges implements Client.
func (c *httpClient) ListAllCharges(ctx context.Context, accountID string) ([]Charge, error) {
	return FetchAll(ctx, func(ctx context.Context, startingAfter string, limit int) (Page[Charge], error) {
		return listPage[Charge](ctx, c, accountID, "/v1/charges", startingAfter, limit)
	}, c.fetchOptions())
}

// GetCustomer implements Client.
func (c *httpClient) GetCustomer(ctx context.Context, accountID string, customerID string) (*Customer, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	customer, err := Execute(ctx, func() (*Customer, error) {
		body, err := c.get(ctx, accountID, "/v1/customers/"+url.PathEscape(customerID), nil)
		if err != nil {
			return nil, err
		}
		var cust Customer
		if err := json.Unmarshal(body, &cust); err != nil {
			return nil, fmt.Errorf("decoding customer %s: %w", customerID, err)
		}
		return &cust, nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	if customer.Deleted {
		return nil, fmt.Errorf("customer %s: %w", customerID, ErrCustomerDeleted)
	}
	return customer, nil
}

// listPage requests one page of a list endpoint and decodes it.
func listPage[T Identifiable](
	ctx context.Context,
	c *httpClient,
	accountID string,
	path string,
	startingAfter string,
	limit int,
) (Page[T], error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if startingAfter != "" {
		query.Set("starting_after", startingAfter)
	}

	body, err := c.get(ctx, accountID, path, query)
	if err != nil {
		return Page[T]{}, err
	}

	var page Page[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return Page[T]{}, fmt.Errorf("decoding %s page: %w", path, err)
	}
	return page, nil
}

// get performs a single GET against the billing platform, honoring the rate
// limiter, and maps non-2xx responses to APIError values.
func (c *httpClient) get(ctx context.Context, accountID string, path string, query url.Values) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if accountID != "" {
		req.Header.Set(accountHeader, accountID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request for %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response for %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrorFromResponse(resp, body)
	}
	return body, nil
}

// errorEnvelope is the platform's error response body.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func apiErrorFromResponse(resp *http.Response, body []byte) *APIError {
	message := resp.Status
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
	}

	apiErr := &APIError{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    message,
		RequestID:  resp.Header.Get("Request-Id"),
	}
	if apiErr.Kind == KindRateLimited {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return apiErr
}

// parseRetryAfter reads an integer-seconds Retry-After value. Date-format
// values are ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
