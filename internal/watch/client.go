// Package watch implements the client side of the sync status contract:
// a typed HTTP client for the sync API and a terminal model that polls
// the status endpoint until the current run reaches a terminal stage.
package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/versions"
)

const (
	// DefaultTimeout bounds every request made by the client
	DefaultTimeout = 10 * time.Second

	// userAgent identifies the watch client to the sync API
	userAgent = "rvl-sync-watch/1.0"

	// maxErrorBody caps how much of an error response is read when
	// extracting the server's error message
	maxErrorBody = 1 << 20
)

// APIError is a non-2xx response from the sync API.
type APIError struct {
	StatusCode int
	URL        string
	Message    string
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// TriggerResult is the server's classification of a sync trigger request.
// Result carries one of the dispatcher outcome strings (triggered, skipped,
// already_syncing, error).
type TriggerResult struct {
	AccountID string `json:"account_id"`
	Result    string `json:"result"`
	Message   string `json:"message,omitempty"`
}

// SignalsPage is one page of detected revenue signals, newest first.
type SignalsPage struct {
	Signals []signals.RevenueSignal `json:"signals"`
	Total   int64                   `json:"total"`
}

// DetectResult reports an on-demand signal detection run.
type DetectResult struct {
	AccountID string                  `json:"account_id"`
	Inserted  int                     `json:"inserted"`
	Signals   []signals.RevenueSignal `json:"signals"`
}

// Client is the surface of the sync API consumed by the watch and detect
// commands.
type Client interface {
	// GetStatus reads the current sync status of the account
	GetStatus(ctx context.Context, accountID string) (*status.SyncStatus, error)

	// TriggerSync queues a sync run for the account. Trigger outcomes the
	// server reports with a result document (triggered, skipped,
	// already_syncing, error) are returned as a TriggerResult, not an error.
	TriggerSync(ctx context.Context, accountID string, force bool) (*TriggerResult, error)

	// ListSignals lists detected revenue signals, optionally scoped to one
	// account
	ListSignals(ctx context.Context, accountID string, limit int) (*SignalsPage, error)

	// DetectSignals runs the detection heuristics for the account and
	// persists any new signals
	DetectSignals(ctx context.Context, accountID string) (*DetectResult, error)

	// ServerVersion reads the server's build version information
	ServerVersion(ctx context.Context) (*versions.VersionInfo, error)
}

// HTTPClient is the default Client implementation.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// WithRequestTimeout overrides the default per-request timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// NewClient creates a typed client for the sync API at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("sync API base URL cannot be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid sync API base URL %q: %w", baseURL, err)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type syncRequest struct {
	AccountID string `json:"account_id"`
	Force     bool   `json:"force,omitempty"`
}

type detectRequest struct {
	AccountID string `json:"account_id"`
}

// GetStatus reads the current sync status of the account.
func (c *HTTPClient) GetStatus(ctx context.Context, accountID string) (*status.SyncStatus, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}

	query := url.Values{"account_id": {accountID}}
	var syncStatus status.SyncStatus
	if err := c.getJSON(ctx, "/api/v0/sync/status", query, &syncStatus); err != nil {
		return nil, err
	}
	return &syncStatus, nil
}

// TriggerSync queues a sync run for the account.
func (c *HTTPClient) TriggerSync(ctx context.Context, accountID string, force bool) (*TriggerResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}

	// 202/200/409/503 all carry a trigger result document
	var result TriggerResult
	err := c.postJSON(ctx, "/api/v0/sync", syncRequest{AccountID: accountID, Force: force}, &result,
		http.StatusAccepted, http.StatusOK, http.StatusConflict, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSignals lists detected revenue signals, newest first. An empty
// accountID lists signals across all accounts; a non-positive limit uses
// the server default.
func (c *HTTPClient) ListSignals(ctx context.Context, accountID string, limit int) (*SignalsPage, error) {
	query := url.Values{}
	if accountID != "" {
		query.Set("account_id", accountID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var page SignalsPage
	if err := c.getJSON(ctx, "/api/v0/signals", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DetectSignals runs the detection heuristics for the account.
func (c *HTTPClient) DetectSignals(ctx context.Context, accountID string) (*DetectResult, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}

	var result DetectResult
	err := c.postJSON(ctx, "/api/v0/signals/detect", detectRequest{AccountID: accountID}, &result, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ServerVersion reads the server's build version information.
func (c *HTTPClient) ServerVersion(ctx context.Context) (*versions.VersionInfo, error) {
	var info versions.VersionInfo
	if err := c.getJSON(ctx, "/version", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out, http.StatusOK)
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any, okStatuses ...int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, okStatuses...)
}

func (c *HTTPClient) do(req *http.Request, out any, okStatuses ...int) error {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if !slices.Contains(okStatuses, resp.StatusCode) {
		return newAPIError(resp, req.URL.String())
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.String(), err)
	}
	return nil
}

// newAPIError extracts the server's error message when the response carries
// the standard error document and falls back to the HTTP status text.
func newAPIError(resp *http.Response, requestURL string) error {
	message := resp.Status

	var doc struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&doc); err == nil && doc.Error != "" {
		message = doc.Error
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		URL:        requestURL,
		Message:    message,
	}
}
