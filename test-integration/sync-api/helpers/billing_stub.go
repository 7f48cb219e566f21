// Package helpers provides shared infrastructure for the sync API
// integration suite: a stubbed billing platform, dataset factories, and a
// server lifecycle helper.
package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/billing"
)

// BillingDataset is the billing platform state served by the stub.
type BillingDataset struct {
	Subscriptions []billing.Subscription
	Customers     []billing.Customer
	Invoices      []billing.Invoice
	Charges       []billing.Charge
}

// StubBillingServer is a fake upstream billing platform. It speaks the
// cursor-paginated list protocol the sync pipeline consumes and can be
// switched into failure or slow modes mid-test.
type StubBillingServer struct {
	server *httptest.Server

	mu         sync.Mutex
	dataset    BillingDataset
	failStatus int
	delay      time.Duration
	requests   int
}

// NewStubBillingServer starts a stub billing platform serving the dataset.
// The caller must Close it when done.
func NewStubBillingServer(dataset BillingDataset) *StubBillingServer {
	s := &StubBillingServer{dataset: dataset}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the stub's base URL, suitable for billing.baseUrl.
func (s *StubBillingServer) URL() string {
	return s.server.URL
}

// Close shuts the stub down.
func (s *StubBillingServer) Close() {
	s.server.Close()
}

// SetDataset replaces the billing data served to subsequent requests.
func (s *StubBillingServer) SetDataset(dataset BillingDataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = dataset
}

// FailWith makes every subsequent request fail with the given status code.
// Passing 0 restores normal behavior.
func (s *StubBillingServer) FailWith(statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = statusCode
}

// SetDelay adds artificial latency to every subsequent request. Passing 0
// removes it.
func (s *StubBillingServer) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns the number of requests served so far.
func (s *StubBillingServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func (s *StubBillingServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	dataset := s.dataset
	failStatus := s.failStatus
	delay := s.delay
	s.requests++
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeBillingError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if failStatus != 0 {
		writeBillingError(w, failStatus, "injected failure")
		return
	}

	limit := billing.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBillingError(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = parsed
	}
	cursor := r.URL.Query().Get("starting_after")

	switch r.URL.Path {
	case "/v1/subscriptions":
		writePage(w, paginate(dataset.Subscriptions, cursor, limit))
	case "/v1/customers":
		writePage(w, paginate(dataset.Customers, cursor, limit))
	case "/v1/invoices":
		writePage(w, paginate(dataset.Invoices, cursor, limit))
	case "/v1/charges":
		writePage(w, paginate(dataset.Charges, cursor, limit))
	default:
		writeBillingError(w, http.StatusNotFound, "no such endpoint: "+r.URL.Path)
	}
}

// paginate slices one page out of items, starting just past the cursor.
func paginate[T billing.Identifiable](items []T, cursor string, limit int) billing.Page[T] {
	start := 0
	if cursor != "" {
		for i, item := range items {
			if item.ItemID() == cursor {
				start = i + 1
				break
			}
		}
	}

	end := min(start+limit, len(items))
	return billing.Page[T]{
		Data:    items[start:end],
		HasMore: end < len(items),
	}
}

func writePage[T billing.Identifiable](w http.ResponseWriter, page billing.Page[T]) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func writeBillingError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"message": message,
			"type":    "api_error",
		},
	})
}
