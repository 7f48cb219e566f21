package billing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"time"
)

// ErrorKind is an abstract classification of a billing API failure. The set
// is closed: collaborators map transport and protocol failures onto these
// tags at the boundary, and all retry decisions are made on the tag alone.
type ErrorKind string

const (
	// KindRateLimited indicates the platform rejected the call for exceeding
	// its rate limits (HTTP 429). Transient.
	KindRateLimited ErrorKind = "rate_limited"
	// KindConnection indicates a network-level failure before a well-formed
	// response was received. Transient.
	KindConnection ErrorKind = "connection"
	// KindAPIError indicates an upstream fault on the platform side
	// (HTTP 5xx). Transient.
	KindAPIError ErrorKind = "api_error"
	// KindAuth indicates rejected credentials (HTTP 401/403). Fatal.
	KindAuth ErrorKind = "auth"
	// KindInvalidRequest indicates the platform rejected the request shape
	// (HTTP 400/422). Fatal.
	KindInvalidRequest ErrorKind = "invalid_request"
	// KindNotFound indicates the addressed resource does not exist. Fatal.
	KindNotFound ErrorKind = "not_found"
	// KindResourceDeleted indicates the resource exists only as a tombstone.
	// Fatal.
	KindResourceDeleted ErrorKind = "resource_deleted"
	// KindUnknown is the fallback for unclassified failures. Fatal.
	KindUnknown ErrorKind = "unknown"
)

// ErrCustomerDeleted is returned when a customer lookup resolves to a
// deleted tombstone rather than a live record.
var ErrCustomerDeleted = errors.New("customer has been deleted")

// APIError is a billing platform failure carrying its abstract kind and the
// protocol-level details that produced it.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RequestID  string
	// RetryAfter is the server-requested wait parsed from a 429 response,
	// zero when the platform gave no hint.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("billing API error (%s, status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("billing API error (%s): %s", e.Kind, e.Message)
}

// Retryable reports whether failures of the given kind are transient and
// worth retrying. Only rate limiting, connection failures and upstream API
// faults qualify.
func Retryable(kind ErrorKind) bool {
	switch kind {
	case KindRateLimited, KindConnection, KindAPIError:
		return true
	default:
		return false
	}
}

// KindOf classifies an arbitrary error into an ErrorKind. APIError values
// carry their own kind; transport-level failures map to KindConnection;
// everything else is KindUnknown. Context cancellation is deliberately
// KindUnknown so that an aborted caller is never retried against.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	if errors.Is(err, ErrCustomerDeleted) {
		return KindResourceDeleted
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnknown
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return KindConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindConnection
	}

	return KindUnknown
}

// kindForStatus maps an HTTP response status to an ErrorKind.
func kindForStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindAPIError
	case status == 401 || status == 403:
		return KindAuth
	case status == 404:
		return KindNotFound
	case status == 400 || status == 422:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}
