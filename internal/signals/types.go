// Package signals detects noteworthy revenue events from metric snapshots
// and records them in an append-only, deduplicated log.
package signals

import (
	"time"

	"github.com/google/uuid"
)

// SignalType identifies the heuristic that produced a signal.
type SignalType string

// The closed set of signal types.
const (
	TypePaymentFailure SignalType = "payment_failure"
	TypeChurnSpike     SignalType = "churn_spike"
)

// Severity grades how urgent a signal is.
type Severity string

// Severity levels, least to most urgent.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RevenueSignal is one detected finding for an account.
//
// DedupKey identifies the underlying occurrence within a signal type: a
// repeated detection of the same occurrence produces the same key and is
// dropped on insert, so re-running detection never duplicates the log.
type RevenueSignal struct {
	// ID is assigned by the store when the signal is inserted.
	ID         uuid.UUID      `json:"id"`
	AccountID  string         `json:"account_id"`
	Type       SignalType     `json:"type"`
	Severity   Severity       `json:"severity"`
	Value      *float64       `json:"value,omitempty"`
	Message    string         `json:"message"`
	Meta       map[string]any `json:"meta,omitempty"`
	DedupKey   string         `json:"dedup_key"`
	DetectedAt time.Time      `json:"detected_at"`
}
