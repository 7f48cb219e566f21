package signals

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
)

// Detection thresholds.
const (
	// A payment failure signal fires when more than half of the trailing
	// month's failed charges happened in the last week.
	paymentFailureRatio = 0.5

	// More than this many failures in the last week escalates to high.
	paymentFailureHighCount = 3

	// A churn spike fires when the churn rate rose by more than two
	// percentage points between consecutive snapshots.
	churnDelta = 0.02

	// A rise above ten points escalates to high.
	churnDeltaHigh = 0.10
)

// heuristic is one detection rule. It returns nil when nothing fired.
// previous may be nil when the account has only one snapshot.
type heuristic func(accountID string, current, previous *aggregates.MetricSnapshot, now time.Time) *RevenueSignal

// Detect runs every heuristic against the account's two most recent
// snapshots and returns the findings in a stable order. Heuristics are
// isolated from each other: one panicking rule is logged and skipped
// without affecting the rest.
func Detect(accountID string, current, previous *aggregates.MetricSnapshot, now time.Time) []RevenueSignal {
	heuristics := []struct {
		name string
		fn   heuristic
	}{
		{string(TypePaymentFailure), detectPaymentFailure},
		{string(TypeChurnSpike), detectChurnSpike},
	}

	detected := make([]RevenueSignal, 0, len(heuristics))
	for _, h := range heuristics {
		if signal := runHeuristic(h.name, h.fn, accountID, current, previous, now); signal != nil {
			detected = append(detected, *signal)
		}
	}
	return detected
}

// runHeuristic invokes one rule, converting a panic into a logged skip.
func runHeuristic(
	name string,
	fn heuristic,
	accountID string,
	current, previous *aggregates.MetricSnapshot,
	now time.Time,
) (signal *RevenueSignal) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Signal heuristic panicked, skipping",
				"heuristic", name, "account_id", accountID, "panic", r)
			signal = nil
		}
	}()
	return fn(accountID, current, previous, now)
}

// detectPaymentFailure flags accounts whose recent failed charges cluster in
// the last week. Detection is keyed on the UTC day, so at most one payment
// failure signal is recorded per account per day.
func detectPaymentFailure(accountID string, current, _ *aggregates.MetricSnapshot, now time.Time) *RevenueSignal {
	if current == nil {
		return nil
	}

	failed7d := current.FailedCharges7d
	failed30d := current.FailedCharges30d
	if failed7d == 0 || failed30d == 0 {
		return nil
	}

	ratio := float64(failed7d) / float64(failed30d)
	if ratio <= paymentFailureRatio {
		return nil
	}

	severity := SeverityMedium
	if failed7d > paymentFailureHighCount {
		severity = SeverityHigh
	}

	value := float64(failed7d)
	return &RevenueSignal{
		AccountID: accountID,
		Type:      TypePaymentFailure,
		Severity:  severity,
		Value:     &value,
		Message: fmt.Sprintf("%d failed charges in the last 7 days (%.0f%% of the 30-day total)",
			failed7d, ratio*100),
		Meta: map[string]any{
			"failed_7d":  failed7d,
			"failed_30d": failed30d,
			"ratio":      ratio,
		},
		DedupKey:   now.UTC().Format("2006-01-02"),
		DetectedAt: now.UTC(),
	}
}

// detectChurnSpike flags a churn rate that rose sharply between the two most
// recent snapshots. Detection is keyed on the current snapshot's ID, so each
// snapshot can raise at most one spike.
func detectChurnSpike(accountID string, current, previous *aggregates.MetricSnapshot, now time.Time) *RevenueSignal {
	if current == nil || previous == nil {
		return nil
	}

	delta := current.ChurnRate - previous.ChurnRate
	if delta <= churnDelta {
		return nil
	}

	severity := SeverityMedium
	if delta > churnDeltaHigh {
		severity = SeverityHigh
	}

	// Delta expressed in percentage points, rounded to two decimals.
	points := math.Round(delta*10000) / 100
	value := points
	return &RevenueSignal{
		AccountID: accountID,
		Type:      TypeChurnSpike,
		Severity:  severity,
		Value:     &value,
		Message: fmt.Sprintf("churn rate rose %.2f points to %.2f%%",
			points, current.ChurnRate*100),
		Meta: map[string]any{
			"previous_churn_rate": previous.ChurnRate,
			"current_churn_rate":  current.ChurnRate,
		},
		DedupKey:   current.ID.String(),
		DetectedAt: now.UTC(),
	}
}
