package signals

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
)

// Service runs the detection heuristics against stored snapshots and
// persists the findings.
type Service struct {
	snapshots aggregates.Store
	store     Store
}

// NewService creates a signal detection service
func NewService(snapshots aggregates.Store, store Store) *Service {
	return &Service{
		snapshots: snapshots,
		store:     store,
	}
}

// DetectAndPersist loads the account's two most recent snapshots, runs every
// heuristic against them, and appends any new findings to the signal log.
// Re-running against the same snapshots inserts nothing.
//
// An account with no snapshots yet produces no signals and no error.
func (s *Service) DetectAndPersist(ctx context.Context, accountID string) ([]RevenueSignal, error) {
	recent, err := s.snapshots.RecentSnapshots(ctx, accountID, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots for account '%s': %w", accountID, err)
	}

	var current, previous *aggregates.MetricSnapshot
	if len(recent) > 0 {
		current = recent[0]
	}
	if len(recent) > 1 {
		previous = recent[1]
	}
	if current == nil {
		slog.Info("No metric snapshots recorded yet, skipping signal detection",
			"account_id", accountID)
		return nil, nil
	}

	detected := Detect(accountID, current, previous, time.Now().UTC())
	if len(detected) == 0 {
		slog.Debug("Signal detection found nothing", "account_id", accountID)
		return nil, nil
	}

	inserted, err := s.store.InsertSignals(ctx, detected)
	if err != nil {
		return nil, fmt.Errorf("failed to persist signals for account '%s': %w", accountID, err)
	}

	slog.Info("Signal detection completed",
		"account_id", accountID,
		"detected", len(detected),
		"inserted", len(inserted))
	return inserted, nil
}
