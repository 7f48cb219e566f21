package aggregates

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/revenuleaks/billing-sync-server/internal/aggregates Store

// ErrNoSnapshot is returned when an account has no recorded snapshot.
var ErrNoSnapshot = errors.New("no metric snapshot recorded")

// Store persists metric snapshots and serves them back newest-first.
type Store interface {
	// SaveSnapshot persists the snapshot and assigns its ID.
	SaveSnapshot(ctx context.Context, snapshot *MetricSnapshot) error

	// LatestSnapshot returns the most recent snapshot for the account, or
	// ErrNoSnapshot when none has been recorded.
	LatestSnapshot(ctx context.Context, accountID string) (*MetricSnapshot, error)

	// RecentSnapshots returns up to limit snapshots for the account, newest
	// first. An account with no history yields an empty result.
	RecentSnapshots(ctx context.Context, accountID string, limit int) ([]*MetricSnapshot, error)

	// PruneSnapshotsBefore deletes snapshots captured before the cutoff and
	// reports how many were removed.
	PruneSnapshotsBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error)
}
