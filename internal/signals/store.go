package signals

import (
	"context"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks github.com/revenuleaks/billing-sync-server/internal/signals Store

// Store is an append-only signal log with per-occurrence deduplication.
type Store interface {
	// InsertSignals appends the given signals, silently dropping any whose
	// (account, type, dedup key) was already recorded. It returns the
	// signals that were actually inserted, with their IDs assigned.
	InsertSignals(ctx context.Context, signals []RevenueSignal) ([]RevenueSignal, error)

	// ListSignals returns the account's signals newest-first, up to limit.
	ListSignals(ctx context.Context, accountID string, limit int) ([]RevenueSignal, error)

	// ListAllSignals returns signals across every account newest-first, up
	// to limit.
	ListAllSignals(ctx context.Context, limit int) ([]RevenueSignal, error)

	// CountSignals reports how many signals the account has accumulated.
	CountSignals(ctx context.Context, accountID string) (int64, error)
}
