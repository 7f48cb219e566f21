// Package state contains logic for managing per-account sync state which the server persists.
package state

import (
	"context"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/status"
)

// AccountStateService provides methods for inspecting the sync state of a billing account.
//
//go:generate mockgen -destination=mocks/mock_account_state_service.go -package=mocks github.com/revenuleaks/billing-sync-server/internal/sync/state AccountStateService
type AccountStateService interface {
	// Initialize seeds the state store with the configured accounts.
	// It is intended that this is called at application startup. Accounts
	// removed from the configuration are pruned, and statuses left in the
	// syncing stage by an interrupted run are reset to error.
	Initialize(ctx context.Context, accounts []config.AccountConfig) error
	// ListSyncStatuses lists all available sync statuses.
	ListSyncStatuses(ctx context.Context) (map[string]*status.SyncStatus, error)
	// GetSyncStatus returns the status of the named account. An account
	// with no persisted record reports the idle default.
	GetSyncStatus(ctx context.Context, accountID string) (*status.SyncStatus, error)
	// UpdateSyncStatus overrides the value of the named account with the syncStatus parameter.
	UpdateSyncStatus(ctx context.Context, accountID string, syncStatus *status.SyncStatus) error
	// UpdateStatusAtomically is used to carry out atomic updates on a sync status.
	// Implementations will fetch the existing state, apply the testAndUpdateFn
	// function to the current state, and update the state if it is mutated by
	// that function - all as a single atomic action. testAndUpdateFn returns a boolean
	// to indicate whether the sync status was modified, and this is returned by
	// UpdateStatusAtomically when done.
	UpdateStatusAtomically(
		ctx context.Context,
		accountID string,
		testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
	) (bool, error)
}
