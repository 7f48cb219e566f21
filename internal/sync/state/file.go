package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/status"
)

type fileStateService struct {
	statusPersistence status.StatusPersistence

	// Thread-safe status management (per-account)
	mu             sync.RWMutex
	cachedStatuses map[string]*status.SyncStatus
}

// NewFileStateService creates a new file-based account state service
func NewFileStateService(statusPersistence status.StatusPersistence) AccountStateService {
	return &fileStateService{
		statusPersistence: statusPersistence,
		cachedStatuses:    make(map[string]*status.SyncStatus),
	}
}

func (f *fileStateService) Initialize(ctx context.Context, accounts []config.AccountConfig) error {
	for _, acct := range accounts {
		f.loadOrInitializeAccountStatus(ctx, acct.ID)
	}
	return nil
}

func (f *fileStateService) ListSyncStatuses(_ context.Context) (map[string]*status.SyncStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Return a deep copy to prevent external modification
	result := make(map[string]*status.SyncStatus)
	for accountID, syncStatus := range f.cachedStatuses {
		if syncStatus != nil {
			statusCopy := *syncStatus
			result[accountID] = &statusCopy
		}
	}
	return result, nil
}

func (f *fileStateService) GetSyncStatus(_ context.Context, accountID string) (*status.SyncStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	// Return a copy to prevent external modification. An account with no
	// record yet reports the idle default.
	syncStatus, exists := f.cachedStatuses[accountID]
	if !exists || syncStatus == nil {
		return status.Default(accountID), nil
	}
	statusCopy := *syncStatus
	return &statusCopy, nil
}

func (f *fileStateService) UpdateStatusAtomically(
	ctx context.Context,
	accountID string,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	// This method duplicates code from GetSyncStatus and UpdateSyncStatus
	// I have duplicated the code due to the triviality of the logic.
	f.mu.Lock()
	defer f.mu.Unlock()

	// Get the sync status from cache. An account with no record yet
	// starts from the idle default, matching the database behaviour.
	syncStatus, exists := f.cachedStatuses[accountID]
	if !exists || syncStatus == nil {
		syncStatus = status.Default(accountID)
	}

	shouldUpdate := testAndUpdateFn(syncStatus)
	if shouldUpdate {
		syncStatus.UpdatedAt = time.Now().UTC()
		if err := f.statusPersistence.SaveStatus(ctx, accountID, syncStatus); err != nil {
			return false, err
		}
		f.cachedStatuses[accountID] = syncStatus
	}
	return shouldUpdate, nil
}

func (f *fileStateService) UpdateSyncStatus(ctx context.Context, accountID string, syncStatus *status.SyncStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	syncStatus.UpdatedAt = time.Now().UTC()
	if err := f.statusPersistence.SaveStatus(ctx, accountID, syncStatus); err != nil {
		return err
	}
	// I'm not sure if keeping a cache of these statuses in memory is useful assuming
	// production deployments will use Postgres.
	f.cachedStatuses[accountID] = syncStatus
	return nil
}

func (f *fileStateService) loadOrInitializeAccountStatus(ctx context.Context, accountID string) {
	syncStatus, err := f.statusPersistence.LoadStatus(ctx, accountID)
	if err != nil {
		slog.Warn("Failed to load sync status, initializing with defaults",
			"account_id", accountID, "error", err)
		syncStatus = status.Default(accountID)
	}

	/*
	 * Note that the cleanup logic is not shared with the database.
	 * It assumes that only one process at a time will access the backing
	 * store. This assumption breaks down if multiple servers share a database.
	 */

	// Check if this is a new status (no file existed)
	if syncStatus.Stage == status.StageIdle && syncStatus.LastSyncedAt == nil && syncStatus.Progress == 0 {
		// Persist the default status immediately
		if err := f.statusPersistence.SaveStatus(ctx, accountID, syncStatus); err != nil {
			slog.Warn("Failed to persist default sync status",
				"account_id", accountID, "error", err)
		}
	} else if syncStatus.Stage == status.StageSyncing {
		// If status was left in the syncing stage, it means the previous run
		// was interrupted. Reset it to error so a fresh run can be triggered.
		slog.Warn("Previous sync was interrupted, resetting to error",
			"account_id", accountID)
		syncStatus.Stage = status.StageError
		syncStatus.Message = "previous sync was interrupted"
		syncStatus.UpdatedAt = time.Now().UTC()
		// Persist the corrected status
		if err := f.statusPersistence.SaveStatus(ctx, accountID, syncStatus); err != nil {
			slog.Warn("Failed to persist corrected sync status",
				"account_id", accountID, "error", err)
		}
	}

	// Log the loaded/initialized status
	if syncStatus.LastSyncedAt != nil {
		slog.Info("Loaded sync status",
			"account_id", accountID,
			"stage", syncStatus.Stage,
			"last_synced_at", syncStatus.LastSyncedAt.Format(time.RFC3339))
	} else {
		slog.Info("Sync status initialized, no previous sync",
			"account_id", accountID,
			"stage", syncStatus.Stage)
	}

	// Store in cached status
	f.mu.Lock()
	f.cachedStatuses[accountID] = syncStatus
	f.mu.Unlock()
}
