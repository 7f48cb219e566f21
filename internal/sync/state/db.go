package state

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/db/sqlc"
	"github.com/revenuleaks/billing-sync-server/internal/status"
)

type dbStatusService struct {
	pool *pgxpool.Pool
}

// NewDBStateService creates a new database-backed account state service
func NewDBStateService(pool *pgxpool.Pool) AccountStateService {
	return &dbStatusService{
		pool: pool,
	}
}

func (d *dbStatusService) Initialize(ctx context.Context, accounts []config.AccountConfig) error {
	// Start a transaction for atomicity
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	queries := sqlc.New(d.pool).WithTx(tx)

	accountIDs := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		if err := queries.SeedSyncStatus(ctx, sqlc.SeedSyncStatusParams{
			AccountID: acct.ID,
			Stage:     sqlc.SyncStageIdle,
			Progress:  0,
			Message:   status.DefaultMessage,
		}); err != nil {
			return err
		}
		accountIDs = append(accountIDs, acct.ID)
	}

	// Delete any accounts not in the configured list
	if err := queries.DeleteSyncStatusesNotIn(ctx, accountIDs); err != nil {
		return err
	}

	// A row stuck in syncing means the previous run was interrupted
	reset, err := queries.ResetInterruptedSyncs(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		slog.Warn("Previous sync was interrupted, reset stale syncing statuses", "count", reset)
	}

	// Commit the transaction
	return tx.Commit(ctx)
}

func (d *dbStatusService) ListSyncStatuses(ctx context.Context) (map[string]*status.SyncStatus, error) {
	queries := sqlc.New(d.pool)

	rows, err := queries.ListSyncStatuses(ctx)
	if err != nil {
		return nil, err
	}

	// Build map of account ID to sync status
	result := make(map[string]*status.SyncStatus)
	for _, row := range rows {
		result[row.AccountID] = dbRowToStatus(row)
	}

	return result, nil
}

func (d *dbStatusService) GetSyncStatus(ctx context.Context, accountID string) (*status.SyncStatus, error) {
	queries := sqlc.New(d.pool)

	row, err := queries.GetSyncStatusByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No record yet - report the idle default
			return status.Default(accountID), nil
		}
		return nil, err
	}

	return dbRowToStatus(row), nil
}

func (d *dbStatusService) UpdateSyncStatus(ctx context.Context, accountID string, syncStatus *status.SyncStatus) error {
	queries := sqlc.New(d.pool)

	// Upsert the sync status as a single statement
	return queries.UpsertSyncStatus(ctx, upsertParams(accountID, syncStatus))
}

func (d *dbStatusService) UpdateStatusAtomically(
	ctx context.Context,
	accountID string,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	// Start a transaction
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	// Create queries with transaction
	queries := sqlc.New(d.pool).WithTx(tx)

	// Lock the row for the duration of the transaction so concurrent
	// claims serialize instead of clobbering each other. An account with
	// no row yet starts from the idle default, and the upsert creates it.
	syncStatus := status.Default(accountID)
	row, err := queries.GetSyncStatusForUpdate(ctx, accountID)
	switch {
	case err == nil:
		syncStatus = dbRowToStatus(row)
	case errors.Is(err, pgx.ErrNoRows):
		// First write for this account
	default:
		return false, err
	}

	// Apply the test and update function
	shouldUpdate := testAndUpdateFn(syncStatus)

	// If the function modified the status, update it in the database
	if shouldUpdate {
		if err := queries.UpsertSyncStatus(ctx, upsertParams(accountID, syncStatus)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return shouldUpdate, nil
}

// dbRowToStatus converts a database sync_status row to a status.SyncStatus
func dbRowToStatus(row sqlc.SyncStatus) *status.SyncStatus {
	syncStatus := &status.SyncStatus{
		AccountID: row.AccountID,
		Stage:     dbStageToStage(row.Stage),
		Progress:  int(row.Progress),
		Message:   row.Message,
		UpdatedAt: row.UpdatedAt,
	}

	if row.LastSyncedAt != nil {
		t := *row.LastSyncedAt
		syncStatus.LastSyncedAt = &t
	}

	return syncStatus
}

// upsertParams converts a status.SyncStatus to upsert parameters for the named account
func upsertParams(accountID string, syncStatus *status.SyncStatus) sqlc.UpsertSyncStatusParams {
	params := sqlc.UpsertSyncStatusParams{
		AccountID: accountID,
		Stage:     stageToDBStage(syncStatus.Stage),
		Progress:  int32(syncStatus.Progress), // #nosec G115 -- progress is constrained to 0-100
		Message:   syncStatus.Message,
	}

	if syncStatus.LastSyncedAt != nil {
		t := *syncStatus.LastSyncedAt
		params.LastSyncedAt = &t
	}

	return params
}

// dbStageToStage converts the database sync_stage enum to status.SyncStage
func dbStageToStage(dbStage sqlc.SyncStage) status.SyncStage {
	switch dbStage {
	case sqlc.SyncStageIdle:
		return status.StageIdle
	case sqlc.SyncStageSyncing:
		return status.StageSyncing
	case sqlc.SyncStageReady:
		return status.StageReady
	case sqlc.SyncStageError:
		return status.StageError
	default:
		return status.StageError
	}
}

// stageToDBStage converts status.SyncStage to the database sync_stage enum
func stageToDBStage(stage status.SyncStage) sqlc.SyncStage {
	switch stage {
	case status.StageIdle:
		return sqlc.SyncStageIdle
	case status.StageSyncing:
		return sqlc.SyncStageSyncing
	case status.StageReady:
		return sqlc.SyncStageReady
	case status.StageError:
		return sqlc.SyncStageError
	default:
		return sqlc.SyncStageError
	}
}
