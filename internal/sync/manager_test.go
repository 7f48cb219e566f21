package sync

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	aggregatesmocks "github.com/revenuleaks/billing-sync-server/internal/aggregates/mocks"
	"github.com/revenuleaks/billing-sync-server/internal/billing"
	billingmocks "github.com/revenuleaks/billing-sync-server/internal/billing/mocks"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
	statemocks "github.com/revenuleaks/billing-sync-server/internal/sync/state/mocks"
)

const testAccountID = "acct_mgr_test"

// fileBackedStateService builds a state service over a fresh temp directory.
func fileBackedStateService(t *testing.T) state.AccountStateService {
	t.Helper()
	return state.NewFileStateService(status.NewFileStatusPersistence(t.TempDir()))
}

// fileBackedSnapshotStore builds a snapshot store over a fresh temp directory.
func fileBackedSnapshotStore(t *testing.T) aggregates.Store {
	t.Helper()
	store, err := aggregates.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testSubscription(id string, amountCents int64) billing.Subscription {
	return billing.Subscription{
		ID:              id,
		CustomerID:      "cus_1",
		Status:          billing.SubscriptionStatusActive,
		PlanAmountCents: amountCents,
		Quantity:        1,
		Interval:        billing.IntervalMonth,
		Created:         time.Now().UTC().Add(-90 * 24 * time.Hour),
	}
}

func testFailedCharge(id string, age time.Duration) billing.Charge {
	return billing.Charge{
		ID:          id,
		CustomerID:  "cus_1",
		Status:      billing.ChargeStatusFailed,
		AmountCents: 2500,
		FailureCode: "card_declined",
		Created:     time.Now().UTC().Add(-age),
	}
}

func TestNewDefaultSyncManager(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := billingmocks.NewMockClient(ctrl)
	stateSvc := statemocks.NewMockAccountStateService(ctrl)
	snapshots := aggregatesmocks.NewMockStore(ctrl)

	manager := NewDefaultSyncManager(&config.Config{}, client, stateSvc, snapshots, nil)

	assert.NotNil(t, manager)
	assert.IsType(t, &DefaultSyncManager{}, manager)
}

func TestDefaultSyncManager_ShouldSync(t *testing.T) {
	t.Parallel()

	recentSync := time.Now().UTC().Add(-time.Minute)
	staleSync := time.Now().UTC().Add(-2 * time.Hour)

	tests := []struct {
		name           string
		force          bool
		syncStatus     *status.SyncStatus
		statusErr      error
		expectedNeeded bool
		expectedReason string
	}{
		{
			name:           "status read error assumes sync is needed",
			statusErr:      errors.New("store offline"),
			expectedNeeded: true,
			expectedReason: ReasonStatusUnknown,
		},
		{
			name:  "in-progress run wins over force",
			force: true,
			syncStatus: &status.SyncStatus{
				AccountID: testAccountID,
				Stage:     status.StageSyncing,
				Progress:  45,
			},
			expectedNeeded: false,
			expectedReason: ReasonAlreadyInProgress,
		},
		{
			name:  "force overrides the freshness window",
			force: true,
			syncStatus: &status.SyncStatus{
				AccountID:    testAccountID,
				Stage:        status.StageReady,
				Progress:     100,
				LastSyncedAt: &recentSync,
			},
			expectedNeeded: true,
			expectedReason: ReasonForced,
		},
		{
			name: "previous failure needs sync even with a recent success",
			syncStatus: &status.SyncStatus{
				AccountID:    testAccountID,
				Stage:        status.StageError,
				LastSyncedAt: &recentSync,
			},
			expectedNeeded: true,
			expectedReason: ReasonPreviousFailed,
		},
		{
			name: "never synced account needs sync",
			syncStatus: &status.SyncStatus{
				AccountID: testAccountID,
				Stage:     status.StageIdle,
			},
			expectedNeeded: true,
			expectedReason: ReasonNeverSynced,
		},
		{
			name: "recent success inside the freshness window skips",
			syncStatus: &status.SyncStatus{
				AccountID:    testAccountID,
				Stage:        status.StageReady,
				Progress:     100,
				LastSyncedAt: &recentSync,
			},
			expectedNeeded: false,
			expectedReason: ReasonFresh,
		},
		{
			name: "stale success needs sync",
			syncStatus: &status.SyncStatus{
				AccountID:    testAccountID,
				Stage:        status.StageReady,
				Progress:     100,
				LastSyncedAt: &staleSync,
			},
			expectedNeeded: true,
			expectedReason: ReasonStale,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			stateSvc := statemocks.NewMockAccountStateService(ctrl)
			stateSvc.EXPECT().GetSyncStatus(gomock.Any(), testAccountID).Return(tt.syncStatus, tt.statusErr)

			manager := NewDefaultSyncManager(&config.Config{}, nil, stateSvc, nil, nil)

			needed, reason := manager.ShouldSync(context.Background(), testAccountID, tt.force)
			assert.Equal(t, tt.expectedNeeded, needed)
			assert.Equal(t, tt.expectedReason, reason)
		})
	}
}

func TestDefaultSyncManager_PerformSync(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return([]billing.Subscription{
		testSubscription("sub_1", 5000),
		testSubscription("sub_2", 3000),
	}, nil)
	client.EXPECT().ListAllCustomers(gomock.Any(), testAccountID).Return([]billing.Customer{
		{ID: "cus_1", Email: "ada@example.com", Created: time.Now().UTC().Add(-200 * 24 * time.Hour)},
		{ID: "cus_2", Email: "bo@example.com", Delinquent: true, Created: time.Now().UTC().Add(-100 * 24 * time.Hour)},
	}, nil)
	client.EXPECT().ListAllInvoices(gomock.Any(), testAccountID).Return([]billing.Invoice{
		{ID: "in_1", CustomerID: "cus_1", Status: billing.InvoiceStatusOpen, AmountDueCents: 1500},
	}, nil)
	client.EXPECT().ListAllCharges(gomock.Any(), testAccountID).Return([]billing.Charge{
		testFailedCharge("ch_1", 2*24*time.Hour),
	}, nil)

	stateSvc := fileBackedStateService(t)
	snapshots := fileBackedSnapshotStore(t)
	manager := NewDefaultSyncManager(&config.Config{}, client, stateSvc, snapshots, nil)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	require.Nil(t, syncErr)
	require.NotNil(t, result)

	_, err := uuid.Parse(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Subscriptions)
	assert.Equal(t, 2, result.Customers)
	assert.Equal(t, 1, result.Invoices)
	assert.Equal(t, 1, result.Charges)
	assert.Equal(t, 0, result.SignalsInserted)
	assert.NotEqual(t, uuid.Nil, result.SnapshotID)

	// The manager never finalizes the run; that is the dispatcher's job.
	st, err := stateSvc.GetSyncStatus(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Equal(t, status.StageSyncing, st.Stage)
	assert.Equal(t, 95, st.Progress)
	assert.Equal(t, "snapshot persisted", st.Message)
	assert.Nil(t, st.LastSyncedAt)

	snapshot, err := snapshots.LatestSnapshot(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Equal(t, result.SnapshotID, snapshot.ID)
	assert.Equal(t, int64(8000), snapshot.MRRCents)
	assert.Equal(t, 2, snapshot.ActiveSubscriptions)
	assert.Equal(t, 2, snapshot.TotalCustomers)
	assert.Equal(t, 1, snapshot.DelinquentCustomers)
	assert.Equal(t, 1, snapshot.OpenInvoices)
	assert.Equal(t, int64(1500), snapshot.OverdueInvoiceCents)
	assert.Equal(t, 1, snapshot.FailedCharges7d)
}

func TestDefaultSyncManager_PerformSyncPullFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pullErr := errors.New("billing platform unavailable")
	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return(nil, pullErr)

	stateSvc := fileBackedStateService(t)
	manager := NewDefaultSyncManager(&config.Config{}, client, stateSvc, fileBackedSnapshotStore(t), nil)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	assert.Nil(t, result)
	require.NotNil(t, syncErr)
	assert.Equal(t, StepPull, syncErr.Step)
	assert.Contains(t, syncErr.Message, "failed to pull subscriptions")
	assert.ErrorIs(t, syncErr, pullErr)

	// The run stopped at the starting milestone and was never finalized.
	st, err := stateSvc.GetSyncStatus(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Equal(t, status.StageSyncing, st.Stage)
	assert.Equal(t, 5, st.Progress)
}

func TestDefaultSyncManager_PerformSyncPersistFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCustomers(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllInvoices(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCharges(gomock.Any(), testAccountID).Return(nil, nil)

	snapshots := aggregatesmocks.NewMockStore(ctrl)
	snapshots.EXPECT().SaveSnapshot(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	manager := NewDefaultSyncManager(&config.Config{}, client, fileBackedStateService(t), snapshots, nil)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	assert.Nil(t, result)
	require.NotNil(t, syncErr)
	assert.Equal(t, StepPersist, syncErr.Step)
	assert.Contains(t, syncErr.Message, "failed to persist metric snapshot")
	assert.Contains(t, syncErr.Message, "disk full")
}

func TestDefaultSyncManager_PerformSyncRunsDetection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// Four failures inside seven days and two older ones put the account
	// over the payment failure thresholds.
	charges := []billing.Charge{
		testFailedCharge("ch_1", 1*24*time.Hour),
		testFailedCharge("ch_2", 2*24*time.Hour),
		testFailedCharge("ch_3", 3*24*time.Hour),
		testFailedCharge("ch_4", 4*24*time.Hour),
		testFailedCharge("ch_5", 20*24*time.Hour),
		testFailedCharge("ch_6", 25*24*time.Hour),
	}

	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return([]billing.Subscription{
		testSubscription("sub_1", 5000),
	}, nil)
	client.EXPECT().ListAllCustomers(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllInvoices(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCharges(gomock.Any(), testAccountID).Return(charges, nil)

	snapshots := fileBackedSnapshotStore(t)
	sigStore, err := signals.NewFileStore(t.TempDir())
	require.NoError(t, err)
	detection := signals.NewService(snapshots, sigStore)

	cfg := &config.Config{Sync: &config.SyncConfig{DetectAfterSync: true}}
	manager := NewDefaultSyncManager(cfg, client, fileBackedStateService(t), snapshots, detection)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	require.Nil(t, syncErr)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.SignalsInserted)

	recorded, err := sigStore.ListSignals(context.Background(), testAccountID, 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, signals.TypePaymentFailure, recorded[0].Type)
	assert.Equal(t, signals.SeverityHigh, recorded[0].Severity)
	require.NotNil(t, recorded[0].Value)
	assert.InDelta(t, 4.0, *recorded[0].Value, 0.0001)
}

func TestDefaultSyncManager_PerformSyncDetectionFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCustomers(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllInvoices(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCharges(gomock.Any(), testAccountID).Return(nil, nil)

	// Detection reads through a store that is down; the run must still
	// succeed because the snapshot is already persisted.
	failing := aggregatesmocks.NewMockStore(ctrl)
	failing.EXPECT().RecentSnapshots(gomock.Any(), testAccountID, 2).Return(nil, errors.New("store offline"))

	sigStore, err := signals.NewFileStore(t.TempDir())
	require.NoError(t, err)
	detection := signals.NewService(failing, sigStore)

	cfg := &config.Config{Sync: &config.SyncConfig{DetectAfterSync: true}}
	manager := NewDefaultSyncManager(cfg, client, fileBackedStateService(t), fileBackedSnapshotStore(t), detection)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	require.Nil(t, syncErr)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.SignalsInserted)
}

func TestDefaultSyncManager_PerformSyncPrunesOldSnapshots(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := billingmocks.NewMockClient(ctrl)
	client.EXPECT().ListAllSubscriptions(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCustomers(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllInvoices(gomock.Any(), testAccountID).Return(nil, nil)
	client.EXPECT().ListAllCharges(gomock.Any(), testAccountID).Return(nil, nil)

	snapshots := fileBackedSnapshotStore(t)
	old := &aggregates.MetricSnapshot{
		AccountID:  testAccountID,
		CapturedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	require.NoError(t, snapshots.SaveSnapshot(context.Background(), old))

	cfg := &config.Config{Sync: &config.SyncConfig{SnapshotRetention: "24h"}}
	manager := NewDefaultSyncManager(cfg, client, fileBackedStateService(t), snapshots, nil)

	result, syncErr := manager.PerformSync(context.Background(), testAccountID)
	require.Nil(t, syncErr)
	require.NotNil(t, result)

	recent, err := snapshots.RecentSnapshots(context.Background(), testAccountID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, result.SnapshotID, recent[0].ID)
}

func TestUpdateProgressNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	stateSvc := fileBackedStateService(t)
	manager := NewDefaultSyncManager(&config.Config{}, nil, stateSvc, nil, nil)
	logger := slog.Default()

	manager.updateProgress(context.Background(), logger, testAccountID, 60, "pulled invoices")
	manager.updateProgress(context.Background(), logger, testAccountID, 25, "pulled subscriptions")

	st, err := stateSvc.GetSyncStatus(context.Background(), testAccountID)
	require.NoError(t, err)
	assert.Equal(t, 60, st.Progress)
	assert.Equal(t, "pulled subscriptions", st.Message)
}

func TestTruncateMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		msg      string
		limit    int
		expected string
	}{
		{
			name:     "short message unchanged",
			msg:      "sync failed",
			limit:    200,
			expected: "sync failed",
		},
		{
			name:     "long message truncated with ellipsis",
			msg:      "aaaaaaaaaa",
			limit:    8,
			expected: "aaaaa...",
		},
		{
			name:     "tiny limit leaves message alone",
			msg:      "abcdef",
			limit:    3,
			expected: "abcdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, truncateMessage(tt.msg, tt.limit))
		})
	}
}
