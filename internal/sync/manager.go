package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/billing"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/otel"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

// TracerName is the instrumentation scope for sync pipeline spans.
const TracerName = "github.com/revenuleaks/billing-sync-server/internal/sync"

// Result contains the outcome of a completed sync run
type Result struct {
	// RunID tags every log line emitted by the run
	RunID string
	// SnapshotID identifies the persisted metric snapshot
	SnapshotID uuid.UUID
	// Subscriptions is the number of subscription records pulled
	Subscriptions int
	// Customers is the number of customer records pulled
	Customers int
	// Invoices is the number of invoice records pulled
	Invoices int
	// Charges is the number of charge records pulled
	Charges int
	// SignalsInserted is the number of revenue signals recorded when
	// detection runs at the end of the sync
	SignalsInserted int
	// Duration is the wall-clock time of the run
	Duration time.Duration
}

// Reasons returned by Manager.ShouldSync
const (
	// ReasonAlreadyInProgress means a run for the account is currently in
	// the syncing stage
	ReasonAlreadyInProgress = "sync-already-in-progress"
	// ReasonForced means the caller overrode the freshness window
	ReasonForced = "manual-sync-forced"
	// ReasonNeverSynced means the account has no successful sync yet
	ReasonNeverSynced = "never-synced"
	// ReasonPreviousFailed means the last run ended in the error stage
	ReasonPreviousFailed = "previous-sync-failed"
	// ReasonStale means the last successful sync is older than the
	// freshness window
	ReasonStale = "last-sync-stale"
	// ReasonFresh means the last successful sync is inside the freshness
	// window
	ReasonFresh = "recently-synced"
	// ReasonStatusUnknown means the status record could not be read, so
	// the sync proceeds rather than silently stalling
	ReasonStatusUnknown = "status-unavailable"
)

// PipelineStep identifies the sync pipeline step an error originated from.
// The set is closed: dashboards and alerts key off these values.
type PipelineStep string

const (
	// StepPull covers the billing platform fetches
	StepPull PipelineStep = "pull"
	// StepAggregate covers metric snapshot computation
	StepAggregate PipelineStep = "aggregate"
	// StepPersist covers writing the snapshot to the store
	StepPersist PipelineStep = "persist"
	// StepDetect covers signal detection after the snapshot is stored
	StepDetect PipelineStep = "detect"
)

// maxStatusMessageLen bounds error text written into the status record.
const maxStatusMessageLen = 200

// Error is a structured sync pipeline error. Message embeds the truncated
// cause and is safe to surface in the status record; the full cause is
// preserved in Err for logs.
type Error struct {
	// Err is the underlying error
	Err error
	// Step is the pipeline step that failed
	Step PipelineStep
	// Message is the human-readable, already truncated description
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a step error whose message carries the truncated cause.
func newError(step PipelineStep, err error, message string) *Error {
	full := message
	if err != nil {
		full = fmt.Sprintf("%s: %v", message, err)
	}
	return &Error{
		Err:     err,
		Step:    step,
		Message: truncateMessage(full, maxStatusMessageLen),
	}
}

// truncateMessage shortens msg to at most limit bytes, marking the cut
// with an ellipsis.
func truncateMessage(msg string, limit int) string {
	if len(msg) <= limit || limit < 4 {
		return msg
	}
	return msg[:limit-3] + "..."
}

// Progress milestones written to the status record as a run advances. The
// dispatcher owns the queued and complete values; the manager writes the
// rest as the pipeline moves.
const (
	progressQueued        = 5
	progressStarting      = 5
	progressSubscriptions = 25
	progressCustomers     = 45
	progressInvoices      = 60
	progressCharges       = 70
	progressAggregated    = 85
	progressPersisted     = 95
	progressComplete      = 100
)

// Manager defines the interface for sync business logic
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/revenuleaks/billing-sync-server/internal/sync Manager
type Manager interface {
	// ShouldSync determines whether the account needs a sync run and
	// returns the reason for the decision. force overrides the freshness
	// window but never an in-progress run.
	ShouldSync(ctx context.Context, accountID string, force bool) (bool, string)

	// PerformSync executes the pull, aggregate, persist pipeline for the
	// account. Failures come back as a structured Error; the caller
	// decides how to record them. PerformSync itself never transitions
	// the status record to a terminal stage.
	PerformSync(ctx context.Context, accountID string) (*Result, *Error)
}

// DefaultSyncManager implements Manager with explicit dependencies.
type DefaultSyncManager struct {
	client       billing.Client
	stateService state.AccountStateService
	snapshots    aggregates.Store
	detection    *signals.Service
	freshness    FreshnessChecker
	tracer       trace.Tracer
	cfg          *config.Config
}

// ManagerOption configures optional behavior on a DefaultSyncManager.
type ManagerOption func(*DefaultSyncManager)

// WithTracer sets the OpenTelemetry tracer for sync pipeline spans.
// If not set, tracing is disabled (no-op).
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *DefaultSyncManager) {
		m.tracer = tracer
	}
}

// NewDefaultSyncManager creates a sync manager. detection may be nil when
// signal detection is not wired into the pipeline.
func NewDefaultSyncManager(
	cfg *config.Config,
	client billing.Client,
	stateService state.AccountStateService,
	snapshots aggregates.Store,
	detection *signals.Service,
	opts ...ManagerOption,
) *DefaultSyncManager {
	m := &DefaultSyncManager{
		client:       client,
		stateService: stateService,
		snapshots:    snapshots,
		detection:    detection,
		freshness:    &DefaultFreshnessChecker{},
		cfg:          cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShouldSync determines whether the account needs a sync run
func (s *DefaultSyncManager) ShouldSync(ctx context.Context, accountID string, force bool) (bool, string) {
	syncStatus, err := s.stateService.GetSyncStatus(ctx, accountID)
	if err != nil {
		slog.Warn("Failed to read sync status, assuming sync is needed",
			"account_id", accountID,
			"error", err)
		return true, ReasonStatusUnknown
	}

	// An in-progress run always wins, even over force.
	if syncStatus.Stage == status.StageSyncing {
		return false, ReasonAlreadyInProgress
	}

	if force {
		return true, ReasonForced
	}

	if syncStatus.Stage == status.StageError {
		return true, ReasonPreviousFailed
	}

	if syncStatus.LastSyncedAt == nil {
		return true, ReasonNeverSynced
	}

	if fresh, staleAt := s.freshness.IsFresh(syncStatus, s.cfg.GetFreshnessWindow()); fresh {
		slog.Debug("Last sync is inside the freshness window",
			"account_id", accountID,
			"stale_at", staleAt)
		return false, ReasonFresh
	}

	return true, ReasonStale
}

// PerformSync executes the full sync pipeline for the account
func (s *DefaultSyncManager) PerformSync(ctx context.Context, accountID string) (*Result, *Error) {
	runID := uuid.NewString()
	logger := slog.With("account_id", accountID, "run_id", runID)
	started := time.Now()

	ctx, span := otel.StartSpan(ctx, s.tracer, "syncManager.PerformSync",
		trace.WithAttributes(
			otel.AttrAccountID.String(accountID),
			otel.AttrSyncRunID.String(runID),
		))
	defer span.End()

	logger.Info("Starting sync run")
	s.updateProgress(ctx, logger, accountID, progressStarting, "starting sync")

	data, syncErr := s.pullAccountData(ctx, logger, accountID)
	if syncErr != nil {
		otel.RecordError(span, syncErr)
		return nil, syncErr
	}

	snapshot := aggregates.Compute(
		accountID, data.subscriptions, data.customers, data.invoices, data.charges, time.Now().UTC(),
	)
	s.updateProgress(ctx, logger, accountID, progressAggregated, "aggregates computed")
	logger.Info("Computed metric snapshot",
		"mrr_cents", snapshot.MRRCents,
		"active_subscriptions", snapshot.ActiveSubscriptions,
		"churn_rate", snapshot.ChurnRate)

	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		otel.RecordError(span, err)
		return nil, newError(StepPersist, err, "failed to persist metric snapshot")
	}
	s.updateProgress(ctx, logger, accountID, progressPersisted, "snapshot persisted")

	inserted := s.runDetection(ctx, logger, accountID)
	s.pruneSnapshots(ctx, logger, accountID)

	result := &Result{
		RunID:           runID,
		SnapshotID:      snapshot.ID,
		Subscriptions:   len(data.subscriptions),
		Customers:       len(data.customers),
		Invoices:        len(data.invoices),
		Charges:         len(data.charges),
		SignalsInserted: inserted,
		Duration:        time.Since(started),
	}
	span.SetAttributes(
		otel.AttrRecordCount.Int(result.Subscriptions+result.Customers+result.Invoices+result.Charges),
		otel.AttrSignalsFound.Int(result.SignalsInserted),
	)
	logger.Info("Sync run completed",
		"duration", result.Duration,
		"subscriptions", result.Subscriptions,
		"customers", result.Customers,
		"invoices", result.Invoices,
		"charges", result.Charges,
		"signals_inserted", result.SignalsInserted)
	return result, nil
}

// accountData is the bounded snapshot of billing records for one account.
type accountData struct {
	subscriptions []billing.Subscription
	customers     []billing.Customer
	invoices      []billing.Invoice
	charges       []billing.Charge
}

// pullAccountData fetches every collection the aggregates need, advancing
// the progress record after each one.
func (s *DefaultSyncManager) pullAccountData(
	ctx context.Context, logger *slog.Logger, accountID string,
) (*accountData, *Error) {
	data := &accountData{}
	var err error

	if data.subscriptions, err = s.client.ListAllSubscriptions(ctx, accountID); err != nil {
		return nil, newError(StepPull, err, "failed to pull subscriptions")
	}
	logger.Debug("Pulled subscriptions", "count", len(data.subscriptions))
	s.updateProgress(ctx, logger, accountID, progressSubscriptions, "pulled subscriptions")

	if data.customers, err = s.client.ListAllCustomers(ctx, accountID); err != nil {
		return nil, newError(StepPull, err, "failed to pull customers")
	}
	logger.Debug("Pulled customers", "count", len(data.customers))
	s.updateProgress(ctx, logger, accountID, progressCustomers, "pulled customers")

	if data.invoices, err = s.client.ListAllInvoices(ctx, accountID); err != nil {
		return nil, newError(StepPull, err, "failed to pull invoices")
	}
	logger.Debug("Pulled invoices", "count", len(data.invoices))
	s.updateProgress(ctx, logger, accountID, progressInvoices, "pulled invoices")

	if data.charges, err = s.client.ListAllCharges(ctx, accountID); err != nil {
		return nil, newError(StepPull, err, "failed to pull charges")
	}
	logger.Debug("Pulled charges", "count", len(data.charges))
	s.updateProgress(ctx, logger, accountID, progressCharges, "pulled charges")

	return data, nil
}

// runDetection runs signal detection over the freshly persisted snapshot.
// The snapshot is already durable at this point, so detection failures are
// logged and do not fail the run.
func (s *DefaultSyncManager) runDetection(ctx context.Context, logger *slog.Logger, accountID string) int {
	if s.detection == nil || !s.cfg.DetectAfterSync() {
		return 0
	}

	inserted, err := s.detection.DetectAndPersist(ctx, accountID)
	if err != nil {
		logger.Warn("Signal detection after sync failed", "step", StepDetect, "error", err)
		return 0
	}
	return len(inserted)
}

// pruneSnapshots removes snapshots older than the retention period, when
// one is configured. Pruning failures do not fail the run.
func (s *DefaultSyncManager) pruneSnapshots(ctx context.Context, logger *slog.Logger, accountID string) {
	retention := s.cfg.GetSnapshotRetention()
	if retention <= 0 {
		return
	}

	cutoff := time.Now().UTC().Add(-retention)
	removed, err := s.snapshots.PruneSnapshotsBefore(ctx, accountID, cutoff)
	if err != nil {
		logger.Warn("Failed to prune old metric snapshots", "cutoff", cutoff, "error", err)
		return
	}
	if removed > 0 {
		logger.Info("Pruned old metric snapshots", "removed", removed, "cutoff", cutoff)
	}
}

// updateProgress advances the status record to the given milestone.
// Progress never moves backwards within a run, and write failures do not
// interrupt the pipeline.
func (s *DefaultSyncManager) updateProgress(
	ctx context.Context, logger *slog.Logger, accountID string, progress int, message string,
) {
	_, err := s.stateService.UpdateStatusAtomically(ctx, accountID, func(st *status.SyncStatus) bool {
		st.Stage = status.StageSyncing
		st.Message = message
		if progress > st.Progress {
			st.Progress = progress
		}
		return true
	})
	if err != nil {
		logger.Warn("Failed to update sync progress", "progress", progress, "error", err)
	}
}
