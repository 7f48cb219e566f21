package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
	"github.com/revenuleaks/billing-sync-server/internal/telemetry"
)

// TriggerOutcome classifies the result of a sync trigger request.
type TriggerOutcome string

const (
	// OutcomeTriggered means the run was accepted and queued
	OutcomeTriggered TriggerOutcome = "triggered"
	// OutcomeAlreadySyncing means a run for the account is already queued
	// or executing
	OutcomeAlreadySyncing TriggerOutcome = "already_syncing"
	// OutcomeSkipped means the freshness window made a run unnecessary
	OutcomeSkipped TriggerOutcome = "skipped"
	// OutcomeError means the trigger could not be accepted
	OutcomeError TriggerOutcome = "error"
)

// Dispatcher-side trigger reasons; ShouldSync reasons are passed through
// on the other outcomes.
const (
	reasonQueueFull         = "queue-full"
	reasonNotRunning        = "dispatcher-not-running"
	reasonStatusWriteFailed = "status-write-failed"
)

var (
	errQueueFull  = errors.New("sync queue full")
	errNotRunning = errors.New("sync dispatcher is not running")
)

// TriggerResult reports how a trigger request was resolved.
type TriggerResult struct {
	// Outcome classifies the resolution
	Outcome TriggerOutcome
	// Reason is the machine-readable decision reason
	Reason string
	// Message is human-readable text suitable for API responses
	Message string
}

// Dispatcher accepts sync trigger requests and executes the queued runs on
// a bounded worker pool. Callers observe run progress through the status
// store only; the dispatcher hands nothing back across the boundary except
// the immediate queueing outcome.
//
//go:generate mockgen -destination=mocks/mock_dispatcher.go -package=mocks github.com/revenuleaks/billing-sync-server/internal/sync Dispatcher
type Dispatcher interface {
	// Trigger requests a sync run for the account and returns immediately
	// with the queueing outcome. The run itself executes asynchronously.
	Trigger(ctx context.Context, accountID string, force bool) TriggerResult

	// Start launches the worker pool. Runs executed after Start use the
	// given context.
	Start(ctx context.Context)

	// Stop closes the queue, drains the runs already accepted and blocks
	// until the workers exit. Triggers arriving after Stop are rejected.
	Stop()
}

// queueDispatcher implements Dispatcher over a buffered channel drained by
// an errgroup-limited worker pool.
type queueDispatcher struct {
	manager      Manager
	stateService state.AccountStateService

	queue   chan string
	workers int

	syncMetrics   *telemetry.SyncMetrics
	signalMetrics *telemetry.SignalMetrics

	mu       sync.Mutex
	inFlight map[string]struct{}
	running  bool
	stopped  bool

	group      *errgroup.Group
	feederDone chan struct{}
}

// DispatcherOption configures optional dispatcher behavior.
type DispatcherOption func(*queueDispatcher)

// WithSyncMetrics records run durations and outcomes with the given
// instruments. A nil value disables recording.
func WithSyncMetrics(m *telemetry.SyncMetrics) DispatcherOption {
	return func(d *queueDispatcher) {
		d.syncMetrics = m
	}
}

// WithSignalMetrics records the number of signals persisted by each
// successful run. A nil value disables recording.
func WithSignalMetrics(m *telemetry.SignalMetrics) DispatcherOption {
	return func(d *queueDispatcher) {
		d.signalMetrics = m
	}
}

// NewDispatcher creates a dispatcher with the queue bound and worker count
// taken from the configuration.
func NewDispatcher(cfg *config.Config, manager Manager, stateService state.AccountStateService, opts ...DispatcherOption) Dispatcher {
	d := &queueDispatcher{
		manager:      manager,
		stateService: stateService,
		queue:        make(chan string, cfg.GetSyncQueueSize()),
		workers:      cfg.GetSyncWorkers(),
		inFlight:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker pool
func (d *queueDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.group = &errgroup.Group{}
	d.group.SetLimit(d.workers)
	d.feederDone = make(chan struct{})

	go func() {
		defer close(d.feederDone)
		for accountID := range d.queue {
			d.group.Go(func() error {
				d.runSync(ctx, accountID)
				return nil
			})
		}
	}()

	slog.Info("Sync dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Stop drains the queue and waits for in-flight runs to finish
func (d *queueDispatcher) Stop() {
	d.mu.Lock()
	if !d.running || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	// The stopped flag is checked under the same mutex as every send, so
	// no trigger can reach the channel once it is set.
	close(d.queue)
	<-d.feederDone
	_ = d.group.Wait()

	slog.Info("Sync dispatcher stopped")
}

// Trigger requests a sync run for the account
func (d *queueDispatcher) Trigger(ctx context.Context, accountID string, force bool) TriggerResult {
	if !d.acquire(accountID) {
		return TriggerResult{
			Outcome: OutcomeAlreadySyncing,
			Reason:  ReasonAlreadyInProgress,
			Message: "a sync run for this account is already in progress",
		}
	}

	needed, reason := d.manager.ShouldSync(ctx, accountID, force)
	if !needed {
		d.release(accountID)
		if reason == ReasonAlreadyInProgress {
			return TriggerResult{
				Outcome: OutcomeAlreadySyncing,
				Reason:  reason,
				Message: "a sync run for this account is already in progress",
			}
		}
		return TriggerResult{
			Outcome: OutcomeSkipped,
			Reason:  reason,
			Message: "last sync is recent enough, use force to sync anyway",
		}
	}

	if err := d.markQueued(ctx, accountID); err != nil {
		d.release(accountID)
		slog.Error("Failed to record queued sync", "account_id", accountID, "error", err)
		return TriggerResult{
			Outcome: OutcomeError,
			Reason:  reasonStatusWriteFailed,
			Message: "failed to record sync status",
		}
	}

	if err := d.enqueue(accountID); err != nil {
		d.writeFailed(ctx, accountID, err.Error())
		d.release(accountID)
		triggerReason := reasonQueueFull
		if errors.Is(err, errNotRunning) {
			triggerReason = reasonNotRunning
		}
		slog.Warn("Sync trigger rejected",
			"account_id", accountID,
			"reason", triggerReason)
		return TriggerResult{
			Outcome: OutcomeError,
			Reason:  triggerReason,
			Message: err.Error(),
		}
	}

	slog.Info("Sync queued", "account_id", accountID, "reason", reason, "force", force)
	return TriggerResult{
		Outcome: OutcomeTriggered,
		Reason:  reason,
		Message: "sync queued",
	}
}

// acquire takes the per-account in-flight token. At most one queued or
// executing run exists per account at any time.
func (d *queueDispatcher) acquire(accountID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.inFlight[accountID]; ok {
		return false
	}
	d.inFlight[accountID] = struct{}{}
	return true
}

func (d *queueDispatcher) release(accountID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, accountID)
}

// enqueue places the account on the queue without blocking. The check and
// the send share the dispatcher mutex with Stop, so a send can never race
// the queue closing.
func (d *queueDispatcher) enqueue(accountID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.stopped {
		return errNotRunning
	}
	select {
	case d.queue <- accountID:
		return nil
	default:
		return errQueueFull
	}
}

// runSync executes one queued run and finalizes the status record. Pipeline
// errors end here: they are written to the status store, never returned.
func (d *queueDispatcher) runSync(ctx context.Context, accountID string) {
	defer d.release(accountID)

	start := time.Now()
	result, syncErr := d.manager.PerformSync(ctx, accountID)
	d.syncMetrics.RecordSyncRun(ctx, accountID, time.Since(start), syncErr == nil)

	if syncErr != nil {
		slog.Error("Sync run failed",
			"account_id", accountID,
			"step", syncErr.Step,
			"error", syncErr.Err)
		d.writeFailed(ctx, accountID, syncErr.Message)
		return
	}

	d.signalMetrics.RecordSignalsDetected(ctx, accountID, int64(result.SignalsInserted))
	d.writeReady(ctx, accountID, result)
}

// markQueued resets the status record for a new run.
func (d *queueDispatcher) markQueued(ctx context.Context, accountID string) error {
	_, err := d.stateService.UpdateStatusAtomically(ctx, accountID, func(st *status.SyncStatus) bool {
		st.Stage = status.StageSyncing
		st.Progress = progressQueued
		st.Message = "sync queued"
		return true
	})
	return err
}

// writeReady finalizes the status record after a successful run. The
// transition to ready is the only write that sets lastSyncedAt.
func (d *queueDispatcher) writeReady(ctx context.Context, accountID string, result *Result) {
	now := time.Now().UTC()
	_, err := d.stateService.UpdateStatusAtomically(ctx, accountID, func(st *status.SyncStatus) bool {
		st.Stage = status.StageReady
		st.Progress = progressComplete
		st.Message = "sync complete"
		st.LastSyncedAt = &now
		return true
	})
	if err != nil {
		slog.Error("Failed to record completed sync",
			"account_id", accountID,
			"run_id", result.RunID,
			"error", err)
	}
}

// writeFailed moves the status record to the error stage. Progress is left
// where the run stopped.
func (d *queueDispatcher) writeFailed(ctx context.Context, accountID string, message string) {
	_, err := d.stateService.UpdateStatusAtomically(ctx, accountID, func(st *status.SyncStatus) bool {
		st.Stage = status.StageError
		st.Message = truncateMessage(message, maxStatusMessageLen)
		return true
	})
	if err != nil {
		slog.Error("Failed to record sync failure", "account_id", accountID, "error", err)
	}
}
