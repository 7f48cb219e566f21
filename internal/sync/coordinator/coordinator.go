package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	pkgsync "github.com/revenuleaks/billing-sync-server/internal/sync"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

const (
	// basePollingInterval is the base interval at which the coordinator checks for due accounts
	basePollingInterval = time.Minute
	// pollingJitter is the maximum random offset (±15 seconds) applied to the polling interval
	pollingJitter = 15 * time.Second
)

// Coordinator schedules periodic background syncs for the configured accounts
type Coordinator interface {
	// Start begins background sync scheduling for all accounts.
	// Blocks until the context is cancelled or an unrecoverable error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator loop
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	dispatcher pkgsync.Dispatcher
	stateSvc   state.AccountStateService
	config     *config.Config

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a new coordinator with injected dependencies
func New(
	dispatcher pkgsync.Dispatcher,
	stateSvc state.AccountStateService,
	cfg *config.Config,
) Coordinator {
	return &defaultCoordinator{
		dispatcher: dispatcher,
		stateSvc:   stateSvc,
		config:     cfg,
		done:       make(chan struct{}),
	}
}

// calculatePollingInterval returns the base polling interval with a random jitter applied.
// The jitter prevents a fleet of instances from hitting the billing platform simultaneously.
func calculatePollingInterval() time.Duration {
	// Generate a random offset between -pollingJitter and +pollingJitter
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Start begins background sync scheduling for all accounts
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting background sync coordinator", "account_count", len(c.config.Accounts))

	// Create cancellable context for this coordinator
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Background sync coordinator shutting down")
	}()

	// Seed the status store with the configured accounts before any sync
	// can be scheduled against them.
	if err := c.stateSvc.Initialize(ctx, c.config.Accounts); err != nil {
		return fmt.Errorf("failed to initialize account sync status: %w", err)
	}

	pollingInterval := calculatePollingInterval()
	slog.Info("Configured coordinator polling interval",
		"base_interval", basePollingInterval,
		"actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	// Perform initial check so freshly started instances do not wait a
	// full interval before the first sync.
	c.checkDueAccounts(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.checkDueAccounts(coordCtx)

			// Recalculate interval with new jitter for the next iteration
			ticker.Reset(calculatePollingInterval())
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping sync coordinator")
		c.cancelFunc()
		// Wait for the loop to finish
		<-c.done
	}
	return nil
}

// checkDueAccounts triggers a sync for every account whose auto sync
// interval has elapsed
func (c *defaultCoordinator) checkDueAccounts(ctx context.Context) {
	for i := range c.config.Accounts {
		account := &c.config.Accounts[i]
		if !account.AutoSyncEnabled() {
			continue
		}
		if !c.syncDue(ctx, account) {
			continue
		}

		result := c.dispatcher.Trigger(ctx, account.ID, false)
		switch result.Outcome {
		case pkgsync.OutcomeTriggered:
			slog.Info("Scheduled background sync",
				"account_id", account.ID,
				"reason", result.Reason)
		case pkgsync.OutcomeAlreadySyncing, pkgsync.OutcomeSkipped:
			slog.Debug("Background sync not needed",
				"account_id", account.ID,
				"outcome", result.Outcome,
				"reason", result.Reason)
		case pkgsync.OutcomeError:
			slog.Error("Failed to schedule background sync",
				"account_id", account.ID,
				"reason", result.Reason,
				"message", result.Message)
		}
	}
}

// syncDue reports whether the account's auto sync interval has elapsed
// since the last successful run. The dispatcher applies its own guards;
// this check only keeps the coordinator from hammering it every tick.
func (c *defaultCoordinator) syncDue(ctx context.Context, account *config.AccountConfig) bool {
	syncStatus, err := c.stateSvc.GetSyncStatus(ctx, account.ID)
	if err != nil {
		slog.Warn("Failed to read sync status for schedule check",
			"account_id", account.ID,
			"error", err)
		return true
	}
	if syncStatus.Stage == status.StageSyncing {
		return false
	}
	if syncStatus.LastSyncedAt == nil {
		return true
	}
	return time.Since(*syncStatus.LastSyncedAt) >= account.AutoSyncInterval()
}
