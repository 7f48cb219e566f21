package app

import (
	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	pkgsync "github.com/revenuleaks/billing-sync-server/internal/sync"
	"github.com/revenuleaks/billing-sync-server/internal/sync/coordinator"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// SyncCoordinator schedules background synchronization
	SyncCoordinator coordinator.Coordinator

	// Dispatcher queues and runs sync jobs
	Dispatcher pkgsync.Dispatcher

	// StateService tracks per-account sync status
	StateService state.AccountStateService

	// Snapshots stores aggregated metric snapshots
	Snapshots aggregates.Store

	// Signals stores detected revenue signals
	Signals signals.Store

	// Detection evaluates snapshots for revenue signals
	Detection *signals.Service
}
