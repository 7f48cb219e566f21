// Package coordinator provides background synchronization scheduling for billing accounts.
//
// This package implements the scheduling layer that keeps every configured
// account periodically synchronized without operator involvement. It sits on
// top of sync.Dispatcher and handles:
//
//   - Periodic due-account checks using a jittered time.Ticker
//   - Initial check on startup so new instances sync promptly
//   - Seeding the status store with the configured accounts
//   - Graceful shutdown
//
// # Architecture
//
// The coordinator separates concerns between:
//
//   - internal/sync: sync decisions and pipeline execution
//   - internal/sync/coordinator: scheduling and lifecycle
//   - cmd/rvl-sync-api serve: process lifecycle (starts/stops coordinator)
//
// The coordinator never runs a sync itself. Every due account goes through
// Dispatcher.Trigger, so background syncs obey the same per-account mutual
// exclusion, freshness window and queue bounds as API-triggered ones.
//
// # Scheduling
//
// Each tick the coordinator walks the configured accounts, skips those
// without autoSync enabled, and triggers the ones whose interval has
// elapsed since their last successful run. The polling interval carries a
// random jitter so a fleet of instances spreads its load on the billing
// platform.
//
// # Error Handling
//
// Failed triggers are logged and retried on the next tick; the coordinator
// keeps running through individual account failures. Run failures
// themselves are recorded in the status store by the dispatcher.
package coordinator
