// Package sync provides the billing synchronization pipeline and the
// dispatcher that executes it.
//
// This package owns everything between a trigger request and a finished
// status record:
//
// # Core Interfaces
//
//   - Manager: sync business logic (should an account sync, run the pipeline)
//   - Dispatcher: bounded queue and worker pool executing accepted runs
//   - FreshnessChecker: decides whether the last successful run is recent
//     enough to skip a new one
//
// # Coordinator Package
//
// The sync/coordinator subpackage schedules periodic background syncs for
// the configured accounts. It feeds the same Dispatcher as the API, so
// every run obeys the same guards regardless of who asked for it.
//
// # Pipeline
//
// A run moves through fixed steps, each advancing the progress milestone
// in the status record:
//
//  1. Pull subscriptions, customers, invoices and charges from the
//     billing platform (25, 45, 60, 70)
//  2. Compute the metric snapshot (85)
//  3. Persist the snapshot (95)
//  4. Optionally run signal detection and snapshot pruning
//
// The dispatcher brackets the pipeline: it writes the syncing stage when a
// trigger is accepted (5, "sync queued") and the terminal ready or error
// stage when the run finishes. Only the transition to ready sets
// lastSyncedAt.
//
// # Trigger Outcomes
//
// Dispatcher.Trigger resolves immediately to one of four outcomes:
//
//   - OutcomeTriggered: run accepted and queued
//   - OutcomeAlreadySyncing: a run for the account is queued or executing
//   - OutcomeSkipped: the freshness window made a run unnecessary
//   - OutcomeError: the trigger could not be accepted (queue full,
//     dispatcher stopped, status write failed)
//
// Per-account mutual exclusion is enforced with an in-flight token set:
// at most one queued or executing run exists per account, and a second
// trigger during that time resolves to OutcomeAlreadySyncing.
//
// # Error Handling
//
// Pipeline failures are classified into a closed set of steps (pull,
// aggregate, persist, detect) and wrapped in the structured Error type.
// The dispatcher writes the truncated message into the status record;
// raw causes stay in the logs. A failed run never propagates an error to
// the caller that triggered it, because the caller already returned when
// the run was queued.
//
// # Status Store Boundary
//
// All cross-boundary communication happens through the status store.
// Callers trigger a run, then poll the per-account status record to watch
// it progress; nothing is handed back over channels or callbacks.
package sync
