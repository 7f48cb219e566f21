// Package status defines the per-account sync status record and its
// file-based persistence.
package status

import "time"

// SyncStage represents where an account currently is in its sync lifecycle.
type SyncStage string

const (
	// StageIdle means no sync has run yet for the account.
	StageIdle SyncStage = "idle"

	// StageSyncing means a sync run is in progress.
	StageSyncing SyncStage = "syncing"

	// StageReady means the last sync run completed successfully.
	StageReady SyncStage = "ready"

	// StageError means the last sync run failed.
	StageError SyncStage = "error"
)

// DefaultMessage is the status message reported before any sync has run.
const DefaultMessage = "ready to sync"

// Terminal reports whether the stage ends a sync run. Pollers stop on a
// terminal stage; they also stop on StageIdle, which is not part of any run.
func (s SyncStage) Terminal() bool {
	return s == StageReady || s == StageError
}

// Valid reports whether the stage is one of the known values.
func (s SyncStage) Valid() bool {
	switch s {
	case StageIdle, StageSyncing, StageReady, StageError:
		return true
	default:
		return false
	}
}

// SyncStatus is the durable, per-account progress record. Stage, Progress
// and Message are always written together in a single upsert so a reader
// never observes a mixed combination.
type SyncStatus struct {
	// AccountID is the opaque external-account identifier
	AccountID string `json:"account_id"`

	// Stage is the current lifecycle stage
	Stage SyncStage `json:"stage"`

	// Progress is 0-100, monotonically non-decreasing within one run
	Progress int `json:"progress"`

	// Message is human-readable status text
	Message string `json:"message"`

	// LastSyncedAt is set only on a transition to StageReady
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// UpdatedAt is set on every write
	UpdatedAt time.Time `json:"updated_at"`
}

// Default is the status reported for an account with no record yet.
func Default(accountID string) *SyncStatus {
	return &SyncStatus{
		AccountID: accountID,
		Stage:     StageIdle,
		Progress:  0,
		Message:   DefaultMessage,
	}
}
