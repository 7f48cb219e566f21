package sync

import (
	"time"

	"github.com/revenuleaks/billing-sync-server/internal/status"
)

// FreshnessChecker decides whether an account's last successful sync is
// recent enough to skip a new run.
type FreshnessChecker interface {
	// IsFresh reports whether the status carries a successful sync newer
	// than the window, and the time at which that sync goes stale.
	IsFresh(syncStatus *status.SyncStatus, window time.Duration) (bool, time.Time)
}

// DefaultFreshnessChecker implements FreshnessChecker against wall-clock
// time.
type DefaultFreshnessChecker struct{}

// IsFresh reports whether the last successful sync is inside the window
func (*DefaultFreshnessChecker) IsFresh(
	syncStatus *status.SyncStatus, window time.Duration,
) (bool, time.Time) {
	if window <= 0 || syncStatus == nil || syncStatus.LastSyncedAt == nil {
		return false, time.Time{}
	}

	// Only a run that actually finished counts towards freshness.
	if syncStatus.Stage != status.StageReady {
		return false, time.Time{}
	}

	staleAt := syncStatus.LastSyncedAt.Add(window)
	if time.Now().Before(staleAt) {
		return true, staleAt
	}
	return false, time.Time{}
}
