package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// SnapshotsFileName is the name of the per-account snapshot history file
	SnapshotsFileName = "snapshots.json"

	// maxFileSnapshots bounds the on-disk history kept per account
	maxFileSnapshots = 50
)

// fileStore keeps a bounded newest-first snapshot history per account as a
// JSON file next to the account's status file.
type fileStore struct {
	basePath string

	mu sync.Mutex
}

// NewFileStore creates a file-based snapshot store rooted at basePath.
func NewFileStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is empty")
	}
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot base directory: %w", err)
	}
	return &fileStore{
		basePath: basePath,
	}, nil
}

// validateAccountID rejects identifiers that could escape the base path.
func validateAccountID(accountID string) error {
	if accountID == "" {
		return fmt.Errorf("account id is empty")
	}
	if strings.ContainsAny(accountID, `/\`) || strings.Contains(accountID, "..") {
		return fmt.Errorf("account id %q contains path characters", accountID)
	}
	return nil
}

func (f *fileStore) SaveSnapshot(_ context.Context, snapshot *MetricSnapshot) error {
	if err := validateAccountID(snapshot.AccountID); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.load(snapshot.AccountID)
	if err != nil {
		return err
	}

	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}

	// Newest first, capped so the file cannot grow without bound.
	history = append([]*MetricSnapshot{snapshot}, history...)
	if len(history) > maxFileSnapshots {
		history = history[:maxFileSnapshots]
	}

	return f.write(snapshot.AccountID, history)
}

func (f *fileStore) LatestSnapshot(_ context.Context, accountID string) (*MetricSnapshot, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.load(accountID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNoSnapshot
	}
	snapshotCopy := *history[0]
	return &snapshotCopy, nil
}

func (f *fileStore) RecentSnapshots(_ context.Context, accountID string, limit int) ([]*MetricSnapshot, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.load(accountID)
	if err != nil {
		return nil, err
	}
	if limit > len(history) {
		limit = len(history)
	}

	result := make([]*MetricSnapshot, 0, limit)
	for _, snapshot := range history[:limit] {
		snapshotCopy := *snapshot
		result = append(result, &snapshotCopy)
	}
	return result, nil
}

func (f *fileStore) PruneSnapshotsBefore(_ context.Context, accountID string, cutoff time.Time) (int64, error) {
	if err := validateAccountID(accountID); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	history, err := f.load(accountID)
	if err != nil {
		return 0, err
	}

	kept := make([]*MetricSnapshot, 0, len(history))
	for _, snapshot := range history {
		if !snapshot.CapturedAt.Before(cutoff) {
			kept = append(kept, snapshot)
		}
	}

	removed := int64(len(history) - len(kept))
	if removed == 0 {
		return 0, nil
	}
	if err := f.write(accountID, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// load reads the account's snapshot history. A missing file means no history
// yet. The caller must hold the mutex.
func (f *fileStore) load(accountID string) ([]*MetricSnapshot, error) {
	filePath := filepath.Join(f.basePath, accountID, SnapshotsFileName)

	// #nosec G304 -- filePath is constructed from basePath plus a validated account id
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot file for account '%s': %w", accountID, err)
	}

	var history []*MetricSnapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot data for account '%s': %w", accountID, err)
	}
	return history, nil
}

// write persists the account's snapshot history atomically. The caller must
// hold the mutex.
func (f *fileStore) write(accountID string, history []*MetricSnapshot) error {
	accountDir := filepath.Join(f.basePath, accountID)
	if err := os.MkdirAll(accountDir, 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory for account '%s': %w", accountID, err)
	}

	filePath := filepath.Join(accountDir, SnapshotsFileName)

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot data for account '%s': %w", accountID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file for account '%s': %w", accountID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file for account '%s': %w", accountID, err)
	}

	return nil
}
