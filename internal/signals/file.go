package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SignalsFileName is the name of the per-account signal log file
const SignalsFileName = "signals.json"

// fileStore keeps one newest-first JSON log per account next to the
// account's status and snapshot files.
type fileStore struct {
	basePath string

	mu sync.Mutex
}

// NewFileStore creates a file-based signal store rooted at basePath.
func NewFileStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path is empty")
	}
	if err := os.MkdirAll(basePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create signal base directory: %w", err)
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

func (f *fileStore) InsertSignals(_ context.Context, signals []RevenueSignal) ([]RevenueSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Signals are grouped per account so each log file is rewritten once.
	byAccount := make(map[string][]RevenueSignal)
	for _, signal := range signals {
		if err := validateAccountID(signal.AccountID); err != nil {
			return nil, err
		}
		byAccount[signal.AccountID] = append(byAccount[signal.AccountID], signal)
	}

	inserted := make([]RevenueSignal, 0, len(signals))
	for accountID, accountSignals := range byAccount {
		log, err := f.load(accountID)
		if err != nil {
			return nil, err
		}

		recorded := make(map[string]struct{}, len(log))
		for _, existing := range log {
			recorded[dedupIndexKey(existing.Type, existing.DedupKey)] = struct{}{}
		}

		changed := false
		for _, signal := range accountSignals {
			key := dedupIndexKey(signal.Type, signal.DedupKey)
			if _, exists := recorded[key]; exists {
				continue
			}
			recorded[key] = struct{}{}

			if signal.ID == uuid.Nil {
				signal.ID = uuid.New()
			}
			log = append([]RevenueSignal{signal}, log...)
			inserted = append(inserted, signal)
			changed = true
		}

		if changed {
			if err := f.write(accountID, log); err != nil {
				return nil, err
			}
		}
	}
	return inserted, nil
}

func (f *fileStore) ListSignals(_ context.Context, accountID string, limit int) ([]RevenueSignal, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	log, err := f.load(accountID)
	if err != nil {
		return nil, err
	}
	return truncateNewestFirst(log, limit), nil
}

func (f *fileStore) ListAllSignals(_ context.Context, limit int) ([]RevenueSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []RevenueSignal{}, nil
		}
		return nil, fmt.Errorf("failed to read signal base directory: %w", err)
	}

	var merged []RevenueSignal
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		log, err := f.load(entry.Name())
		if err != nil {
			// Skip unreadable entries so one bad file doesn't hide the rest
			continue
		}
		merged = append(merged, log...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].DetectedAt.After(merged[j].DetectedAt)
	})
	return truncateNewestFirst(merged, limit), nil
}

func (f *fileStore) CountSignals(_ context.Context, accountID string) (int64, error) {
	if err := validateAccountID(accountID); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	log, err := f.load(accountID)
	if err != nil {
		return 0, err
	}
	return int64(len(log)), nil
}

// dedupIndexKey scopes a dedup key to its signal type, mirroring the
// database's unique index.
func dedupIndexKey(signalType SignalType, dedupKey string) string {
	return string(signalType) + "\x00" + dedupKey
}

func truncateNewestFirst(log []RevenueSignal, limit int) []RevenueSignal {
	if limit > len(log) {
		limit = len(log)
	}
	result := make([]RevenueSignal, limit)
	copy(result, log[:limit])
	return result
}

// load reads the account's signal log. A missing file means no signals yet.
// The caller must hold the mutex.
func (f *fileStore) load(accountID string) ([]RevenueSignal, error) {
	filePath := filepath.Join(f.basePath, accountID, SignalsFileName)

	// #nosec G304 -- filePath is constructed from basePath plus a validated account id
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read signal file for account '%s': %w", accountID, err)
	}

	var log []RevenueSignal
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signal data for account '%s': %w", accountID, err)
	}
	return log, nil
}

// write persists the account's signal log atomically. The caller must hold
// the mutex.
func (f *fileStore) write(accountID string, log []RevenueSignal) error {
	accountDir := filepath.Join(f.basePath, accountID)
	if err := os.MkdirAll(accountDir, 0750); err != nil {
		return fmt.Errorf("failed to create signal directory for account '%s': %w", accountID, err)
	}

	filePath := filepath.Join(accountDir, SignalsFileName)

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signal data for account '%s': %w", accountID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary signal file for account '%s': %w", accountID, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename signal file for account '%s': %w", accountID, err)
	}

	return nil
}
