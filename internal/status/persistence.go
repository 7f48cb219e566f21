package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

const (
	// StatusFileName is the name of the per-account status file
	StatusFileName = "status.json"
)

// StatusPersistence defines the interface for sync status persistence
//
//nolint:revive // This name is fine
type StatusPersistence interface {
	// SaveStatus saves the sync status to persistent storage for a specific account
	SaveStatus(ctx context.Context, accountID string, status *SyncStatus) error

	// LoadStatus loads the sync status from persistent storage for a specific account.
	// Returns the default status if no file exists (first run).
	LoadStatus(ctx context.Context, accountID string) (*SyncStatus, error)

	// LoadAllStatus loads sync status for all accounts
	LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error)
}

// fileStatusPersistence implements StatusPersistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence.
// basePath is the base directory where per-account status files are stored.
func NewFileStatusPersistence(basePath string) StatusPersistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
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

// SaveStatus saves the sync status to a JSON file in an account-specific directory
func (f *fileStatusPersistence) SaveStatus(_ context.Context, accountID string, status *SyncStatus) error {
	if err := validateAccountID(accountID); err != nil {
		return err
	}

	accountDir := filepath.Join(f.basePath, accountID)
	if err := os.MkdirAll(accountDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for account '%s': %w", accountID, err)
	}

	filePath := filepath.Join(accountDir, StatusFileName)

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for account '%s': %w", accountID, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for account '%s': %w", accountID, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for account '%s': %w", accountID, err)
	}

	return nil
}

// LoadStatus loads the sync status from a JSON file for a specific account.
// Returns the default status if the file doesn't exist.
func (f *fileStatusPersistence) LoadStatus(_ context.Context, accountID string) (*SyncStatus, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}

	filePath := filepath.Join(f.basePath, accountID, StatusFileName)

	// #nosec G304 -- filePath is constructed from basePath plus a validated account id
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No record yet - this is OK for first run
			return Default(accountID), nil
		}
		return nil, fmt.Errorf("failed to read status file for account '%s': %w", accountID, err)
	}

	var status SyncStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for account '%s': %w", accountID, err)
	}

	return &status, nil
}

// LoadAllStatus loads sync status for all accounts
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*SyncStatus, error) {
	result := make(map[string]*SyncStatus)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			// Base directory doesn't exist yet, return empty map
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		accountID := entry.Name()
		status, err := f.LoadStatus(ctx, accountID)
		if err != nil {
			// Skip unreadable entries so one bad file doesn't hide the rest
			continue
		}

		result[accountID] = status
	}

	return result, nil
}
