package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

// FileFactory creates file-based storage components.
// All components created by this factory use the local filesystem for persistence,
// rooted at a single base directory with per-account subdirectories.
type FileFactory struct {
	config  *config.Config
	baseDir string

	// File-mode dependencies (created once, shared by all components)
	statusPersistence status.StatusPersistence
}

var _ Factory = (*FileFactory)(nil)

// NewFileFactory creates a new file-based storage factory.
// The dataDir argument overrides the configured base directory when non-empty;
// the directory is created if it does not exist.
func NewFileFactory(cfg *config.Config, dataDir string) (*FileFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Use config's file storage base directory (defaults to "./data")
	baseDir := cfg.GetFileStorageBaseDir()
	if dataDir != "" {
		baseDir = dataDir
	}

	// Ensure data directory exists
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", baseDir, err)
	}

	slog.Info("Creating file-based storage factory", "base_dir", baseDir)

	return &FileFactory{
		config:            cfg,
		baseDir:           baseDir,
		statusPersistence: status.NewFileStatusPersistence(baseDir),
	}, nil
}

// CreateStateService creates a file-based state service for sync status tracking.
func (f *FileFactory) CreateStateService(_ context.Context) (state.AccountStateService, error) {
	slog.Debug("Creating file-based state service")
	return state.NewStateService(f.config, f.statusPersistence, nil)
}

// CreateSnapshotStore creates a file-based store for metric snapshots.
func (f *FileFactory) CreateSnapshotStore(_ context.Context) (aggregates.Store, error) {
	slog.Debug("Creating file-based snapshot store")
	return aggregates.NewFileStore(f.baseDir)
}

// CreateSignalStore creates a file-based store for revenue signals.
func (f *FileFactory) CreateSignalStore(_ context.Context) (signals.Store, error) {
	slog.Debug("Creating file-based signal store")
	return signals.NewFileStore(f.baseDir)
}

// CheckReadiness reports readiness of file storage. The base directory was
// created during construction, so file storage is always ready.
func (*FileFactory) CheckReadiness(_ context.Context) error {
	return nil
}

// Cleanup releases resources held by the file factory.
// For file storage, there are no resources to clean up (no connection pools, etc.).
func (*FileFactory) Cleanup() {
	slog.Debug("Cleaning up file storage factory (no-op)")
	// No resources to clean up for file storage
}
