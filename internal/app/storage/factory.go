// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern to ensure related components (state service,
// snapshot store, signal store) are created with compatible storage backends.
package storage

import (
	"context"
	"fmt"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
// Implementations ensure all components are compatible with each other
// (e.g., all use database or all use file storage).
//
// The factory encapsulates the creation of:
// - AccountStateService: Tracks sync status
// - aggregates.Store: Stores metric snapshots
// - signals.Store: Stores detected revenue signals
//
// It also manages the lifecycle of storage resources (e.g., database connections).
type Factory interface {
	// CreateStateService creates a state service for sync status tracking.
	// The returned service uses storage appropriate for this factory's type
	// (file-based or database-backed).
	CreateStateService(ctx context.Context) (state.AccountStateService, error)

	// CreateSnapshotStore creates a store for aggregated metric snapshots.
	// The returned store uses storage appropriate for this factory's type.
	CreateSnapshotStore(ctx context.Context) (aggregates.Store, error)

	// CreateSignalStore creates a store for detected revenue signals.
	// The returned store uses storage appropriate for this factory's type.
	CreateSignalStore(ctx context.Context) (signals.Store, error)

	// CheckReadiness reports whether the underlying storage can serve requests.
	// Database factories ping the connection pool; file factories always succeed.
	CheckReadiness(ctx context.Context) error

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	// For file factories, this is a no-op.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
// Returns a FileFactory for file-based storage or a DatabaseFactory for database storage.
func NewStorageFactory(ctx context.Context, cfg *config.Config, dataDir string) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		return NewDatabaseFactory(ctx, cfg)
	case config.StorageTypeFile:
		return NewFileFactory(cfg, dataDir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.GetStorageType())
	}
}
