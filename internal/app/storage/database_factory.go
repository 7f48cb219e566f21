package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/config"
	"github.com/revenuleaks/billing-sync-server/internal/db"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/sync/state"
)

// DatabaseFactory creates database-backed storage components.
// All components created by this factory use PostgreSQL for persistence
// and share a single connection pool.
type DatabaseFactory struct {
	config *config.Config
	conn   *db.Connection
}

var _ Factory = (*DatabaseFactory)(nil)

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database
// and verifies connectivity before returning.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &DatabaseFactory{
		config: cfg,
		conn:   conn,
	}, nil
}

// CreateStateService creates a database-backed state service for sync status tracking.
func (d *DatabaseFactory) CreateStateService(_ context.Context) (state.AccountStateService, error) {
	slog.Debug("Creating database-backed state service")
	return state.NewStateService(d.config, nil, d.conn.Pool)
}

// CreateSnapshotStore creates a database-backed store for metric snapshots.
func (d *DatabaseFactory) CreateSnapshotStore(_ context.Context) (aggregates.Store, error) {
	slog.Debug("Creating database-backed snapshot store")
	return aggregates.NewStore(d.config, d.conn.Pool)
}

// CreateSignalStore creates a database-backed store for revenue signals.
func (d *DatabaseFactory) CreateSignalStore(_ context.Context) (signals.Store, error) {
	slog.Debug("Creating database-backed signal store")
	return signals.NewStore(d.config, d.conn.Pool)
}

// CheckReadiness pings the database to verify the pool can serve requests.
func (d *DatabaseFactory) CheckReadiness(ctx context.Context) error {
	if err := d.conn.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.conn != nil {
		slog.Info("Closing database connection pool")
		d.conn.Close()
	}
}
