package signals

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revenuleaks/billing-sync-server/internal/config"
)

// NewStore creates a signal Store based on the configured storage type.
//
// For file-based storage, signals live in a per-account JSON log under the
// configured base directory. For database storage they are rows in
// PostgreSQL with the dedup enforced by a unique index; the pool parameter
// must not be nil in that case.
func NewStore(cfg *config.Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.GetStorageType() {
	case config.StorageTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when storage type is database")
		}
		return NewDBStore(pool), nil
	case config.StorageTypeFile:
		return NewFileStore(cfg.GetFileStorageBaseDir())
	default:
		// Default to file-based storage for unknown types
		return NewFileStore(cfg.GetFileStorageBaseDir())
	}
}
