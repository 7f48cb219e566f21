package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revenuleaks/billing-sync-server/internal/db/sqlc"
)

type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a PostgreSQL-backed snapshot store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{
		pool: pool,
	}
}

func (d *dbStore) SaveSnapshot(ctx context.Context, snapshot *MetricSnapshot) error {
	id, err := sqlc.New(d.pool).InsertMetricSnapshot(ctx, insertParams(snapshot))
	if err != nil {
		return fmt.Errorf("failed to insert metric snapshot for account '%s': %w", snapshot.AccountID, err)
	}
	snapshot.ID = id
	return nil
}

func (d *dbStore) LatestSnapshot(ctx context.Context, accountID string) (*MetricSnapshot, error) {
	row, err := sqlc.New(d.pool).GetLatestMetricSnapshot(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to load latest metric snapshot for account '%s': %w", accountID, err)
	}
	return dbRowToSnapshot(row), nil
}

func (d *dbStore) RecentSnapshots(ctx context.Context, accountID string, limit int) ([]*MetricSnapshot, error) {
	rows, err := sqlc.New(d.pool).ListRecentMetricSnapshots(ctx, sqlc.ListRecentMetricSnapshotsParams{
		AccountID: accountID,
		RowLimit:  int32(limit), // #nosec G115 -- limit is a small caller-chosen bound
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list metric snapshots for account '%s': %w", accountID, err)
	}

	snapshots := make([]*MetricSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, dbRowToSnapshot(row))
	}
	return snapshots, nil
}

func (d *dbStore) PruneSnapshotsBefore(ctx context.Context, accountID string, cutoff time.Time) (int64, error) {
	removed, err := sqlc.New(d.pool).DeleteMetricSnapshotsBefore(ctx, sqlc.DeleteMetricSnapshotsBeforeParams{
		AccountID: accountID,
		Cutoff:    cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune metric snapshots for account '%s': %w", accountID, err)
	}
	return removed, nil
}

// dbRowToSnapshot converts a database row to the domain snapshot
func dbRowToSnapshot(row sqlc.MetricSnapshot) *MetricSnapshot {
	return &MetricSnapshot{
		ID:                  row.ID,
		AccountID:           row.AccountID,
		CapturedAt:          row.CapturedAt,
		MRRCents:            row.MrrCents,
		ActiveSubscriptions: int(row.ActiveSubscriptions),
		CanceledLast30d:     int(row.CanceledLast30d),
		TotalCustomers:      int(row.TotalCustomers),
		DelinquentCustomers: int(row.DelinquentCustomers),
		OpenInvoices:        int(row.OpenInvoices),
		OverdueInvoiceCents: row.OverdueInvoiceCents,
		FailedCharges7d:     int(row.FailedCharges7d),
		FailedCharges30d:    int(row.FailedCharges30d),
		ChurnRate:           row.ChurnRate,
	}
}

// insertParams converts the domain snapshot to insert parameters. Counts fit
// in int32 at any realistic account size.
func insertParams(snapshot *MetricSnapshot) sqlc.InsertMetricSnapshotParams {
	return sqlc.InsertMetricSnapshotParams{
		AccountID:           snapshot.AccountID,
		CapturedAt:          snapshot.CapturedAt,
		MrrCents:            snapshot.MRRCents,
		ActiveSubscriptions: int32(snapshot.ActiveSubscriptions), // #nosec G115
		CanceledLast30d:     int32(snapshot.CanceledLast30d),     // #nosec G115
		TotalCustomers:      int32(snapshot.TotalCustomers),      // #nosec G115
		DelinquentCustomers: int32(snapshot.DelinquentCustomers), // #nosec G115
		OpenInvoices:        int32(snapshot.OpenInvoices),        // #nosec G115
		OverdueInvoiceCents: snapshot.OverdueInvoiceCents,
		FailedCharges7d:     int32(snapshot.FailedCharges7d),  // #nosec G115
		FailedCharges30d:    int32(snapshot.FailedCharges30d), // #nosec G115
		ChurnRate:           snapshot.ChurnRate,
	}
}
