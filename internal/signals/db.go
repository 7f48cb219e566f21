package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revenuleaks/billing-sync-server/internal/db/sqlc"
)

type dbStore struct {
	pool *pgxpool.Pool
}

// NewDBStore creates a PostgreSQL-backed signal store
func NewDBStore(pool *pgxpool.Pool) Store {
	return &dbStore{
		pool: pool,
	}
}

func (d *dbStore) InsertSignals(ctx context.Context, signals []RevenueSignal) ([]RevenueSignal, error) {
	queries := sqlc.New(d.pool)

	inserted := make([]RevenueSignal, 0, len(signals))
	for _, signal := range signals {
		params, err := insertParams(signal)
		if err != nil {
			return nil, err
		}

		id, err := queries.InsertRevenueSignal(ctx, params)
		if errors.Is(err, pgx.ErrNoRows) {
			// The dedup index swallowed the insert: already recorded.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to insert signal for account '%s': %w", signal.AccountID, err)
		}

		signal.ID = id
		inserted = append(inserted, signal)
	}
	return inserted, nil
}

func (d *dbStore) ListSignals(ctx context.Context, accountID string, limit int) ([]RevenueSignal, error) {
	rows, err := sqlc.New(d.pool).ListRevenueSignalsByAccount(ctx, sqlc.ListRevenueSignalsByAccountParams{
		AccountID: accountID,
		RowLimit:  int32(limit), // #nosec G115 -- limit is a small caller-chosen bound
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list signals for account '%s': %w", accountID, err)
	}
	return dbRowsToSignals(rows)
}

func (d *dbStore) ListAllSignals(ctx context.Context, limit int) ([]RevenueSignal, error) {
	// #nosec G115 -- limit is a small caller-chosen bound
	rows, err := sqlc.New(d.pool).ListRevenueSignals(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return dbRowsToSignals(rows)
}

func (d *dbStore) CountSignals(ctx context.Context, accountID string) (int64, error) {
	count, err := sqlc.New(d.pool).CountRevenueSignalsByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to count signals for account '%s': %w", accountID, err)
	}
	return count, nil
}

// insertParams converts a domain signal to insert parameters, serializing
// its meta payload to JSON.
func insertParams(signal RevenueSignal) (sqlc.InsertRevenueSignalParams, error) {
	meta := signal.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return sqlc.InsertRevenueSignalParams{}, fmt.Errorf("failed to marshal signal meta for account '%s': %w",
			signal.AccountID, err)
	}

	return sqlc.InsertRevenueSignalParams{
		AccountID:  signal.AccountID,
		SignalType: string(signal.Type),
		Severity:   sqlc.SignalSeverity(signal.Severity),
		Value:      signal.Value,
		Message:    signal.Message,
		Meta:       metaJSON,
		DedupKey:   signal.DedupKey,
		DetectedAt: signal.DetectedAt,
	}, nil
}

func dbRowsToSignals(rows []sqlc.RevenueSignal) ([]RevenueSignal, error) {
	result := make([]RevenueSignal, 0, len(rows))
	for _, row := range rows {
		signal := RevenueSignal{
			ID:         row.ID,
			AccountID:  row.AccountID,
			Type:       SignalType(row.SignalType),
			Severity:   Severity(row.Severity),
			Value:      row.Value,
			Message:    row.Message,
			DedupKey:   row.DedupKey,
			DetectedAt: row.DetectedAt,
		}
		if len(row.Meta) > 0 {
			if err := json.Unmarshal(row.Meta, &signal.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal signal meta for account '%s': %w",
					row.AccountID, err)
			}
		}
		result = append(result, signal)
	}
	return result, nil
}
