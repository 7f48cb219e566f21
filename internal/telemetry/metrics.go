// Package telemetry provides OpenTelemetry instrumentation for the billing sync server.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/revenuleaks/billing-sync-server/sync"

	// SignalMetricsMeterName is the name used for the signal detection metrics meter
	SignalMetricsMeterName = "github.com/revenuleaks/billing-sync-server/signals"
)

// SyncMetrics holds the OpenTelemetry instruments for sync run metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	syncRuns     metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"rvl_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	syncRuns, err := meter.Int64Counter(
		"rvl_sync_runs_total",
		metric.WithDescription("Number of completed sync runs per account"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		syncRuns:     syncRuns,
	}, nil
}

// RecordSyncRun records the duration and outcome of a sync run for an account
func (m *SyncMetrics) RecordSyncRun(ctx context.Context, accountID string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("account", accountID),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.syncRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// SignalMetrics holds the OpenTelemetry instruments for signal detection metrics
type SignalMetrics struct {
	signalsDetected metric.Int64Counter
}

// NewSignalMetrics creates a new SignalMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSignalMetrics(provider metric.MeterProvider) (*SignalMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SignalMetricsMeterName)

	signalsDetected, err := meter.Int64Counter(
		"rvl_signals_detected_total",
		metric.WithDescription("Number of revenue signals persisted per account"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, err
	}

	return &SignalMetrics{
		signalsDetected: signalsDetected,
	}, nil
}

// RecordSignalsDetected records the number of newly persisted signals for an account
func (m *SignalMetrics) RecordSignalsDetected(ctx context.Context, accountID string, count int64) {
	if m == nil || m.signalsDetected == nil {
		return
	}
	if count <= 0 {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("account", accountID),
	}

	m.signalsDetected.Add(ctx, count, metric.WithAttributes(attrs...))
}
