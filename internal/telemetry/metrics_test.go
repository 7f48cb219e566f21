package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewSyncMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSyncMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.syncDuration)
		assert.NotNil(t, metrics.syncRuns)
	})
}

func TestSyncMetrics_RecordSyncRun(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *SyncMetrics
		// Should not panic
		metrics.RecordSyncRun(context.Background(), "acct_test", 5*time.Second, true)
	})

	t.Run("records duration and run count with attributes", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		// Record one successful and one failed run
		metrics.RecordSyncRun(context.Background(), "acct_prod", 2500*time.Millisecond, true)
		metrics.RecordSyncRun(context.Background(), "acct_dev", 500*time.Millisecond, false)

		// Collect metrics
		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		// Verify metrics were recorded
		require.NotEmpty(t, rm.ScopeMetrics)

		// Find our sync metrics scope
		var foundScope bool
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name == SyncMetricsMeterName {
				foundScope = true
				assert.NotEmpty(t, scope.Metrics)

				for _, m := range scope.Metrics {
					switch m.Name {
					case "rvl_sync_duration_seconds":
						_, ok := m.Data.(metricdata.Histogram[float64])
						assert.True(t, ok, "expected histogram data type")
					case "rvl_sync_runs_total":
						sum, ok := m.Data.(metricdata.Sum[int64])
						require.True(t, ok, "expected sum data type")
						var total int64
						for _, dp := range sum.DataPoints {
							total += dp.Value
						}
						assert.Equal(t, int64(2), total)
					}
				}
			}
		}
		assert.True(t, foundScope, "expected to find sync metrics scope")
	})

	t.Run("records duration in seconds", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSyncMetrics(mp)
		require.NoError(t, err)

		// Record a 1.5 second run
		metrics.RecordSyncRun(context.Background(), "acct_test", 1500*time.Millisecond, true)

		// Collect and verify
		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		// The histogram should have recorded 1.5 seconds
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name == SyncMetricsMeterName {
				for _, m := range scope.Metrics {
					if m.Name == "rvl_sync_duration_seconds" {
						hist, ok := m.Data.(metricdata.Histogram[float64])
						require.True(t, ok)
						require.NotEmpty(t, hist.DataPoints)
						// Sum should be 1.5 (seconds)
						assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)
					}
				}
			}
		}
	})
}

func TestNewSignalMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSignalMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("creates metrics with SDK provider", func(t *testing.T) {
		t.Parallel()

		mp := sdkmetric.NewMeterProvider()
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSignalMetrics(mp)
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.signalsDetected)
	})
}

func TestSignalMetrics_RecordSignalsDetected(t *testing.T) {
	t.Parallel()

	t.Run("no-op when metrics is nil", func(t *testing.T) {
		t.Parallel()

		var metrics *SignalMetrics
		// Should not panic
		metrics.RecordSignalsDetected(context.Background(), "acct_test", 3)
	})

	t.Run("ignores non-positive counts", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSignalMetrics(mp)
		require.NoError(t, err)

		metrics.RecordSignalsDetected(context.Background(), "acct_test", 0)
		metrics.RecordSignalsDetected(context.Background(), "acct_test", -3)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		for _, scope := range rm.ScopeMetrics {
			assert.NotEqual(t, SignalMetricsMeterName, scope.Scope.Name,
				"expected no signal metrics to be recorded")
		}
	})

	t.Run("records count with account attribute", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewSignalMetrics(mp)
		require.NoError(t, err)
		require.NotNil(t, metrics)

		metrics.RecordSignalsDetected(context.Background(), "acct_prod", 4)
		metrics.RecordSignalsDetected(context.Background(), "acct_prod", 2)

		var rm metricdata.ResourceMetrics
		err = reader.Collect(context.Background(), &rm)
		require.NoError(t, err)

		var foundScope bool
		for _, scope := range rm.ScopeMetrics {
			if scope.Scope.Name == SignalMetricsMeterName {
				foundScope = true
				for _, m := range scope.Metrics {
					if m.Name == "rvl_signals_detected_total" {
						sum, ok := m.Data.(metricdata.Sum[int64])
						require.True(t, ok, "expected sum data type")
						var total int64
						for _, dp := range sum.DataPoints {
							total += dp.Value
						}
						assert.Equal(t, int64(6), total)
					}
				}
			}
		}
		assert.True(t, foundScope, "expected to find signal metrics scope")
	})
}
