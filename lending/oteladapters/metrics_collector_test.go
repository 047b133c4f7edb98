package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/library-lending-go/lending/oteladapters"
)

func newMeteredCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "failed to collect metrics")

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration_InSeconds(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	labels := map[string]string{"operation": "lend_copy", "status": "success"}

	// act
	collector.RecordDuration("lending_store_operation_duration_seconds", 150*time.Millisecond, labels)

	// assert
	histogram, ok := findMetric(t, collect(t, reader), "lending_store_operation_duration_seconds").Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "lend_copy"),
		attribute.String("status", "success"),
	)
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounterContext_AddsUp(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	labels := map[string]string{"operation": "settle_borrow", "status": "rejected"}

	// act
	for range 3 {
		collector.IncrementCounterContext(context.Background(), "lending_store_operations_total", labels)
	}

	// assert
	sum, ok := findMetric(t, collect(t, reader), "lending_store_operations_total").Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	assert.True(t, sum.IsMonotonic)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()

	// act
	collector.RecordValue("lending_overdue_marked", 4, nil)
	collector.RecordValue("lending_overdue_marked", 2, nil)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "lending_overdue_marked").Data.(metricdata.Gauge[float64])
	require.True(t, ok, "expected a float64 gauge")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 2.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	// arrange
	collector, reader := newMeteredCollector()
	var wg sync.WaitGroup

	// act
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("lending_concurrent_total", map[string]string{"status": "success"})
			collector.RecordDuration("lending_concurrent_seconds", time.Millisecond, nil)
		}()
	}
	wg.Wait()

	// assert
	sum, ok := findMetric(t, collect(t, reader), "lending_concurrent_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(16), sum.DataPoints[0].Value)
}
