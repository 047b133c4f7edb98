package spies

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricsCollectorSpy captures metrics calls for testing.
// It implements lending.MetricsCollector and lending.ContextualMetricsCollector.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
	recordCalls     bool
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
	Context  context.Context
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric  string
	Labels  map[string]string
	Context context.Context
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric  string
	Value   float64
	Labels  map[string]string
	Context context.Context
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
// Set recordCalls to true to capture all metrics calls for inspection in tests.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{recordCalls: recordCalls}
}

// RecordDuration implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.RecordDurationContext(context.Background(), metric, duration, labels)
}

// IncrementCounter implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.IncrementCounterContext(context.Background(), metric, labels)
}

// RecordValue implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordDurationContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{
		Metric:   metric,
		Duration: duration,
		Labels:   maps.Clone(labels),
		Context:  ctx,
	})
}

// IncrementCounterContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{
		Metric:  metric,
		Labels:  maps.Clone(labels),
		Context: ctx,
	})
}

// RecordValueContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{
		Metric:  metric,
		Value:   value,
		Labels:  maps.Clone(labels),
		Context: ctx,
	})
}

// GetDurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyDurationRecord, len(s.durationRecords))
	copy(records, s.durationRecords)

	return records
}

// GetCounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyCounterRecord, len(s.counterRecords))
	copy(records, s.counterRecords)

	return records
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyValueRecord, len(s.valueRecords))
	copy(records, s.valueRecords)

	return records
}

// Reset clears all captured metric records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = nil
	s.counterRecords = nil
	s.valueRecords = nil
}

// HasDurationRecordWithLabels checks for a duration record with the metric name and at least the given labels.
func (s *MetricsCollectorSpy) HasDurationRecordWithLabels(metric string, labels map[string]string) bool {
	for _, record := range s.GetDurationRecords() {
		if record.Metric == metric && containsLabels(record.Labels, labels) {
			return true
		}
	}

	return false
}

// HasCounterRecordWithLabels checks for a counter record with the metric name and at least the given labels.
func (s *MetricsCollectorSpy) HasCounterRecordWithLabels(metric string, labels map[string]string) bool {
	return s.CountCounterRecords(metric, labels) > 0
}

// CountCounterRecords counts the counter records with the metric name and at least the given labels.
func (s *MetricsCollectorSpy) CountCounterRecords(metric string, labels map[string]string) int {
	count := 0
	for _, record := range s.GetCounterRecords() {
		if record.Metric == metric && containsLabels(record.Labels, labels) {
			count++
		}
	}

	return count
}

// HasValueRecord checks for a value record with the metric name, the value and at least the given labels.
func (s *MetricsCollectorSpy) HasValueRecord(metric string, value float64, labels map[string]string) bool {
	for _, record := range s.GetValueRecords() {
		if record.Metric == metric && record.Value == value && containsLabels(record.Labels, labels) {
			return true
		}
	}

	return false
}

func containsLabels(actual, expected map[string]string) bool {
	for key, value := range expected {
		if actual[key] != value {
			return false
		}
	}

	return true
}
