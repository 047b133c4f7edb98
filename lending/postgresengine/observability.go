package postgresengine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	metricOperationDuration    = "lending_store_operation_duration_seconds"
	metricOperationsTotal      = "lending_store_operations_total"
	metricRowsAffected         = "lending_store_rows_affected"
	metricDatabaseErrors       = "lending_store_database_errors_total"
	metricConcurrencyConflicts = "lending_store_concurrency_conflicts_total"
	spanNamePrefix             = "lending.store."
	spanAttrOperation          = "operation"
	spanAttrErrorType          = "error_type"
	spanAttrDurationMS         = "duration_ms"
	spanAttrRowCount           = "row_count"
	spanAttrBookID             = "book_id"
	spanAttrBorrowID           = "borrow_id"
	labelStatus                = "status"
	labelConflictType          = "conflict_type"
	statusSuccess              = "success"
	statusRejected             = "rejected"
	statusError                = "error"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

// logWarn logs tolerated anomalies.
func (s Store) logWarn(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at the error level.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordDuration uses the context-aware method if the collector supports it.
func (s Store) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

// incrementCounter uses the context-aware method if the collector supports it.
func (s Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

// recordValue uses the context-aware method if the collector supports it.
func (s Store) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	s.metricsCollector.RecordValue(metric, value, labels)
}

// === Operation Observer ===
// One observer per store operation covers its span, its metrics, and its outcome log.

type operationObserver struct {
	store     Store
	ctx       context.Context
	operation string
	span      lending.SpanContext
	start     time.Time
}

// observe starts the span for an operation and returns the context to run the operation with.
func (s Store) observe(ctx context.Context, operation string, attrs map[string]string) (*operationObserver, context.Context) {
	spanAttrs := map[string]string{spanAttrOperation: operation}
	for key, value := range attrs {
		spanAttrs[key] = value
	}

	var span lending.SpanContext
	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, spanAttrs)
	}

	return &operationObserver{
		store:     s,
		ctx:       ctx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}, ctx
}

// success records a completed operation. rows is the number of rows read or written.
func (o *operationObserver) success(rows int, logArgs ...any) {
	duration := time.Since(o.start)
	labels := o.labels(statusSuccess)

	o.store.recordDuration(o.ctx, metricOperationDuration, duration, labels)
	o.store.incrementCounter(o.ctx, metricOperationsTotal, labels)
	o.store.recordValue(o.ctx, metricRowsAffected, float64(rows), labels)

	args := []any{logAttrDurationMS, toMilliseconds(duration), logAttrRowCount, rows}
	args = append(args, logArgs...)
	o.store.logOperation(o.ctx, o.operation+logMsgCompletedSuffix, args...)

	o.finishSpan(statusSuccess, map[string]string{
		spanAttrRowCount:   fmt.Sprintf("%d", rows),
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}

// failure records a failed operation. Business rejections are counted separately from database errors.
func (o *operationObserver) failure(err error) {
	duration := time.Since(o.start)
	errorType := errorTypeOf(err)
	status := statusError

	if isBusinessOutcome(err) {
		status = statusRejected
	}

	labels := o.labels(status)
	o.store.recordDuration(o.ctx, metricOperationDuration, duration, labels)
	o.store.incrementCounter(o.ctx, metricOperationsTotal, labels)

	switch {
	case errorType == errorTypeConcurrencyConflict:
		o.store.incrementCounter(o.ctx, metricConcurrencyConflicts, map[string]string{
			spanAttrOperation: o.operation,
			labelConflictType: errorTypeConcurrencyConflict,
		})
		o.store.logOperation(o.ctx, logMsgConcurrencyConflict, logAttrOperation, o.operation, logAttrError, err.Error())

	case status == statusError:
		errorLabels := o.labels(statusError)
		errorLabels[spanAttrErrorType] = errorType
		o.store.incrementCounter(o.ctx, metricDatabaseErrors, errorLabels)
		o.store.logError(o.ctx, o.operation+logMsgFailedSuffix, err, logAttrDurationMS, toMilliseconds(duration))

	default:
		o.store.logOperation(o.ctx, o.operation+logMsgRejectedSuffix, logAttrReason, errorType)
	}

	o.finishSpan(status, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", toMilliseconds(duration)),
	})
}

func (o *operationObserver) finish(err error, rows int, logArgs ...any) {
	if err != nil {
		o.failure(err)
		return
	}

	o.success(rows, logArgs...)
}

func (o *operationObserver) labels(status string) map[string]string {
	return map[string]string{
		spanAttrOperation: o.operation,
		labelStatus:       status,
	}
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.span == nil || o.store.tracingCollector == nil {
		return
	}

	o.store.tracingCollector.FinishSpan(o.span, status, attrs)
}
