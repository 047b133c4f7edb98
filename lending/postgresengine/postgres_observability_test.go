package postgresengine_test

import (
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgreswrapper" //nolint:revive
	"github.com/AntonStoeckl/library-lending-go/testutil/spies"
)

func Test_Observability_Store_WithLogger_LogsSQLAndOperations(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	logHandler := spies.NewLogHandlerSpy(false)
	store := CreateWrapperWithTestConfig(t, postgresengine.WithLogger(slog.New(logHandler))).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	logHandler.Reset()

	// act
	_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasLog(slog.LevelDebug, "executed sql for: lend_copy", "duration_ms", "query"))
	assert.True(t, logHandler.HasLog(slog.LevelInfo, "lending store operation: lend_copy completed", "duration_ms", "row_count", "book_id"))
}

func Test_Observability_Store_WithLogger_WarnsWhenCounterCannotBeRestored(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	logHandler := spies.NewLogHandlerSpy(false)
	store := CreateWrapperWithTestConfig(t, postgresengine.WithLogger(slog.New(logHandler))).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	borrow, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)
	require.NoError(t, store.DeleteBook(ctx, book.ID))

	// act
	_, err = store.SettleBorrow(ctx, borrow.ID, fakeClock)

	// assert
	require.NoError(t, err)
	assert.True(t, logHandler.HasLog(
		slog.LevelWarn,
		"book of returned borrow no longer exists, counter not restored",
		"borrow_id", "book_id",
	))
}

func Test_Observability_Store_WithMetrics_LabelsRejectionsSeparately(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	metrics := spies.NewMetricsCollectorSpy(true)
	store := CreateWrapperWithTestConfig(t, postgresengine.WithMetrics(metrics)).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)

	// act
	_, err = store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))

	// assert
	assert.ErrorIs(t, err, lending.ErrUnavailable)
	assert.True(t, metrics.HasDurationRecordWithLabels(
		"lending_store_operation_duration_seconds",
		map[string]string{"operation": "lend_copy", "status": "success"},
	))
	assert.True(t, metrics.HasCounterRecordWithLabels(
		"lending_store_operations_total",
		map[string]string{"operation": "lend_copy", "status": "rejected"},
	))
	assert.Zero(t, metrics.CountCounterRecords(
		"lending_store_database_errors_total",
		map[string]string{"operation": "lend_copy"},
	))
}

func Test_Observability_Store_WithTracing_RecordsSpans(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	tracing := spies.NewTracingCollectorSpy(true)
	store := CreateWrapperWithTestConfig(t, postgresengine.WithTracing(tracing)).GetStore()

	// act
	_, err := store.SettleBorrow(ctx, uuid.New(), fakeClock)

	// assert
	assert.ErrorIs(t, err, lending.ErrBorrowNotFound)

	span, found := tracing.FindSpan("lending.store.settle_borrow")
	require.True(t, found)
	assert.True(t, span.Finished)
	assert.Equal(t, "rejected", span.Status)
	assert.Equal(t, "not_found", span.EndAttributes["error_type"])
}

func Test_Observability_Store_WithContextualLogger_LogsOperations(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	contextualLogger := spies.NewContextualLoggerSpy(true)
	store := CreateWrapperWithTestConfig(t, postgresengine.WithContextualLogger(contextualLogger)).GetStore()

	// act
	_, err := store.MarkOverdue(ctx, fakeClock)

	// assert
	require.NoError(t, err)
	assert.True(t, contextualLogger.HasRecord("debug", "executed sql for: mark_overdue"))
	assert.True(t, contextualLogger.HasRecord("info", "lending store operation: mark_overdue completed"))
}
