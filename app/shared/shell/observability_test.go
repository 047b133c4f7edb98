package shell_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/testutil/spies"
)

func Test_StatusOf(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "success", err: nil, expected: shell.StatusSuccess},
		{name: "unavailable", err: fmt.Errorf("borrow: %w", lending.ErrUnavailable), expected: shell.StatusRejected},
		{name: "book_not_found", err: lending.ErrBookNotFound, expected: shell.StatusRejected},
		{name: "borrow_not_found", err: lending.ErrBorrowNotFound, expected: shell.StatusRejected},
		{name: "already_returned", err: lending.ErrAlreadyReturned, expected: shell.StatusRejected},
		{name: "forbidden", err: lending.ErrForbidden, expected: shell.StatusRejected},
		{name: "canceled", err: context.Canceled, expected: shell.StatusCanceled},
		{name: "timeout", err: context.DeadlineExceeded, expected: shell.StatusTimeout},
		{name: "conflict", err: lending.ErrConcurrencyConflict, expected: shell.StatusConcurrencyConflict},
		{name: "other", err: errors.New("disk on fire"), expected: shell.StatusError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, shell.StatusOf(tc.err))
		})
	}
}

func Test_RejectionOutcome(t *testing.T) {
	assert.Equal(t, shell.OutcomeNotFound, shell.RejectionOutcome(lending.ErrBorrowNotFound))
	assert.Equal(t, shell.OutcomeUnavailable, shell.RejectionOutcome(lending.ErrUnavailable))
	assert.Equal(t, shell.OutcomeAlreadyReturned, shell.RejectionOutcome(lending.ErrAlreadyReturned))
	assert.Equal(t, shell.OutcomeForbidden, shell.RejectionOutcome(lending.ErrForbidden))
	assert.Empty(t, shell.RejectionOutcome(errors.New("boom")))
}

func Test_RecordCommandMetrics_RecordsStatusSpecificCounter(t *testing.T) {
	// arrange
	metricsSpy := spies.NewMetricsCollectorSpy(true)

	// act
	shell.RecordCommandMetrics(context.Background(), metricsSpy, "ReturnBook", shell.StatusRejected, 3*time.Millisecond)

	// assert
	labels := shell.BuildCommandLabels("ReturnBook", shell.StatusRejected)
	assert.True(t, metricsSpy.HasDurationRecordWithLabels(shell.CommandHandlerDurationMetric, labels))
	assert.True(t, metricsSpy.HasCounterRecordWithLabels(shell.CommandHandlerCallsMetric, labels))
	assert.True(t, metricsSpy.HasCounterRecordWithLabels(shell.CommandHandlerRejectedMetric, labels))
	assert.False(t, metricsSpy.HasCounterRecordWithLabels(shell.CommandHandlerIdempotentMetric, nil))
}

func Test_RecordCommandMetrics_NilCollectorIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() {
		shell.RecordCommandMetrics(context.Background(), nil, "BorrowBook", shell.StatusSuccess, time.Millisecond)
		shell.RecordQueryMetrics(context.Background(), nil, "ListAllLoans", shell.StatusSuccess, time.Millisecond)
	})
}

func Test_RecordQueryMetrics_RecordsTimeoutCounter(t *testing.T) {
	// arrange
	metricsSpy := spies.NewMetricsCollectorSpy(true)

	// act
	shell.RecordQueryMetrics(context.Background(), metricsSpy, "ListAllLoans", shell.StatusTimeout, time.Second)

	// assert
	labels := shell.BuildQueryLabels("ListAllLoans", shell.StatusTimeout)
	assert.True(t, metricsSpy.HasCounterRecordWithLabels(shell.QueryHandlerCallsMetric, labels))
	assert.True(t, metricsSpy.HasCounterRecordWithLabels(shell.QueryHandlerTimeoutMetric, labels))
}

func Test_FinishCommandSpan_AddsBusinessOutcomeForRejections(t *testing.T) {
	// arrange
	tracingSpy := spies.NewTracingCollectorSpy(true)
	ctx, span := shell.StartCommandSpan(context.Background(), tracingSpy, "BorrowBook")
	require.NotNil(t, ctx)

	// act
	shell.FinishCommandSpan(tracingSpy, span, shell.StatusRejected, time.Millisecond, lending.ErrUnavailable)

	// assert
	record, found := tracingSpy.FindSpan(shell.SpanNameCommandHandle)
	require.True(t, found)
	assert.True(t, record.Finished)
	assert.Equal(t, shell.StatusRejected, record.Status)
	assert.Equal(t, "BorrowBook", record.StartAttributes[shell.LogAttrCommandType])
	assert.Equal(t, shell.OutcomeUnavailable, record.EndAttributes[shell.LogAttrBusinessOutcome])
	assert.Equal(t, "1.00", record.EndAttributes[shell.LogAttrDurationMS])
}

func Test_LogHelpers_PreferContextualLogger(t *testing.T) {
	// arrange
	contextualSpy := spies.NewContextualLoggerSpy(true)
	ctx := context.Background()

	// act
	shell.LogCommandStart(ctx, nil, contextualSpy, "BorrowBook")
	shell.LogCommandRejected(ctx, nil, contextualSpy, "BorrowBook", lending.ErrUnavailable)
	shell.LogQueryError(ctx, nil, contextualSpy, "ListAllLoans", errors.New("boom"))

	// assert
	assert.True(t, contextualSpy.HasRecord("debug", shell.LogMsgCommandStarted))
	assert.True(t, contextualSpy.HasRecord("warn", shell.LogMsgCommandRejected))
	assert.True(t, contextualSpy.HasRecord("error", shell.LogMsgQueryFailed))
}
