package observable_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/testutil/spies"
)

const testCommandType = "TestCommand"

func Test_CommandWrapper_Handle_Success_NonIdempotent(t *testing.T) {
	// arrange
	expectedResult := shell.HandlerResult{RetryAttempts: 1, LastErrorType: "none"}
	handler := newMockCommandHandler("done", expectedResult, nil)
	metricsCollector := spies.NewMetricsCollectorSpy(true)
	tracingCollector := spies.NewTracingCollectorSpy(true)
	contextualLogger := spies.NewContextualLoggerSpy(true)

	wrapper, err := observable.NewCommandWrapper[mockCommand, string](
		handler,
		observable.WithCommandMetrics[mockCommand, string](metricsCollector),
		observable.WithCommandTracing[mockCommand, string](tracingCollector),
		observable.WithCommandContextualLogging[mockCommand, string](contextualLogger),
	)
	require.NoError(t, err)

	command := mockCommand{ID: "c-1"}

	// act
	response, result, err := wrapper.Handle(context.Background(), command)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "done", response)
	assert.Equal(t, expectedResult, result)
	assert.Equal(t, []mockCommand{command}, handler.GetCalls())

	successLabels := shell.BuildCommandLabels(testCommandType, shell.StatusSuccess)
	assert.True(t, metricsCollector.HasCounterRecordWithLabels(shell.CommandHandlerCallsMetric, successLabels))
	assert.True(t, metricsCollector.HasDurationRecordWithLabels(shell.CommandHandlerDurationMetric, successLabels))
	assert.False(t, metricsCollector.HasCounterRecordWithLabels(shell.CommandHandlerRetriesMetric, nil))

	span, found := tracingCollector.FindSpan(shell.SpanNameCommandHandle)
	require.True(t, found)
	assert.Equal(t, shell.StatusSuccess, span.Status)

	assert.True(t, contextualLogger.HasRecord("debug", shell.LogMsgCommandStarted))
	assert.True(t, contextualLogger.HasRecord("info", shell.LogMsgCommandCompleted))
}

func Test_CommandWrapper_Handle_Success_Idempotent(t *testing.T) {
	// arrange
	handler := newMockCommandHandler("", shell.HandlerResult{Idempotent: true, RetryAttempts: 1}, nil)
	metricsCollector := spies.NewMetricsCollectorSpy(true)

	wrapper, err := observable.NewCommandWrapper[mockCommand, string](
		handler,
		observable.WithCommandMetrics[mockCommand, string](metricsCollector),
	)
	require.NoError(t, err)

	// act
	_, result, err := wrapper.Handle(context.Background(), mockCommand{})

	// assert
	require.NoError(t, err)
	assert.True(t, result.Idempotent)
	assert.True(t, metricsCollector.HasCounterRecordWithLabels(
		shell.CommandHandlerIdempotentMetric,
		shell.BuildCommandLabels(testCommandType, shell.StatusIdempotent),
	))
}

func Test_CommandWrapper_Handle_Rejection_IsLoggedAsWarning(t *testing.T) {
	// arrange
	handler := newMockCommandHandler("", shell.HandlerResult{RetryAttempts: 1}, lending.ErrUnavailable)
	metricsCollector := spies.NewMetricsCollectorSpy(true)
	tracingCollector := spies.NewTracingCollectorSpy(true)
	logHandler := spies.NewLogHandlerSpy(false)

	wrapper, err := observable.NewCommandWrapper[mockCommand, string](
		handler,
		observable.WithCommandMetrics[mockCommand, string](metricsCollector),
		observable.WithCommandTracing[mockCommand, string](tracingCollector),
		observable.WithCommandLogging[mockCommand, string](slog.New(logHandler)),
	)
	require.NoError(t, err)

	// act
	_, _, err = wrapper.Handle(context.Background(), mockCommand{})

	// assert
	assert.ErrorIs(t, err, lending.ErrUnavailable)
	assert.True(t, metricsCollector.HasCounterRecordWithLabels(
		shell.CommandHandlerRejectedMetric,
		shell.BuildCommandLabels(testCommandType, shell.StatusRejected),
	))
	assert.True(t, logHandler.HasLog(slog.LevelWarn, shell.LogMsgCommandRejected, shell.LogAttrBusinessOutcome))
	assert.False(t, logHandler.HasLog(slog.LevelError, shell.LogMsgCommandFailed))

	span, found := tracingCollector.FindSpan(shell.SpanNameCommandHandle)
	require.True(t, found)
	assert.Equal(t, shell.StatusRejected, span.Status)
	assert.Equal(t, shell.OutcomeUnavailable, span.EndAttributes[shell.LogAttrBusinessOutcome])
}

func Test_CommandWrapper_Handle_TechnicalErrors(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		expectedStatus string
		expectedMetric string
	}{
		{name: "canceled", err: context.Canceled, expectedStatus: shell.StatusCanceled, expectedMetric: shell.CommandHandlerCanceledMetric},
		{name: "timeout", err: context.DeadlineExceeded, expectedStatus: shell.StatusTimeout, expectedMetric: shell.CommandHandlerTimeoutMetric},
		{name: "conflict", err: lending.ErrConcurrencyConflict, expectedStatus: shell.StatusConcurrencyConflict, expectedMetric: shell.CommandHandlerConcurrencyConflictMetric},
		{name: "other", err: errors.New("connection reset"), expectedStatus: shell.StatusError, expectedMetric: shell.CommandHandlerCallsMetric},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			handler := newMockCommandHandler("", shell.HandlerResult{RetryAttempts: 1}, tc.err)
			metricsCollector := spies.NewMetricsCollectorSpy(true)
			contextualLogger := spies.NewContextualLoggerSpy(true)

			wrapper, err := observable.NewCommandWrapper[mockCommand, string](
				handler,
				observable.WithCommandMetrics[mockCommand, string](metricsCollector),
				observable.WithCommandContextualLogging[mockCommand, string](contextualLogger),
			)
			require.NoError(t, err)

			// act
			_, _, err = wrapper.Handle(context.Background(), mockCommand{})

			// assert
			assert.ErrorIs(t, err, tc.err)
			assert.True(t, metricsCollector.HasCounterRecordWithLabels(
				tc.expectedMetric,
				shell.BuildCommandLabels(testCommandType, tc.expectedStatus),
			))
			assert.True(t, contextualLogger.HasRecord("error", shell.LogMsgCommandFailed))
		})
	}
}

func Test_CommandWrapper_Handle_RecordsRetryMetadata(t *testing.T) {
	// arrange
	handler := newMockCommandHandler("", shell.HandlerResult{
		RetryAttempts:    6,
		TotalRetryDelay:  300 * time.Millisecond,
		LastErrorType:    "concurrency_conflict",
		RetriesExhausted: true,
	}, lending.ErrConcurrencyConflict)
	metricsCollector := spies.NewMetricsCollectorSpy(true)

	wrapper, err := observable.NewCommandWrapper[mockCommand, string](
		handler,
		observable.WithCommandMetrics[mockCommand, string](metricsCollector),
	)
	require.NoError(t, err)

	// act
	_, _, _ = wrapper.Handle(context.Background(), mockCommand{})

	// assert
	assert.True(t, metricsCollector.HasCounterRecordWithLabels(shell.CommandHandlerRetriesMetric, map[string]string{
		shell.LogAttrCommandType:   testCommandType,
		shell.LogAttrAttemptNumber: "5",
		shell.LogAttrErrorType:     "concurrency_conflict",
	}))
	assert.True(t, metricsCollector.HasDurationRecordWithLabels(shell.CommandHandlerRetryDelayMetric, map[string]string{
		shell.LogAttrCommandType: testCommandType,
	}))
	assert.True(t, metricsCollector.HasCounterRecordWithLabels(shell.CommandHandlerMaxRetriesReachedMetric, map[string]string{
		shell.LogAttrCommandType:    testCommandType,
		shell.LogAttrFinalErrorType: "concurrency_conflict",
	}))
}

func Test_CommandWrapper_Handle_WithoutObservability(t *testing.T) {
	// arrange
	handler := newMockCommandHandler("plain", shell.HandlerResult{}, nil)
	wrapper, err := observable.NewCommandWrapper[mockCommand, string](handler)
	require.NoError(t, err)

	// act
	response, _, err := wrapper.Handle(context.Background(), mockCommand{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "plain", response)
}

/*** Test doubles ***/

type mockCommand struct {
	ID string
}

func (c mockCommand) CommandType() string {
	return testCommandType
}

type mockCommandHandler struct {
	mu       sync.Mutex
	calls    []mockCommand
	response string
	result   shell.HandlerResult
	err      error
}

func newMockCommandHandler(response string, result shell.HandlerResult, err error) *mockCommandHandler {
	return &mockCommandHandler{response: response, result: result, err: err}
}

func (h *mockCommandHandler) Handle(_ context.Context, command mockCommand) (string, shell.HandlerResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, command)

	return h.response, h.result, h.err
}

func (h *mockCommandHandler) GetCalls() []mockCommand {
	h.mu.Lock()
	defer h.mu.Unlock()

	calls := make([]mockCommand, len(h.calls))
	copy(calls, h.calls)

	return calls
}
