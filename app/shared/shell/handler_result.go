package shell

import (
	"time"
)

// HandlerResult is the explicit outcome of a command handler besides its business result.
// It lets the observable wrapper record metrics without inspecting handler internals.
type HandlerResult struct {
	// Idempotent is true when the command succeeded without changing any state.
	Idempotent bool

	RetryAttempts    int
	TotalRetryDelay  time.Duration
	LastErrorType    string
	RetriesExhausted bool
}

// NewSuccessResult creates a result for a command that changed state.
func NewSuccessResult(retry RetryMetrics) HandlerResult {
	return HandlerResult{
		Idempotent:       false,
		RetryAttempts:    retry.Attempts,
		TotalRetryDelay:  retry.TotalDelay,
		LastErrorType:    retry.LastErrorType,
		RetriesExhausted: retry.RetriesExhausted,
	}
}

// NewIdempotentResult creates a result for a command that found nothing to change.
func NewIdempotentResult(retry RetryMetrics) HandlerResult {
	result := NewSuccessResult(retry)
	result.Idempotent = true

	return result
}

// NewErrorResult creates a result for a failed command.
func NewErrorResult(retry RetryMetrics) HandlerResult {
	return NewSuccessResult(retry)
}
