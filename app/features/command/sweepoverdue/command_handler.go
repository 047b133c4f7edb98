package sweepoverdue

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
)

// LoanLedger defines the interface needed by the CommandHandler.
type LoanLedger interface {
	MarkOverdue(ctx context.Context, now time.Time) (int, error)
}

// CommandHandler orchestrates the sweep: Authorize -> MarkOverdue, with retry on concurrency conflicts.
type CommandHandler struct {
	ledger       LoanLedger
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(ledger LoanLedger, opts ...Option) CommandHandler {
	handler := CommandHandler{
		ledger: ledger,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle marks all overdue loans. Only admins and the system caller may sweep.
// A sweep that found nothing to mark returns an idempotent HandlerResult.
func (h CommandHandler) Handle(ctx context.Context, command Command) (Result, shell.HandlerResult, error) {
	if err := command.Caller.RequireAdmin(); err != nil {
		return Result{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1, LastErrorType: "other"}), err
	}

	var marked int

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var markErr error
		marked, markErr = h.ledger.MarkOverdue(retryCtx, command.Now)

		return markErr
	}, h.retryOptions...)

	if err != nil {
		return Result{}, shell.NewErrorResult(retryMetrics), err
	}

	if marked == 0 {
		return Result{}, shell.NewIdempotentResult(retryMetrics), nil
	}

	return Result{Marked: marked}, shell.NewSuccessResult(retryMetrics), nil
}
