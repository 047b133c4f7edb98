package returnbook

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// LoanLedger defines the interface needed by the CommandHandler.
type LoanLedger interface {
	GetBorrow(ctx context.Context, borrowID uuid.UUID) (lending.Borrow, error)
	SettleBorrow(ctx context.Context, borrowID uuid.UUID, returnedAt time.Time) (lending.Borrow, error)
}

// CommandHandler orchestrates returning: Load -> Authorize -> SettleBorrow, with retry on concurrency conflicts.
// External wrappers handle all observability concerns.
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

// Handle settles the borrow record and gives the copy back.
// Returns lending.ErrBorrowNotFound, lending.ErrForbidden or lending.ErrAlreadyReturned as business outcomes.
func (h CommandHandler) Handle(ctx context.Context, command Command) (Result, shell.HandlerResult, error) {
	var settled lending.Borrow

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var execErr error
		settled, execErr = h.executeCommand(retryCtx, command)

		return execErr
	}, h.retryOptions...)

	if err != nil {
		return Result{}, shell.NewErrorResult(retryMetrics), err
	}

	return Result{
		BorrowID:   settled.ID,
		ReturnDate: *settled.ReturnDate,
		Borrow:     settled,
	}, shell.NewSuccessResult(retryMetrics), nil
}

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (lending.Borrow, error) {
	ctx = lending.WithStrongConsistency(ctx)

	borrow, err := h.ledger.GetBorrow(ctx, command.BorrowID)
	if err != nil {
		return lending.Borrow{}, err
	}

	if err = command.Caller.RequireActingFor(borrow.UserID); err != nil {
		return lending.Borrow{}, err
	}

	if borrow.Status == lending.StatusReturned {
		return lending.Borrow{}, lending.ErrAlreadyReturned
	}

	return h.ledger.SettleBorrow(ctx, command.BorrowID, command.ReturnedAt)
}
