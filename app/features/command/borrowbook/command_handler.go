package borrowbook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// LoanLedger defines the interface needed by the CommandHandler.
type LoanLedger interface {
	LendCopy(ctx context.Context, borrow lending.Borrow) (lending.Borrow, error)
}

// CommandHandler orchestrates borrowing: Authorize -> Build -> LendCopy, with retry on concurrency conflicts.
// External wrappers handle all observability concerns.
type CommandHandler struct {
	ledger       LoanLedger
	loanPeriod   time.Duration
	newID        func() uuid.UUID
	retryOptions []shell.RetryOption
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithLoanPeriod sets the time between borrow date and due date.
func WithLoanPeriod(period time.Duration) Option {
	return func(h *CommandHandler) {
		h.loanPeriod = period
	}
}

// WithIDGenerator replaces uuid.New for the ids of new borrow records.
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(h *CommandHandler) {
		h.newID = newID
	}
}

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// NewCommandHandler creates a new CommandHandler with optional configuration.
func NewCommandHandler(ledger LoanLedger, opts ...Option) (CommandHandler, error) {
	handler := CommandHandler{
		ledger:     ledger,
		loanPeriod: lending.DefaultLoanPeriod,
		newID:      uuid.New,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	if handler.loanPeriod <= 0 {
		return CommandHandler{}, fmt.Errorf("%w: %s", core.ErrInvalidLoanPeriod, handler.loanPeriod)
	}

	return handler, nil
}

// Handle borrows one copy of the book for the caller.
// Returns lending.ErrBookNotFound, lending.ErrUnavailable or lending.ErrForbidden as business outcomes.
func (h CommandHandler) Handle(ctx context.Context, command Command) (Result, shell.HandlerResult, error) {
	if err := authorize(command.Caller); err != nil {
		return Result{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1, LastErrorType: "other"}), err
	}

	// One id for all attempts, a retried attempt never committed anything.
	borrow, err := core.BuildLoan(h.newID(), command.Caller.UserID, command.BookID, command.BorrowedAt, h.loanPeriod)
	if err != nil {
		return Result{}, shell.NewErrorResult(shell.RetryMetrics{Attempts: 1, LastErrorType: "other"}), err
	}

	var lent lending.Borrow

	retryMetrics, err := shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
		var lendErr error
		lent, lendErr = h.ledger.LendCopy(retryCtx, borrow)

		return lendErr
	}, h.retryOptions...)

	if err != nil {
		return Result{}, shell.NewErrorResult(retryMetrics), err
	}

	return Result{BorrowID: lent.ID, DueDate: lent.DueDate, Borrow: lent}, shell.NewSuccessResult(retryMetrics), nil
}

// authorize lets any identified user borrow for themselves. The system caller has no user to borrow for.
func authorize(caller lending.Caller) error {
	if caller.UserID == uuid.Nil {
		return fmt.Errorf("%w: borrowing requires an identified user", lending.ErrForbidden)
	}

	return nil
}
