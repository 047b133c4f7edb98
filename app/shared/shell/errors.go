package shell

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// IsCancellationError checks if an error is due to context cancellation.
func IsCancellationError(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTimeoutError checks if an error is due to context deadline exceeded.
func IsTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsConcurrencyConflictError checks if an error is a conflict that survived all retries.
func IsConcurrencyConflictError(err error) bool {
	return errors.Is(err, lending.ErrConcurrencyConflict)
}

// IsRejection checks if an error is one of the business outcomes a caller has to handle:
// not found, unavailable, already returned, or forbidden.
// Rejections are expected and are logged as warnings, not as failures.
func IsRejection(err error) bool {
	return errors.Is(err, lending.ErrNotFound) ||
		errors.Is(err, lending.ErrUnavailable) ||
		errors.Is(err, lending.ErrAlreadyReturned) ||
		errors.Is(err, lending.ErrForbidden)
}

// RejectionOutcome names the business outcome of a rejection for logs and metric labels.
func RejectionOutcome(err error) string {
	switch {
	case errors.Is(err, lending.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, lending.ErrUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, lending.ErrAlreadyReturned):
		return OutcomeAlreadyReturned
	case errors.Is(err, lending.ErrForbidden):
		return OutcomeForbidden
	default:
		return ""
	}
}
