package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// ErrInvalidLoanPeriod is returned for a loan period that is not positive.
var ErrInvalidLoanPeriod = errors.New("loan period must be positive")

// BuildLoan creates the borrow record for a new loan that starts at borrowedAt.
// The due date is borrowedAt plus the loan period, the status is BORROWED.
func BuildLoan(
	borrowID uuid.UUID,
	userID uuid.UUID,
	bookID uuid.UUID,
	borrowedAt time.Time,
	loanPeriod time.Duration,
) (lending.Borrow, error) {
	if loanPeriod <= 0 {
		return lending.Borrow{}, fmt.Errorf("%w: %s", ErrInvalidLoanPeriod, loanPeriod)
	}

	return lending.Borrow{
		ID:         borrowID,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(loanPeriod),
		Status:     lending.StatusBorrowed,
	}, nil
}
