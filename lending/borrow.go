package lending

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BorrowStatus is the lifecycle state of a Borrow.
//
//	BORROWED -> OVERDUE -> RETURNED
//	BORROWED ------------> RETURNED
//
// RETURNED is terminal.
type BorrowStatus string

const (
	StatusBorrowed BorrowStatus = "BORROWED"
	StatusOverdue  BorrowStatus = "OVERDUE"
	StatusReturned BorrowStatus = "RETURNED"
)

// OpenStatuses are the statuses of loans that still hold a copy.
var OpenStatuses = []BorrowStatus{StatusBorrowed, StatusOverdue}

// ParseBorrowStatus converts a persisted token into a BorrowStatus.
func ParseBorrowStatus(token string) (BorrowStatus, error) {
	switch s := BorrowStatus(token); s {
	case StatusBorrowed, StatusOverdue, StatusReturned:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, token)
	}
}

// String implements fmt.Stringer.
func (s BorrowStatus) String() string {
	return string(s)
}

// IsOpen reports whether a loan in this status still holds a copy.
func (s BorrowStatus) IsOpen() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
func (s BorrowStatus) CanTransitionTo(next BorrowStatus) bool {
	switch s {
	case StatusBorrowed:
		return next == StatusOverdue || next == StatusReturned
	case StatusOverdue:
		return next == StatusReturned
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BorrowStatus) MarshalText() ([]byte, error) {
	if _, err := ParseBorrowStatus(string(s)); err != nil {
		return nil, err
	}

	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *BorrowStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBorrowStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Borrow is one physical loan event of a single copy of a Book.
type Borrow struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"userId"`
	BookID     uuid.UUID    `json:"bookId"`
	BorrowDate time.Time    `json:"borrowDate"`
	DueDate    time.Time    `json:"dueDate"`
	ReturnDate *time.Time   `json:"returnDate,omitempty"`
	Status     BorrowStatus `json:"status"`
}

// IsOverdueAt derives the overdue state independently of whether a sweep has persisted it.
func (b Borrow) IsOverdueAt(now time.Time) bool {
	return b.Status != StatusReturned && b.DueDate.Before(now)
}

// EffectiveStatusAt is the status a reader should see at the given instant:
// a BORROWED row past its due date reads as OVERDUE even before the sweep has run.
func (b Borrow) EffectiveStatusAt(now time.Time) BorrowStatus {
	if b.Status == StatusBorrowed && b.IsOverdueAt(now) {
		return StatusOverdue
	}

	return b.Status
}

// IsOwnedBy reports whether the borrow belongs to the given user.
func (b Borrow) IsOwnedBy(userID uuid.UUID) bool {
	return b.UserID == userID
}
