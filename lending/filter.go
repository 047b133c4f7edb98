package lending

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

/***** BorrowFilter *****/

// BorrowFilter selects Borrow rows from the Loan Ledger.
// The zero value matches every row.
type BorrowFilter struct {
	userID    uuid.UUID
	bookID    uuid.UUID
	statuses  []BorrowStatus
	dueBefore time.Time
}

// UserID returns the user restriction or uuid.Nil if the filter matches any user.
func (f BorrowFilter) UserID() uuid.UUID {
	return f.userID
}

// BookID returns the book restriction or uuid.Nil if the filter matches any book.
func (f BorrowFilter) BookID() uuid.UUID {
	return f.bookID
}

// Statuses returns the sorted, deduplicated status restriction or nil for any status.
func (f BorrowFilter) Statuses() []BorrowStatus {
	return f.statuses
}

// DueBefore returns the exclusive upper bound for the due date or the zero time if unrestricted.
func (f BorrowFilter) DueBefore() time.Time {
	return f.dueBefore
}

// Matches evaluates the filter against a single row. Engines without a query language use it directly.
func (f BorrowFilter) Matches(b Borrow) bool {
	if f.userID != uuid.Nil && b.UserID != f.userID {
		return false
	}

	if f.bookID != uuid.Nil && b.BookID != f.bookID {
		return false
	}

	if len(f.statuses) > 0 && !slices.Contains(f.statuses, b.Status) {
		return false
	}

	if !f.dueBefore.IsZero() && !b.DueDate.Before(f.dueBefore) {
		return false
	}

	return true
}

/***** BorrowFilterBuilder *****/

// BorrowFilterBuilder builds a BorrowFilter to be used by the storage engines to build queries in their own
// query language. All restrictions are combined with AND, statuses among themselves with OR:
//
//   - empty filter (all borrows)
//   - (user)
//   - (user AND (status OR status...))
//   - (book AND status)
//   - ((status OR status...) AND dueBefore)
type BorrowFilterBuilder interface {
	// ForUser restricts the filter to borrows of one user. uuid.Nil is ignored.
	ForUser(userID uuid.UUID) BorrowFilterBuilder

	// ForBook restricts the filter to borrows of one book. uuid.Nil is ignored.
	ForBook(bookID uuid.UUID) BorrowFilterBuilder

	// WithAnyStatusOf restricts the filter to borrows in ANY of the given statuses.
	//
	// It sanitizes the input:
	//	- removing empty statuses ("")
	//	- sorting the statuses
	//	- removing duplicate statuses
	WithAnyStatusOf(status BorrowStatus, statuses ...BorrowStatus) BorrowFilterBuilder

	// WithDueDateBefore restricts the filter to borrows due strictly before the given instant.
	WithDueDateBefore(instant time.Time) BorrowFilterBuilder

	// Finalize returns the BorrowFilter.
	Finalize() BorrowFilter

	// MatchingAllBorrows directly creates an empty BorrowFilter.
	MatchingAllBorrows() BorrowFilter
}

// borrowFilterBuilder implements BorrowFilterBuilder
type borrowFilterBuilder struct {
	filter BorrowFilter
}

// BuildBorrowFilter creates a BorrowFilterBuilder which must eventually be finalized with Finalize() or MatchingAllBorrows().
func BuildBorrowFilter() BorrowFilterBuilder {
	return borrowFilterBuilder{}
}

func (fb borrowFilterBuilder) ForUser(userID uuid.UUID) BorrowFilterBuilder {
	fb.filter.userID = userID

	return fb
}

func (fb borrowFilterBuilder) ForBook(bookID uuid.UUID) BorrowFilterBuilder {
	fb.filter.bookID = bookID

	return fb
}

func (fb borrowFilterBuilder) WithAnyStatusOf(status BorrowStatus, statuses ...BorrowStatus) BorrowFilterBuilder {
	all := append([]BorrowStatus{status}, statuses...)
	all = append(all, fb.filter.statuses...)
	all = slices.DeleteFunc(all, func(s BorrowStatus) bool { return s == "" })
	slices.Sort(all)
	all = slices.Compact(all)
	fb.filter.statuses = slices.Clip(all)

	return fb
}

func (fb borrowFilterBuilder) WithDueDateBefore(instant time.Time) BorrowFilterBuilder {
	fb.filter.dueBefore = instant

	return fb
}

func (fb borrowFilterBuilder) Finalize() BorrowFilter {
	if len(fb.filter.statuses) == 0 {
		fb.filter.statuses = nil
	}

	return fb.filter
}

func (fb borrowFilterBuilder) MatchingAllBorrows() BorrowFilter {
	return BorrowFilter{}
}
