package lending

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CatalogStore owns Book rows. Apart from LendCopy and SettleBorrow, nothing may move AvailableCopies.
type CatalogStore interface {
	GetBook(ctx context.Context, bookID uuid.UUID) (Book, error)
	// SaveBook inserts a new book with all copies available or updates the catalog fields of an existing one.
	SaveBook(ctx context.Context, book Book) (Book, error)
	// DeleteBook removes the book. Borrow records keep referencing it.
	DeleteBook(ctx context.Context, bookID uuid.UUID) error
	// SearchBooks matches term case-insensitively against title and author. An empty term lists everything.
	SearchBooks(ctx context.Context, term string) ([]Book, error)
	BooksByIDs(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]BookSummary, error)
}

// LoanLedger owns Borrow rows and the paired counter updates on Book rows.
type LoanLedger interface {
	// GetBorrow loads a single borrow record or returns ErrBorrowNotFound.
	GetBorrow(ctx context.Context, borrowID uuid.UUID) (Borrow, error)

	// LendCopy atomically takes one available copy of borrow.BookID and records the borrow.
	// Returns ErrBookNotFound or ErrUnavailable, in which case nothing was written.
	LendCopy(ctx context.Context, borrow Borrow) (Borrow, error)

	// SettleBorrow atomically flips an open borrow to RETURNED and gives the copy back.
	// Returns ErrBorrowNotFound or ErrAlreadyReturned, in which case nothing was written.
	SettleBorrow(ctx context.Context, borrowID uuid.UUID, returnedAt time.Time) (Borrow, error)

	// MarkOverdue transitions all BORROWED rows due before now to OVERDUE and returns the number of transitions.
	MarkOverdue(ctx context.Context, now time.Time) (int, error)

	// QueryBorrows lists the borrows matching the filter, newest BorrowDate first, ties broken by ID.
	QueryBorrows(ctx context.Context, filter BorrowFilter) ([]Borrow, error)
}

// UserDirectory resolves user summaries for listings. Unknown ids are absent from the result.
type UserDirectory interface {
	UsersByIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]UserSummary, error)
}

// Store is what a storage engine provides.
type Store interface {
	CatalogStore
	LoanLedger
	UserDirectory
}
