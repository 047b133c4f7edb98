package shell

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// LoanReader is the read side the listing queries need from a storage engine.
type LoanReader interface {
	QueryBorrows(ctx context.Context, filter lending.BorrowFilter) ([]lending.Borrow, error)
	BooksByIDs(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]lending.BookSummary, error)
	UsersByIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]lending.UserSummary, error)
}

// ListLoans queries the borrows matching the filter and joins them with their book and user summaries.
// The summaries are resolved with one lookup each, not once per borrow.
func ListLoans(
	ctx context.Context,
	reader LoanReader,
	filter lending.BorrowFilter,
	now time.Time,
) ([]core.LoanView, error) {
	borrows, err := reader.QueryBorrows(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(borrows) == 0 {
		return []core.LoanView{}, nil
	}

	bookIDs, userIDs := core.ReferencedIDs(borrows)

	books, err := reader.BooksByIDs(ctx, bookIDs)
	if err != nil {
		return nil, err
	}

	users, err := reader.UsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	return core.ProjectLoanViews(borrows, books, users, now), nil
}
