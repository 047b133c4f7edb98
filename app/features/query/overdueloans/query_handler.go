package overdueloans

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// QueryHandler lists the overdue loans.
type QueryHandler struct {
	reader shell.LoanReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(reader shell.LoanReader) QueryHandler {
	return QueryHandler{reader: reader}
}

// Handle returns lending.ErrForbidden unless the caller is an admin.
func (h QueryHandler) Handle(ctx context.Context, query Query) (OverdueLoans, error) {
	if err := query.Caller.RequireAdmin(); err != nil {
		return OverdueLoans{}, err
	}

	filter := lending.BuildBorrowFilter().
		WithAnyStatusOf(lending.StatusBorrowed, lending.StatusOverdue).
		WithDueDateBefore(query.AsOf).
		Finalize()

	loans, err := shell.ListLoans(lending.WithEventualConsistency(ctx), h.reader, filter, query.AsOf)
	if err != nil {
		return OverdueLoans{}, err
	}

	return OverdueLoans{Loans: loans}, nil
}
