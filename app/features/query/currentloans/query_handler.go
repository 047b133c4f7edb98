package currentloans

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// QueryHandler lists the open loans of a user from a possibly lagging read replica.
type QueryHandler struct {
	reader shell.LoanReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(reader shell.LoanReader) QueryHandler {
	return QueryHandler{reader: reader}
}

// Handle returns lending.ErrForbidden when the caller may not act for the user.
func (h QueryHandler) Handle(ctx context.Context, query Query) (CurrentLoans, error) {
	if err := query.Caller.RequireActingFor(query.UserID); err != nil {
		return CurrentLoans{}, err
	}

	filter := lending.BuildBorrowFilter().
		ForUser(query.UserID).
		WithAnyStatusOf(lending.StatusBorrowed, lending.StatusOverdue).
		Finalize()

	loans, err := shell.ListLoans(lending.WithEventualConsistency(ctx), h.reader, filter, query.AsOf)
	if err != nil {
		return CurrentLoans{}, err
	}

	return CurrentLoans{UserID: query.UserID, Loans: loans}, nil
}
