package allloans

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

// QueryHandler lists every loan.
type QueryHandler struct {
	reader shell.LoanReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(reader shell.LoanReader) QueryHandler {
	return QueryHandler{reader: reader}
}

// Handle returns lending.ErrForbidden unless the caller is an admin.
func (h QueryHandler) Handle(ctx context.Context, query Query) (AllLoans, error) {
	if err := query.Caller.RequireAdmin(); err != nil {
		return AllLoans{}, err
	}

	filter := lending.BuildBorrowFilter().MatchingAllBorrows()

	loans, err := shell.ListLoans(lending.WithEventualConsistency(ctx), h.reader, filter, query.AsOf)
	if err != nil {
		return AllLoans{}, err
	}

	return AllLoans{Loans: loans}, nil
}
