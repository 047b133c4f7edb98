package overdueloans

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
)

// OverdueLoans is the query result with all loans past their due date.
type OverdueLoans struct {
	Loans []core.LoanView `json:"loans"`
}

// Count returns the number of loans.
func (r OverdueLoans) Count() int {
	return len(r.Loans)
}
