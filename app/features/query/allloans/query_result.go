package allloans

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
)

// AllLoans is the query result with every loan.
type AllLoans struct {
	Loans []core.LoanView `json:"loans"`
}

// Count returns the number of loans.
func (r AllLoans) Count() int {
	return len(r.Loans)
}

// Overdue counts the loans that are overdue at the time of the query.
func (r AllLoans) Overdue() int {
	overdue := 0
	for _, loan := range r.Loans {
		if loan.IsOverdue {
			overdue++
		}
	}

	return overdue
}
