package currentloans

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
)

// CurrentLoans is the query result with the open loans of one user.
type CurrentLoans struct {
	UserID uuid.UUID       `json:"userId"`
	Loans  []core.LoanView `json:"loans"`
}

// Count returns the number of loans.
func (r CurrentLoans) Count() int {
	return len(r.Loans)
}
