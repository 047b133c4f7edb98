package loanhistory

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
)

// LoanHistory is the query result with all loans of one user.
type LoanHistory struct {
	UserID uuid.UUID       `json:"userId"`
	Loans  []core.LoanView `json:"loans"`
}

// Count returns the number of loans.
func (r LoanHistory) Count() int {
	return len(r.Loans)
}

// Returned counts the loans that are already settled.
func (r LoanHistory) Returned() int {
	returned := 0
	for _, loan := range r.Loans {
		if loan.ReturnDate != nil {
			returned++
		}
	}

	return returned
}
