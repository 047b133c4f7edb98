package loanhistory

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	queryType = "ListLoanHistory"
)

// Query represents the intent to list all loans a user ever had.
type Query struct {
	Caller lending.Caller
	UserID uuid.UUID
	AsOf   time.Time
}

// BuildQuery creates a new Query with the provided parameters.
func BuildQuery(caller lending.Caller, userID uuid.UUID, asOf time.Time) Query {
	return Query{
		Caller: caller,
		UserID: userID,
		AsOf:   asOf,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
