package currentloans

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	queryType = "ListCurrentLoans"
)

// Query represents the intent to list the open loans of a user.
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
