package allloans

import (
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	queryType = "ListAllLoans"
)

// Query represents the intent to list all loans.
type Query struct {
	Caller lending.Caller
	AsOf   time.Time
}

// BuildQuery creates a new Query with the provided parameters.
func BuildQuery(caller lending.Caller, asOf time.Time) Query {
	return Query{
		Caller: caller,
		AsOf:   asOf,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
