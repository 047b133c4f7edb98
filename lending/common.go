package lending

import (
	"errors"
	"fmt"
	"time"
)

// DefaultLoanPeriod is used whenever no loan period is configured.
const DefaultLoanPeriod = 7 * 24 * time.Hour

// Business errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrBookNotFound    = fmt.Errorf("book %w", ErrNotFound)
	ErrBorrowNotFound  = fmt.Errorf("borrow record %w", ErrNotFound)
	ErrUnavailable     = errors.New("book is not available")
	ErrAlreadyReturned = errors.New("book already returned")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidBook     = errors.New("invalid book")
	ErrInvalidStatus   = errors.New("invalid borrow status")
)

// Infrastructure errors.
var (
	ErrConcurrencyConflict         = errors.New("concurrency conflict, transaction was rolled back")
	ErrNilDatabaseConnection       = errors.New("database connection must not be nil")
	ErrEmptyTableName              = errors.New("empty table name supplied")
	ErrBuildingQueryFailed         = errors.New("building query failed")
	ErrQueryingFailed              = errors.New("querying failed")
	ErrScanningDBRowFailed         = errors.New("scanning db row failed")
	ErrExecutingStatementFailed    = errors.New("executing statement failed")
	ErrGettingRowsAffectedFailed   = errors.New("getting rows affected failed")
	ErrBeginningTransactionFailed  = errors.New("beginning transaction failed")
	ErrCommittingTransactionFailed = errors.New("committing transaction failed")
)

// ToStoredTime normalizes a timestamp to UTC with microsecond precision,
// which is what a Postgres timestamptz column keeps, so persisted dates round-trip exactly.
func ToStoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
