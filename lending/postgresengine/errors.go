package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeNotFound            = "not_found"
	errorTypeUnavailable         = "unavailable"
	errorTypeAlreadyReturned     = "already_returned"
	errorTypeInvalidBook         = "invalid_book"
	errorTypeCanceled            = "canceled"
	errorTypeTimeout             = "timeout"
	errorTypeBuildQuery          = "build_query"
	errorTypeDatabase            = "database"
)

// sqlStateOf extracts the SQLSTATE from pgx and lib/pq errors.
func sqlStateOf(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}

	return "", false
}

// classifyDBError wraps driver errors that callers can act upon into lending sentinels.
// Serialization failures and deadlocks leave nothing committed, so they become ErrConcurrencyConflict
// and the command handlers retry them.
func classifyDBError(err error, wrapWith error) error {
	if err == nil {
		return nil
	}

	if code, ok := sqlStateOf(err); ok {
		switch code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.UniqueViolation:
			return errors.Join(lending.ErrConcurrencyConflict, err)
		case pgerrcode.CheckViolation:
			return errors.Join(lending.ErrInvalidBook, err)
		}
	}

	return errors.Join(wrapWith, err)
}

// errorTypeOf maps an error to a low-cardinality label for metrics and spans.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, lending.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict
	case errors.Is(err, lending.ErrNotFound):
		return errorTypeNotFound
	case errors.Is(err, lending.ErrUnavailable):
		return errorTypeUnavailable
	case errors.Is(err, lending.ErrAlreadyReturned):
		return errorTypeAlreadyReturned
	case errors.Is(err, lending.ErrInvalidBook):
		return errorTypeInvalidBook
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	case errors.Is(err, lending.ErrBuildingQueryFailed):
		return errorTypeBuildQuery
	default:
		return errorTypeDatabase
	}
}

// isBusinessOutcome reports whether err is an expected rejection rather than an infrastructure failure.
func isBusinessOutcome(err error) bool {
	return errors.Is(err, lending.ErrNotFound) ||
		errors.Is(err, lending.ErrUnavailable) ||
		errors.Is(err, lending.ErrAlreadyReturned) ||
		errors.Is(err, lending.ErrInvalidBook)
}
