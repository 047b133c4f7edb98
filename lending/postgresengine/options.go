package postgresengine

import (
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithBooksTableName sets the name of the books table.
func WithBooksTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return lending.ErrEmptyTableName
		}

		s.queries.booksTable = tableName

		return nil
	}
}

// WithBorrowsTableName sets the name of the borrows table.
func WithBorrowsTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return lending.ErrEmptyTableName
		}

		s.queries.borrowsTable = tableName

		return nil
	}
}

// WithUsersTableName sets the name of the users table.
func WithUsersTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return lending.ErrEmptyTableName
		}

		s.queries.usersTable = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: Operation outcomes with durations and affected rows (production-safe)
// Warn level: Tolerated anomalies like returning a borrow of a deleted book
// Error level: Failures that abort an operation.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations, call counts, affected rows, concurrency conflicts and database errors.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// Each store operation becomes one span.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// Log records then carry the trace and span of the operation that emitted them.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithClock replaces time.Now for the timestamps the Store sets itself (CreatedAt, UpdatedAt).
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}
