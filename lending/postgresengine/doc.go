// Package postgresengine provides a PostgreSQL implementation of lending.Store.
//
// This package supports multiple PostgreSQL database adapters:
//   - pgx/v5 with connection pooling (NewStoreFromPGXPool)
//   - database/sql with lib/pq (NewStoreFromSQLDB)
//   - sqlx for enhanced SQL operations (NewStoreFromSQLX)
//
// Each constructor has a ...WithReplica variant. Reads under lending.WithEventualConsistency
// then go to the replica, everything else stays on the primary.
//
// The engine keeps Book.AvailableCopies and Borrow.Status consistent with conditional writes:
//
//	UPDATE books   SET available_copies = available_copies - 1 WHERE id = ? AND available_copies > 0
//	UPDATE borrows SET status = 'RETURNED', return_date = ?   WHERE id = ? AND status <> 'RETURNED'
//	UPDATE borrows SET status = 'OVERDUE'                      WHERE status = 'BORROWED' AND due_date < ?
//
// A statement that matches no row is the signal for ErrUnavailable or ErrAlreadyReturned. Serialization
// failures and deadlocks surface as lending.ErrConcurrencyConflict and nothing is committed.
//
// SQL is built with goqu. Optional observability: WithLogger, WithContextualLogger, WithMetrics, WithTracing.
package postgresengine
