// Package lending provides the core types of the library lending subsystem:
// books with their copy counters, borrow records with their status lifecycle,
// the caller identity handed over by the authorization collaborator, and the
// errors shared by all storage engines.
//
// Storage engines (postgresengine, memengine)
// implement the atomic conditional updates, the app/ feature slices orchestrate them.
//
// Key types:
//   - Book: catalog record holding TotalCopies and AvailableCopies
//   - Borrow: one physical loan event, BORROWED -> OVERDUE -> RETURNED
//   - BorrowFilter: criteria for listing borrows
//   - Caller: the opaque identity (user id + role) of whoever triggers an operation
//
// Common usage pattern:
//
//	filter := lending.BuildBorrowFilter().
//		ForUser(userID).
//		WithAnyStatusOf(lending.StatusBorrowed, lending.StatusOverdue).
//		Finalize()
//
//	borrows, err := store.QueryBorrows(lending.WithEventualConsistency(ctx), filter)
package lending
