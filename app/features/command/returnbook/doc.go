// Package returnbook implements the Return Book use case.
//
// The owner of a borrow record, or an admin, gives the copy back. The storage engine flips
// the record to RETURNED and increments the book's available copies in one atomic conditional
// update, so concurrent returns of the same record restore the counter at most once. The
// loser sees lending.ErrAlreadyReturned.
//
// Ownership is checked against a strongly consistent read of the record before settling.
// The owner never changes, so that read is not part of the contended state.
package returnbook
