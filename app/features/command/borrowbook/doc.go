// Package borrowbook implements the Borrow Book use case.
//
// A user takes one copy of a book for the loan period. The new borrow record is built
// purely (core.BuildLoan), then the storage engine decrements the available copies and
// inserts the record as one atomic conditional update. When the last copy is taken by a
// concurrent borrow in between, the engine refuses with lending.ErrUnavailable and nothing
// is written.
package borrowbook
