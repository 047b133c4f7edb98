// Package memengine provides an in-process implementation of lending.Store.
//
// The engine has no conditional writes to lean on, so it serializes the contended state with
// per-key mutexes instead: one lock per book guards its copy counter, one lock per borrow guards
// its status. Locks are always taken in the order book, then borrow.
//
// It backs the unit tests of the app/ feature slices and the CLI's memory mode.
package memengine
