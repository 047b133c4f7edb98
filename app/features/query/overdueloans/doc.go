// Package overdueloans implements the List Overdue Loans use case for admins.
//
// It lists the open loans due before the query instant. Persisted OVERDUE rows and BORROWED rows
// the sweep did not reach yet are both included, so the answer does not depend on sweep timing.
// The lending service still runs the sweep first, so the persisted state matches the answer.
package overdueloans
