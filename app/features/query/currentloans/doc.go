// Package currentloans implements the List My Current Loans use case.
//
// It lists the open loans (BORROWED or OVERDUE) of one user, newest first, joined with the
// book and user summaries. A loan past its due date reads as OVERDUE whether or not the sweep
// already persisted that. Users may only list their own loans, admins may list anybody's.
package currentloans
