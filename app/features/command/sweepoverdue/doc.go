// Package sweepoverdue implements the Sweep Overdue Loans use case.
//
// The sweep persists the OVERDUE status for every BORROWED record whose due date has passed,
// as one conditioned bulk update. The condition is evaluated at write time, so a record returned
// concurrently is never flipped back, and running the sweep twice changes nothing the second
// time (reported as an idempotent result).
//
// Listings derive the overdue state at read time anyway, the sweep only materializes it.
// Admins may trigger it on demand, the Scheduler runs it periodically as the system caller.
package sweepoverdue
