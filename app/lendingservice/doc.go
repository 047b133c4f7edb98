// Package lendingservice is the entry point of the lending subsystem.
//
// It wires the feature slices from app/features to one storage engine, wraps every handler
// with the observable wrappers, and exposes the operations with the caller identity taken
// from the context (lending.WithCaller). A context without a caller is refused with
// lending.ErrForbidden.
//
//	service, err := lendingservice.New(store,
//		lendingservice.WithLoanPeriod(cfg.LoanPeriod),
//		lendingservice.WithLogger(logger),
//	)
//
//	ctx = lending.WithCaller(ctx, caller)
//	loan, err := service.Borrow(ctx, bookID)
package lendingservice
