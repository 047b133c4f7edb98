// Package observable provides wrappers that instrument command and query handlers
// with metrics, tracing and logging while the feature slices stay pure business logic.
//
// The wrappers are applied at wiring time, not hidden inside factory functions:
//
//	// 1. Create the business logic handler
//	coreHandler, err := borrowbook.NewCommandHandler(store)
//
//	// 2. Wrap it with observability
//	handler, err := observable.NewCommandWrapper[borrowbook.Command, borrowbook.Result](
//		coreHandler,
//		observable.WithCommandMetrics[borrowbook.Command, borrowbook.Result](metricsCollector),
//		observable.WithCommandTracing[borrowbook.Command, borrowbook.Result](tracingCollector),
//		observable.WithCommandContextualLogging[borrowbook.Command, borrowbook.Result](contextualLogger),
//	)
//
//	// 3. Use the wrapped handler
//	result, _, err := handler.Handle(ctx, command)
//
// Business rejections (not found, unavailable, already returned, forbidden) are recorded
// with status "rejected" and logged as warnings, technical failures with status "error".
//
// For unit tests of business logic, use the handlers without any wrapper.
package observable
