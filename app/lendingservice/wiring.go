package lendingservice

import (
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/observable"
)

func wrapCommand[C shell.Command, R any](
	handler shell.CommandHandler[C, R],
	s settings,
) (shell.CommandHandler[C, R], error) {
	return observable.NewCommandWrapper[C, R](
		handler,
		observable.WithCommandMetrics[C, R](s.metricsCollector),
		observable.WithCommandTracing[C, R](s.tracingCollector),
		observable.WithCommandContextualLogging[C, R](s.contextualLogger),
		observable.WithCommandLogging[C, R](s.logger),
	)
}

func wrapQuery[Q shell.Query, R any](
	handler shell.QueryHandler[Q, R],
	s settings,
) (shell.QueryHandler[Q, R], error) {
	return observable.NewQueryWrapper[Q, R](
		handler,
		observable.WithQueryMetrics[Q, R](s.metricsCollector),
		observable.WithQueryTracing[Q, R](s.tracingCollector),
		observable.WithQueryContextualLogging[Q, R](s.contextualLogger),
		observable.WithQueryLogging[Q, R](s.logger),
	)
}
