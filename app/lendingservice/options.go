package lendingservice

import (
	"slices"
	"time"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

type settings struct {
	loanPeriod       time.Duration
	now              func() time.Time
	retryOptions     []shell.RetryOption
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
	contextualLogger lending.ContextualLogger
	logger           lending.Logger
}

// Option configures a Service.
type Option func(*settings)

// WithLoanPeriod sets the time between borrow date and due date of new loans.
func WithLoanPeriod(period time.Duration) Option {
	return func(s *settings) {
		s.loanPeriod = period
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithRetryOptions configures the retry of concurrency conflicts for all commands.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(s *settings) {
		s.retryOptions = opts
	}
}

// WithMetrics sets the metrics collector for all handlers.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(s *settings) {
		s.metricsCollector = collector
	}
}

// WithTracing sets the tracing collector for all handlers.
func WithTracing(collector lending.TracingCollector) Option {
	return func(s *settings) {
		s.tracingCollector = collector
	}
}

// WithContextualLogger sets the trace-correlated logger for all handlers.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(s *settings) {
		s.contextualLogger = logger
	}
}

// WithLogger sets the basic logger for all handlers and the catalog operations.
func WithLogger(logger lending.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// retryOptionsFor adds the retry metrics of commandType when a metrics collector is configured.
func (s settings) retryOptionsFor(commandType string) []shell.RetryOption {
	opts := slices.Clone(s.retryOptions)
	if s.metricsCollector != nil {
		opts = append(opts, shell.WithMetrics(s.metricsCollector, commandType))
	}

	return opts
}
