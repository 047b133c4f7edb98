package sweepoverdue

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgSchedulerStarted = "overdue sweep scheduler started"
	logMsgSchedulerStopped = "overdue sweep scheduler stopped"
	logMsgSweepFailed      = "scheduled overdue sweep failed"
	logMsgSweepDone        = "scheduled overdue sweep done"

	logAttrInterval = "interval"
	logAttrMarked   = "marked"
	logAttrError    = "error"
)

// ErrInvalidInterval is returned for a sweep interval that is not positive.
var ErrInvalidInterval = errors.New("sweep interval must be positive")

// Scheduler runs the sweep periodically as the system caller.
// A failed sweep is logged and retried at the next tick.
type Scheduler struct {
	handler  shell.CommandHandler[Command, Result]
	interval time.Duration
	now      func() time.Time
	logger   lending.Logger
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerClock replaces time.Now for the sweep instant.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithSchedulerLogger sets the logger for tick outcomes.
func WithSchedulerLogger(logger lending.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// NewScheduler creates a Scheduler around any sweep handler, usually the observable one.
func NewScheduler(
	handler shell.CommandHandler[Command, Result],
	interval time.Duration,
	opts ...SchedulerOption,
) (*Scheduler, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	scheduler := &Scheduler{
		handler:  handler,
		interval: interval,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler, nil
}

// Run sweeps once immediately and then at every interval until ctx is done.
// It returns nil when the context was canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logInfo(logMsgSchedulerStarted, logAttrInterval, s.interval.String())

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logInfo(logMsgSchedulerStopped)
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns the number of marked loans.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	result, _, err := s.handler.Handle(ctx, BuildCommand(lending.SystemCaller(), s.now()))
	if err != nil {
		if s.logger != nil && ctx.Err() == nil {
			s.logger.Error(logMsgSweepFailed, logAttrError, err.Error())
		}

		return 0
	}

	s.logInfo(logMsgSweepDone, logAttrMarked, result.Marked)

	return result.Marked
}

func (s *Scheduler) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
