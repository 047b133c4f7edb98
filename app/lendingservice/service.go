package lendingservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/app/features/command/borrowbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/returnbook"
	"github.com/AntonStoeckl/library-lending-go/app/features/command/sweepoverdue"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/allloans"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/currentloans"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/loanhistory"
	"github.com/AntonStoeckl/library-lending-go/app/features/query/overdueloans"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgBookSaved   = "catalog book saved"
	logMsgBookDeleted = "catalog book deleted"

	logAttrBookID = "book_id"
)

// ErrNilStore is returned when New is called without a storage engine.
var ErrNilStore = errors.New("store must not be nil")

// Service exposes the lending operations. It is safe for concurrent use.
type Service struct {
	store  lending.Store
	now    func() time.Time
	logger lending.Logger

	borrow  shell.CommandHandler[borrowbook.Command, borrowbook.Result]
	ret     shell.CommandHandler[returnbook.Command, returnbook.Result]
	sweep   shell.CommandHandler[sweepoverdue.Command, sweepoverdue.Result]
	current shell.QueryHandler[currentloans.Query, currentloans.CurrentLoans]
	history shell.QueryHandler[loanhistory.Query, loanhistory.LoanHistory]
	all     shell.QueryHandler[allloans.Query, allloans.AllLoans]
	overdue shell.QueryHandler[overdueloans.Query, overdueloans.OverdueLoans]
}

// New wires all feature slices to the store.
func New(store lending.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := settings{
		loanPeriod: lending.DefaultLoanPeriod,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(&s)
	}

	borrowHandler, err := borrowbook.NewCommandHandler(store,
		borrowbook.WithLoanPeriod(s.loanPeriod),
		borrowbook.WithRetryOptions(s.retryOptionsFor(borrowbook.Command{}.CommandType())...),
	)
	if err != nil {
		return nil, err
	}

	service := &Service{store: store, now: s.now, logger: s.logger}

	if service.borrow, err = wrapCommand[borrowbook.Command, borrowbook.Result](borrowHandler, s); err != nil {
		return nil, err
	}

	returnHandler := returnbook.NewCommandHandler(store,
		returnbook.WithRetryOptions(s.retryOptionsFor(returnbook.Command{}.CommandType())...),
	)
	if service.ret, err = wrapCommand[returnbook.Command, returnbook.Result](returnHandler, s); err != nil {
		return nil, err
	}

	sweepHandler := sweepoverdue.NewCommandHandler(store,
		sweepoverdue.WithRetryOptions(s.retryOptionsFor(sweepoverdue.Command{}.CommandType())...),
	)
	if service.sweep, err = wrapCommand[sweepoverdue.Command, sweepoverdue.Result](sweepHandler, s); err != nil {
		return nil, err
	}

	if service.current, err = wrapQuery[currentloans.Query, currentloans.CurrentLoans](
		currentloans.NewQueryHandler(store), s,
	); err != nil {
		return nil, err
	}

	if service.history, err = wrapQuery[loanhistory.Query, loanhistory.LoanHistory](
		loanhistory.NewQueryHandler(store), s,
	); err != nil {
		return nil, err
	}

	if service.all, err = wrapQuery[allloans.Query, allloans.AllLoans](
		allloans.NewQueryHandler(store), s,
	); err != nil {
		return nil, err
	}

	if service.overdue, err = wrapQuery[overdueloans.Query, overdueloans.OverdueLoans](
		overdueloans.NewQueryHandler(store), s,
	); err != nil {
		return nil, err
	}

	return service, nil
}

// Borrow lends one copy of the book to the caller.
func (s *Service) Borrow(ctx context.Context, bookID uuid.UUID) (borrowbook.Result, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return borrowbook.Result{}, err
	}

	result, _, err := s.borrow.Handle(ctx, borrowbook.BuildCommand(caller, bookID, s.now()))

	return result, err
}

// Return gives the copy of a borrow record back. The caller must own the record or be an admin.
func (s *Service) Return(ctx context.Context, borrowID uuid.UUID) (returnbook.Result, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return returnbook.Result{}, err
	}

	result, _, err := s.ret.Handle(ctx, returnbook.BuildCommand(caller, borrowID, s.now()))

	return result, err
}

// ListMyCurrent lists the open loans of the user.
func (s *Service) ListMyCurrent(ctx context.Context, userID uuid.UUID) (currentloans.CurrentLoans, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return currentloans.CurrentLoans{}, err
	}

	return s.current.Handle(ctx, currentloans.BuildQuery(caller, userID, s.now()))
}

// ListMyHistory lists every loan the user ever had.
func (s *Service) ListMyHistory(ctx context.Context, userID uuid.UUID) (loanhistory.LoanHistory, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return loanhistory.LoanHistory{}, err
	}

	return s.history.Handle(ctx, loanhistory.BuildQuery(caller, userID, s.now()))
}

// ListAll lists every loan. Admin only.
func (s *Service) ListAll(ctx context.Context) (allloans.AllLoans, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return allloans.AllLoans{}, err
	}

	return s.all.Handle(ctx, allloans.BuildQuery(caller, s.now()))
}

// SweepOverdue persists the OVERDUE status of every loan past its due date and returns how many changed.
// Admin only.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return 0, err
	}

	result, _, err := s.sweep.Handle(ctx, sweepoverdue.BuildCommand(caller, s.now()))

	return result.Marked, err
}

// ListOverdue runs the sweep and then lists all overdue loans. Admin only.
func (s *Service) ListOverdue(ctx context.Context) (overdueloans.OverdueLoans, error) {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return overdueloans.OverdueLoans{}, err
	}

	now := s.now()

	if _, _, err = s.sweep.Handle(ctx, sweepoverdue.BuildCommand(caller, now)); err != nil {
		return overdueloans.OverdueLoans{}, err
	}

	return s.overdue.Handle(ctx, overdueloans.BuildQuery(caller, now))
}

// NewSweepScheduler creates a Scheduler that runs the observable sweep handler of this service.
func (s *Service) NewSweepScheduler(interval time.Duration) (*sweepoverdue.Scheduler, error) {
	opts := []sweepoverdue.SchedulerOption{sweepoverdue.WithSchedulerClock(s.now)}
	if s.logger != nil {
		opts = append(opts, sweepoverdue.WithSchedulerLogger(s.logger))
	}

	return sweepoverdue.NewScheduler(s.sweep, interval, opts...)
}

/***** Catalog *****/

// AddBook inserts a book or updates its catalog fields. Admin only.
func (s *Service) AddBook(ctx context.Context, book lending.Book) (lending.Book, error) {
	if err := requireAdmin(ctx); err != nil {
		return lending.Book{}, err
	}

	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}

	saved, err := s.store.SaveBook(ctx, book)
	if err != nil {
		return lending.Book{}, err
	}

	s.logInfo(logMsgBookSaved, logAttrBookID, saved.ID.String())

	return saved, nil
}

// RemoveBook deletes a book from the catalog. Borrow records keep showing it as deleted. Admin only.
func (s *Service) RemoveBook(ctx context.Context, bookID uuid.UUID) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		return err
	}

	s.logInfo(logMsgBookDeleted, logAttrBookID, bookID.String())

	return nil
}

// SearchBooks matches the term against title and author. Any identified caller may search.
func (s *Service) SearchBooks(ctx context.Context, term string) ([]lending.Book, error) {
	if _, err := lending.CallerFrom(ctx); err != nil {
		return nil, err
	}

	return s.store.SearchBooks(lending.WithEventualConsistency(ctx), term)
}

func requireAdmin(ctx context.Context) error {
	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return err
	}

	return caller.RequireAdmin()
}

func (s *Service) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
