package lendingservice_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/lendingservice"
	"github.com/AntonStoeckl/library-lending-go/app/shared/shell"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
	"github.com/AntonStoeckl/library-lending-go/testutil/spies"
)

var startOfTest = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by the service and the store.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fixture struct {
	store   *memengine.Store
	service *lendingservice.Service
	clock   *testClock
	admin   context.Context
	metrics *spies.MetricsCollectorSpy
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	clock := &testClock{now: startOfTest}
	store := memengine.NewStore(memengine.WithClock(clock.Now))
	metrics := spies.NewMetricsCollectorSpy(true)

	service, err := lendingservice.New(store,
		lendingservice.WithClock(clock.Now),
		lendingservice.WithMetrics(metrics),
	)
	require.NoError(t, err)

	admin := lending.Caller{UserID: uuid.New(), Role: lending.RoleAdmin}

	return fixture{
		store:   store,
		service: service,
		clock:   clock,
		admin:   lending.WithCaller(context.Background(), admin),
		metrics: metrics,
	}
}

func (f fixture) givenBook(t *testing.T, copies int) lending.Book {
	t.Helper()

	book, err := f.service.AddBook(f.admin, lending.Book{
		Title:       "The Word for World Is Forest",
		Author:      "Ursula K. Le Guin",
		Year:        1972,
		TotalCopies: copies,
	})
	require.NoError(t, err)

	return book
}

func (f fixture) givenUser(role lending.Role) context.Context {
	user := lending.UserSummary{ID: uuid.New(), Name: "Reader", Email: "reader@example.org", Role: role}
	f.store.PutUser(user)

	return lending.WithCaller(context.Background(), lending.Caller{UserID: user.ID, Role: role})
}

func (f fixture) available(t *testing.T, bookID uuid.UUID) int {
	t.Helper()

	book, err := f.store.GetBook(context.Background(), bookID)
	require.NoError(t, err)

	return book.AvailableCopies
}

func Test_Service_BorrowAndReturnLifecycle(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 2)
	first, second, third := f.givenUser(lending.RoleUser), f.givenUser(lending.RoleUser), f.givenUser(lending.RoleUser)

	// act + assert
	loan, err := f.service.Borrow(first, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, book.ID))
	assert.Equal(t, lending.StatusBorrowed, loan.Borrow.Status)
	assert.Equal(t, loan.Borrow.BorrowDate.Add(7*24*time.Hour), loan.DueDate)

	_, err = f.service.Borrow(second, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, book.ID))

	_, err = f.service.Borrow(third, book.ID)
	assert.ErrorIs(t, err, lending.ErrUnavailable)
	assert.Equal(t, 0, f.available(t, book.ID))

	returned, err := f.service.Return(first, loan.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, book.ID))
	assert.Equal(t, lending.StatusReturned, returned.Borrow.Status)

	_, err = f.service.Return(first, loan.BorrowID)
	assert.ErrorIs(t, err, lending.ErrAlreadyReturned)
	assert.Equal(t, 1, f.available(t, book.ID))

	assert.True(t, f.metrics.HasCounterRecordWithLabels(
		shell.CommandHandlerRejectedMetric,
		shell.BuildCommandLabels("BorrowBook", shell.StatusRejected),
	))
}

func Test_Service_SweepThenReturnOverdueLoan(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	user := f.givenUser(lending.RoleUser)
	loan, err := f.service.Borrow(user, book.ID)
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	// act
	marked, err := f.service.SweepOverdue(f.admin)
	require.NoError(t, err)
	markedAgain, err := f.service.SweepOverdue(f.admin)
	require.NoError(t, err)

	// assert
	assert.Equal(t, 1, marked)
	assert.Equal(t, 0, markedAgain)

	stored, err := f.store.GetBorrow(context.Background(), loan.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusOverdue, stored.Status)

	_, err = f.service.Return(user, loan.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, book.ID))
}

func Test_Service_TwoConcurrentBorrowsOfTheLastCopy(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	callers := []context.Context{f.givenUser(lending.RoleUser), f.givenUser(lending.RoleUser)}

	var wg sync.WaitGroup
	var successes, unavailable atomic.Int32

	// act
	for _, ctx := range callers {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()

			_, err := f.service.Borrow(ctx, book.ID)
			if err == nil {
				successes.Add(1)
				return
			}

			if errors.Is(err, lending.ErrUnavailable) {
				unavailable.Add(1)
			}
		}(ctx)
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(1), unavailable.Load())
	assert.Equal(t, 0, f.available(t, book.ID))
}

func Test_Service_ListingsDeriveOverdueWithoutSweep(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	user := f.givenUser(lending.RoleUser)
	caller, err := lending.CallerFrom(user)
	require.NoError(t, err)

	loan, err := f.service.Borrow(user, book.ID)
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Minute)

	// act
	current, err := f.service.ListMyCurrent(user, caller.UserID)
	require.NoError(t, err)
	all, err := f.service.ListAll(f.admin)
	require.NoError(t, err)

	// assert
	require.Equal(t, 1, current.Count())
	assert.True(t, current.Loans[0].IsOverdue)
	assert.Equal(t, lending.StatusOverdue, current.Loans[0].EffectiveStatus)

	require.Equal(t, 1, all.Count())
	assert.True(t, all.Loans[0].IsOverdue)

	stored, err := f.store.GetBorrow(context.Background(), loan.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusBorrowed, stored.Status)
}

func Test_Service_ListOverdue_RunsTheSweepFirst(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 2)
	user := f.givenUser(lending.RoleUser)
	late, err := f.service.Borrow(user, book.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * 24 * time.Hour)
	_, err = f.service.Borrow(user, book.ID)
	require.NoError(t, err)

	// act
	overdue, err := f.service.ListOverdue(f.admin)

	// assert
	require.NoError(t, err)
	require.Equal(t, 1, overdue.Count())
	assert.Equal(t, late.BorrowID, overdue.Loans[0].BorrowID)

	stored, err := f.store.GetBorrow(context.Background(), late.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusOverdue, stored.Status)
}

func Test_Service_Authorization(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	owner := f.givenUser(lending.RoleUser)
	stranger := f.givenUser(lending.RoleUser)
	ownerCaller, err := lending.CallerFrom(owner)
	require.NoError(t, err)
	loan, err := f.service.Borrow(owner, book.ID)
	require.NoError(t, err)

	// act + assert
	_, err = f.service.Return(stranger, loan.BorrowID)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.ListMyHistory(stranger, ownerCaller.UserID)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.ListAll(stranger)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.SweepOverdue(stranger)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.ListOverdue(stranger)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.AddBook(stranger, lending.Book{Title: "x", Author: "y", TotalCopies: 1})
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.Borrow(context.Background(), book.ID)
	assert.ErrorIs(t, err, lending.ErrForbidden)

	_, err = f.service.Return(f.admin, loan.BorrowID)
	assert.NoError(t, err)
}

func Test_Service_CounterInvariantsHoldUnderConcurrentLoad(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 3)

	var wg sync.WaitGroup

	// act
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			user := f.givenUser(lending.RoleUser)
			loan, err := f.service.Borrow(user, book.ID)
			if err != nil {
				return
			}

			_, _ = f.service.Return(user, loan.BorrowID)
		}()
	}
	wg.Wait()

	// assert
	stored, err := f.store.GetBook(context.Background(), book.ID)
	require.NoError(t, err)

	open, err := f.store.QueryBorrows(context.Background(), lending.BuildBorrowFilter().
		ForBook(book.ID).
		WithAnyStatusOf(lending.StatusBorrowed, lending.StatusOverdue).
		Finalize())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, stored.AvailableCopies, 0)
	assert.LessOrEqual(t, stored.AvailableCopies, stored.TotalCopies)
	assert.Equal(t, stored.TotalCopies-stored.AvailableCopies, len(open))
	assert.Equal(t, 3, stored.AvailableCopies)
}

func Test_Service_SearchBooks_And_RemoveBook(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	user := f.givenUser(lending.RoleUser)
	caller, err := lending.CallerFrom(user)
	require.NoError(t, err)
	_, err = f.service.Borrow(user, book.ID)
	require.NoError(t, err)

	// act
	found, err := f.service.SearchBooks(user, "le guin")
	require.NoError(t, err)
	err = f.service.RemoveBook(f.admin, book.ID)
	require.NoError(t, err)
	history, historyErr := f.service.ListMyHistory(user, caller.UserID)

	// assert
	require.Len(t, found, 1)
	assert.Equal(t, book.ID, found[0].ID)

	require.NoError(t, historyErr)
	require.Equal(t, 1, history.Count())
	assert.True(t, history.Loans[0].Book.Deleted)
}

func Test_Service_ReaddingARemovedBookKeepsItsOpenLoans(t *testing.T) {
	// arrange
	f := newFixture(t)
	book := f.givenBook(t, 1)
	first, second := f.givenUser(lending.RoleUser), f.givenUser(lending.RoleUser)
	loan, err := f.service.Borrow(first, book.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.RemoveBook(f.admin, book.ID))

	// act
	readded, err := f.service.AddBook(f.admin, lending.Book{
		ID:          book.ID,
		Title:       book.Title,
		Author:      book.Author,
		TotalCopies: 1,
	})
	require.NoError(t, err)
	_, secondBorrowErr := f.service.Borrow(second, book.ID)

	// assert
	assert.Equal(t, 0, readded.AvailableCopies)
	assert.ErrorIs(t, secondBorrowErr, lending.ErrUnavailable)

	_, err = f.service.Return(first, loan.BorrowID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, book.ID))
}

// conflictingStore fails the first LendCopy with a concurrency conflict.
type conflictingStore struct {
	*memengine.Store
	conflicts atomic.Int32
}

func (s *conflictingStore) LendCopy(ctx context.Context, borrow lending.Borrow) (lending.Borrow, error) {
	if s.conflicts.Add(1) == 1 {
		return lending.Borrow{}, lending.ErrConcurrencyConflict
	}

	return s.Store.LendCopy(ctx, borrow)
}

func Test_Service_Borrow_RecordsRetryMetrics(t *testing.T) {
	// arrange
	store := &conflictingStore{Store: memengine.NewStore()}
	metrics := spies.NewMetricsCollectorSpy(true)
	service, err := lendingservice.New(store,
		lendingservice.WithMetrics(metrics),
		lendingservice.WithRetryOptions(shell.WithBaseDelay(time.Millisecond)),
	)
	require.NoError(t, err)

	admin := lending.WithCaller(context.Background(), lending.Caller{UserID: uuid.New(), Role: lending.RoleAdmin})
	book, err := service.AddBook(admin, lending.Book{Title: "Dhalgren", Author: "Samuel R. Delany", TotalCopies: 1})
	require.NoError(t, err)
	reader := lending.WithCaller(context.Background(), lending.Caller{UserID: uuid.New(), Role: lending.RoleUser})

	// act
	_, err = service.Borrow(reader, book.ID)

	// assert
	require.NoError(t, err)
	assert.True(t, metrics.HasCounterRecordWithLabels(
		shell.CommandHandlerRetriesMetric,
		shell.BuildRetryLabels("BorrowBook", 1, "concurrency_conflict"),
	))
}

func Test_New_RequiresStore(t *testing.T) {
	_, err := lendingservice.New(nil)

	assert.ErrorIs(t, err, lendingservice.ErrNilStore)
}
