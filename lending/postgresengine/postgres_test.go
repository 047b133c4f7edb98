package postgresengine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
	. "github.com/AntonStoeckl/library-lending-go/testutil/postgreswrapper" //nolint:revive
)

var fakeClock = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func givenBook(t *testing.T, ctx context.Context, store postgresengine.Store, copies int) lending.Book {
	t.Helper()

	book, err := store.SaveBook(ctx, lending.Book{
		ID:          uuid.New(),
		Title:       "The Left Hand of Darkness",
		Author:      "Ursula K. Le Guin",
		ISBN:        "978-0-441-47812-5",
		Year:        1969,
		TotalCopies: copies,
	})
	require.NoError(t, err, "error in arranging test data")

	return book
}

func givenBorrow(userID, bookID uuid.UUID, borrowedAt time.Time) lending.Borrow {
	return lending.Borrow{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(lending.DefaultLoanPeriod),
		Status:     lending.StatusBorrowed,
	}
}

func newTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func Test_Store_SaveBook_InsertsWithAllCopiesAvailable(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// act
	book := givenBook(t, ctx, store, 3)
	loaded, err := store.GetBook(ctx, book.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.TotalCopies)
	assert.Equal(t, 3, loaded.AvailableCopies)
	assert.Equal(t, "Ursula K. Le Guin", loaded.Author)
}

func Test_Store_SaveBook_UpdateKeepsLentOutCopies(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 2)
	_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)

	// act
	book.TotalCopies = 5
	updated, err := store.SaveBook(ctx, book)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 4, updated.AvailableCopies)
}

func Test_Store_SaveBook_RejectsTotalBelowLentOutCopies(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 2)
	for range 2 {
		_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
		require.NoError(t, err)
	}

	// act
	book.TotalCopies = 1
	_, err := store.SaveBook(ctx, book)

	// assert
	assert.ErrorIs(t, err, lending.ErrInvalidBook)
}

func Test_Store_SaveBook_ReinsertKeepsCopiesOfOpenBorrows(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 2)
	borrow, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)
	require.NoError(t, store.DeleteBook(ctx, book.ID))

	// act
	readded, err := store.SaveBook(ctx, book)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, readded.AvailableCopies)

	_, err = store.SettleBorrow(ctx, borrow.ID, fakeClock.Add(time.Hour))
	require.NoError(t, err)
	loaded, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.AvailableCopies)
}

func Test_Store_LendCopy_FailsForUnknownAndExhaustedBooks(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)

	// act
	_, exhaustedErr := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	_, unknownErr := store.LendCopy(ctx, givenBorrow(uuid.New(), uuid.New(), fakeClock))

	// assert
	assert.ErrorIs(t, exhaustedErr, lending.ErrUnavailable)
	assert.ErrorIs(t, unknownErr, lending.ErrBookNotFound)

	borrows, queryErr := store.QueryBorrows(ctx, lending.BuildBorrowFilter().ForBook(book.ID).Finalize())
	require.NoError(t, queryErr)
	assert.Len(t, borrows, 1, "a failed lend must not leave a borrow record behind")
}

func Test_Store_LendCopy_ConcurrentRequestsForLastCopy(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	const contenders = 8
	book := givenBook(t, ctx, store, 1)

	var wg sync.WaitGroup
	var succeeded, unavailable atomic.Int32

	// act
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
			switch {
			case err == nil:
				succeeded.Add(1)
			case assert.ErrorIs(t, err, lending.ErrUnavailable):
				unavailable.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(contenders-1), unavailable.Load())

	loaded, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.AvailableCopies)
}

func Test_Store_SettleBorrow_RestoresCounterOnce(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	borrow, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var settled, alreadyReturned atomic.Int32

	// act
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, settleErr := store.SettleBorrow(ctx, borrow.ID, fakeClock.Add(time.Hour))
			switch {
			case settleErr == nil:
				settled.Add(1)
			case assert.ErrorIs(t, settleErr, lending.ErrAlreadyReturned):
				alreadyReturned.Add(1)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, int32(1), settled.Load())
	assert.Equal(t, int32(3), alreadyReturned.Load())

	loaded, err := store.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.AvailableCopies)

	reloaded, err := store.GetBorrow(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusReturned, reloaded.Status)
	require.NotNil(t, reloaded.ReturnDate)
	assert.True(t, fakeClock.Add(time.Hour).Equal(*reloaded.ReturnDate))
}

func Test_Store_SettleBorrow_UnknownBorrow(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// act
	_, err := store.SettleBorrow(ctx, uuid.New(), fakeClock)

	// assert
	assert.ErrorIs(t, err, lending.ErrBorrowNotFound)
}

func Test_Store_SettleBorrow_OfDeletedBook(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	borrow, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)
	require.NoError(t, store.DeleteBook(ctx, book.ID))

	// act
	settled, err := store.SettleBorrow(ctx, borrow.ID, fakeClock.Add(time.Hour))

	// assert
	require.NoError(t, err)
	assert.Equal(t, lending.StatusReturned, settled.Status)

	_, getErr := store.GetBook(ctx, book.ID)
	assert.ErrorIs(t, getErr, lending.ErrBookNotFound)
}

func Test_Store_MarkOverdue_IsIdempotentAndSkipsReturned(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 3)
	late, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)
	returned, err := store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock))
	require.NoError(t, err)
	_, err = store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock.Add(lending.DefaultLoanPeriod)))
	require.NoError(t, err)
	_, err = store.SettleBorrow(ctx, returned.ID, fakeClock.Add(time.Hour))
	require.NoError(t, err)

	sweepAt := fakeClock.Add(lending.DefaultLoanPeriod + time.Hour)

	// act
	first, firstErr := store.MarkOverdue(ctx, sweepAt)
	second, secondErr := store.MarkOverdue(ctx, sweepAt)

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)

	reloaded, err := store.GetBorrow(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, lending.StatusOverdue, reloaded.Status)
}

func Test_Store_QueryBorrows_OrdersNewestFirst(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	userID := uuid.New()
	book := givenBook(t, ctx, store, 3)
	older, err := store.LendCopy(ctx, givenBorrow(userID, book.ID, fakeClock))
	require.NoError(t, err)
	newer, err := store.LendCopy(ctx, givenBorrow(userID, book.ID, fakeClock.Add(time.Minute)))
	require.NoError(t, err)
	_, err = store.LendCopy(ctx, givenBorrow(uuid.New(), book.ID, fakeClock.Add(2*time.Minute)))
	require.NoError(t, err)

	// act
	borrows, err := store.QueryBorrows(ctx, lending.BuildBorrowFilter().ForUser(userID).Finalize())

	// assert
	require.NoError(t, err)
	require.Len(t, borrows, 2)
	assert.Equal(t, newer.ID, borrows[0].ID)
	assert.Equal(t, older.ID, borrows[1].ID)
}

func Test_Store_Summaries_OmitMissingRows(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	book := givenBook(t, ctx, store, 1)
	user := lending.UserSummary{ID: uuid.New(), Name: "Genly Ai", Email: "genly@example.org", Role: lending.RoleUser}
	require.NoError(t, store.SaveUser(ctx, user))
	unknownID := uuid.New()

	// act
	books, booksErr := store.BooksByIDs(ctx, []uuid.UUID{book.ID, unknownID})
	users, usersErr := store.UsersByIDs(ctx, []uuid.UUID{user.ID, unknownID})

	// assert
	require.NoError(t, booksErr)
	require.NoError(t, usersErr)
	assert.Len(t, books, 1)
	assert.Equal(t, book.Title, books[book.ID].Title)
	assert.Len(t, users, 1)
	assert.Equal(t, user, users[user.ID])
}

func Test_Store_SearchBooks_MatchesTitleAndAuthor(t *testing.T) {
	// setup
	ctx := newTestContext(t)
	store := CreateWrapperWithTestConfig(t).GetStore()

	// arrange
	givenBook(t, ctx, store, 1)
	_, err := store.SaveBook(ctx, lending.Book{ID: uuid.New(), Title: "Dune", Author: "Frank Herbert", TotalCopies: 1})
	require.NoError(t, err)

	// act
	byAuthor, authorErr := store.SearchBooks(ctx, "le guin")
	byTitle, titleErr := store.SearchBooks(ctx, "DUNE")
	all, allErr := store.SearchBooks(ctx, "")

	// assert
	require.NoError(t, authorErr)
	require.NoError(t, titleErr)
	require.NoError(t, allErr)
	assert.Len(t, byAuthor, 1)
	assert.Len(t, byTitle, 1)
	assert.Len(t, all, 2)
	assert.Equal(t, "Dune", all[0].Title)
}
