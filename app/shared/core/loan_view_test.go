package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/shared/core"
	"github.com/AntonStoeckl/library-lending-go/lending"
)

func Test_ProjectLoanViews_DerivesOverdueAndKeepsOrder(t *testing.T) {
	// arrange
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	user := lending.UserSummary{ID: uuid.New(), Name: "Ada", Email: "ada@example.org", Role: lending.RoleUser}
	book := lending.BookSummary{ID: uuid.New(), Title: "Dune", Author: "Frank Herbert"}
	returnedAt := now.Add(-time.Hour)

	onTime := lending.Borrow{ID: uuid.New(), UserID: user.ID, BookID: book.ID,
		BorrowDate: now.Add(-24 * time.Hour), DueDate: now.Add(6 * 24 * time.Hour), Status: lending.StatusBorrowed}
	late := lending.Borrow{ID: uuid.New(), UserID: user.ID, BookID: book.ID,
		BorrowDate: now.Add(-10 * 24 * time.Hour), DueDate: now.Add(-3 * 24 * time.Hour), Status: lending.StatusBorrowed}
	returned := lending.Borrow{ID: uuid.New(), UserID: user.ID, BookID: book.ID,
		BorrowDate: now.Add(-20 * 24 * time.Hour), DueDate: now.Add(-13 * 24 * time.Hour),
		ReturnDate: &returnedAt, Status: lending.StatusReturned}

	books := map[uuid.UUID]lending.BookSummary{book.ID: book}
	users := map[uuid.UUID]lending.UserSummary{user.ID: user}

	// act
	views := core.ProjectLoanViews([]lending.Borrow{onTime, late, returned}, books, users, now)

	// assert
	require.Len(t, views, 3)

	assert.Equal(t, onTime.ID, views[0].BorrowID)
	assert.Equal(t, lending.StatusBorrowed, views[0].EffectiveStatus)
	assert.False(t, views[0].IsOverdue)

	assert.Equal(t, late.ID, views[1].BorrowID)
	assert.Equal(t, lending.StatusOverdue, views[1].EffectiveStatus)
	assert.True(t, views[1].IsOverdue)

	assert.Equal(t, returned.ID, views[2].BorrowID)
	assert.Equal(t, lending.StatusReturned, views[2].EffectiveStatus)
	assert.False(t, views[2].IsOverdue)
	assert.Equal(t, &returnedAt, views[2].ReturnDate)

	assert.Equal(t, book, views[0].Book)
	assert.Equal(t, user, views[0].User)
}

func Test_ProjectLoanViews_UsesSentinelsForDeletedBooksAndUsers(t *testing.T) {
	// arrange
	now := time.Now()
	borrow := lending.Borrow{ID: uuid.New(), UserID: uuid.New(), BookID: uuid.New(),
		BorrowDate: now, DueDate: now.Add(lending.DefaultLoanPeriod), Status: lending.StatusBorrowed}

	// act
	views := core.ProjectLoanViews([]lending.Borrow{borrow}, nil, nil, now)

	// assert
	require.Len(t, views, 1)
	assert.Equal(t, lending.DeletedBookSummary(borrow.BookID), views[0].Book)
	assert.Equal(t, lending.DeletedUserSummary(borrow.UserID), views[0].User)
	assert.True(t, views[0].Book.Deleted)
	assert.True(t, views[0].User.Deleted)
}

func Test_ProjectLoanViews_EmptyInputGivesEmptyNotNil(t *testing.T) {
	views := core.ProjectLoanViews(nil, nil, nil, time.Now())

	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func Test_ReferencedIDs_AreDistinctInFirstSeenOrder(t *testing.T) {
	// arrange
	userA, userB := uuid.New(), uuid.New()
	bookA, bookB := uuid.New(), uuid.New()
	borrows := []lending.Borrow{
		{ID: uuid.New(), UserID: userA, BookID: bookA},
		{ID: uuid.New(), UserID: userB, BookID: bookA},
		{ID: uuid.New(), UserID: userA, BookID: bookB},
	}

	// act
	bookIDs, userIDs := core.ReferencedIDs(borrows)

	// assert
	assert.Equal(t, []uuid.UUID{bookA, bookB}, bookIDs)
	assert.Equal(t, []uuid.UUID{userA, userB}, userIDs)
}
