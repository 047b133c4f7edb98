package lending_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

func validBook() lending.Book {
	return lending.Book{
		ID:              uuid.New(),
		Title:           "The Left Hand of Darkness",
		Author:          "Ursula K. Le Guin",
		ISBN:            "978-0441478125",
		Year:            1969,
		TotalCopies:     3,
		AvailableCopies: 3,
	}
}

func Test_Book_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *lending.Book)
		valid  bool
	}{
		{name: "valid", mutate: func(_ *lending.Book) {}, valid: true},
		{name: "zero_copies", mutate: func(b *lending.Book) { b.TotalCopies, b.AvailableCopies = 0, 0 }, valid: true},
		{name: "missing_id", mutate: func(b *lending.Book) { b.ID = uuid.Nil }},
		{name: "missing_title", mutate: func(b *lending.Book) { b.Title = "" }},
		{name: "missing_author", mutate: func(b *lending.Book) { b.Author = "" }},
		{name: "negative_available", mutate: func(b *lending.Book) { b.AvailableCopies = -1 }},
		{name: "available_above_total", mutate: func(b *lending.Book) { b.AvailableCopies = 4 }},
		{name: "negative_total", mutate: func(b *lending.Book) { b.TotalCopies, b.AvailableCopies = -1, 0 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			book := validBook()
			tc.mutate(&book)

			err := book.Validate()

			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, lending.ErrInvalidBook)
			}
		})
	}
}

func Test_Book_PrepareInsert_MakesAllCopiesAvailable(t *testing.T) {
	// arrange
	book := validBook()
	book.AvailableCopies = 0
	now := time.Date(2025, 3, 10, 12, 0, 0, 999, time.UTC)

	// act
	prepared, err := book.PrepareInsert(0, now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, prepared.AvailableCopies)
	assert.Equal(t, lending.ToStoredTime(now), prepared.CreatedAt)
	assert.Equal(t, prepared.CreatedAt, prepared.UpdatedAt)
}

func Test_Book_PrepareInsert_KeepsCopiesOfOpenBorrows(t *testing.T) {
	// arrange
	book := validBook()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// act
	prepared, err := book.PrepareInsert(2, now)
	_, tooFewErr := book.PrepareInsert(4, now)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, prepared.AvailableCopies)
	assert.Equal(t, 2, prepared.LentOutCopies())
	assert.ErrorIs(t, tooFewErr, lending.ErrInvalidBook)
}

func Test_Book_ApplyCatalogUpdate_KeepsLentOutCount(t *testing.T) {
	// arrange
	stored := validBook()
	stored.AvailableCopies = 1 // two copies lent out
	update := stored
	update.Title = "The Dispossessed"
	update.TotalCopies = 5
	update.AvailableCopies = 5

	// act
	updated, err := stored.ApplyCatalogUpdate(update, time.Now())

	// assert
	require.NoError(t, err)
	assert.Equal(t, "The Dispossessed", updated.Title)
	assert.Equal(t, 5, updated.TotalCopies)
	assert.Equal(t, 3, updated.AvailableCopies)
	assert.Equal(t, 2, updated.LentOutCopies())
}

func Test_Book_ApplyCatalogUpdate_Fails_WhenTotalBelowLentOut(t *testing.T) {
	stored := validBook()
	stored.AvailableCopies = 0
	update := stored
	update.TotalCopies = 2

	_, err := stored.ApplyCatalogUpdate(update, time.Now())

	assert.ErrorIs(t, err, lending.ErrInvalidBook)
}

func Test_DeletedSummaries(t *testing.T) {
	id := uuid.New()

	book := lending.DeletedBookSummary(id)
	user := lending.DeletedUserSummary(id)

	assert.True(t, book.Deleted)
	assert.Equal(t, "<deleted book>", book.Title)
	assert.True(t, user.Deleted)
	assert.Equal(t, "<deleted user>", user.Name)
}
