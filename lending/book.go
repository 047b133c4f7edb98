package lending

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	deletedBookTitle = "<deleted book>"
	deletedUserName  = "<deleted user>"
)

var validate = validator.New()

// Book is a catalog record. Copies are only tracked in aggregate:
// AvailableCopies changes exclusively through a paired borrow/return.
type Book struct {
	ID              uuid.UUID `json:"id" validate:"required"`
	Title           string    `json:"title" validate:"required"`
	Author          string    `json:"author" validate:"required"`
	ISBN            string    `json:"isbn"`
	Year            int       `json:"year" validate:"gte=0"`
	TotalCopies     int       `json:"totalCopies" validate:"gte=0"`
	AvailableCopies int       `json:"availableCopies" validate:"gte=0,ltefield=TotalCopies"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Validate checks the field constraints and the copy counter invariant 0 <= available <= total.
func (b Book) Validate() error {
	if err := validate.Struct(b); err != nil {
		return errors.Join(ErrInvalidBook, err)
	}

	return nil
}

// LentOutCopies is the number of copies currently held by readers.
func (b Book) LentOutCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// PrepareInsert returns the book as it is first stored. Open borrows still referencing the id,
// e.g. after the book was removed and is added again, keep holding their copies.
// A TotalCopies below openBorrows fails with ErrInvalidBook.
func (b Book) PrepareInsert(openBorrows int, now time.Time) (Book, error) {
	if b.TotalCopies < openBorrows {
		return Book{}, fmt.Errorf(
			"%w: total copies %d below %d open borrows", ErrInvalidBook, b.TotalCopies, openBorrows,
		)
	}

	b.AvailableCopies = b.TotalCopies - openBorrows
	b.CreatedAt = ToStoredTime(now)
	b.UpdatedAt = b.CreatedAt

	return b, b.Validate()
}

// ApplyCatalogUpdate returns the stored book with the catalog fields of update applied.
// The lent-out count is kept, so a new TotalCopies below it fails with ErrInvalidBook.
func (b Book) ApplyCatalogUpdate(update Book, now time.Time) (Book, error) {
	lentOut := b.LentOutCopies()
	if update.TotalCopies < lentOut {
		return Book{}, fmt.Errorf(
			"%w: total copies %d below %d lent-out copies", ErrInvalidBook, update.TotalCopies, lentOut,
		)
	}

	b.Title = update.Title
	b.Author = update.Author
	b.ISBN = update.ISBN
	b.Year = update.Year
	b.TotalCopies = update.TotalCopies
	b.AvailableCopies = update.TotalCopies - lentOut
	b.UpdatedAt = ToStoredTime(now)

	return b, b.Validate()
}

// Summary returns the display projection used in loan listings.
func (b Book) Summary() BookSummary {
	return BookSummary{
		ID:     b.ID,
		Title:  b.Title,
		Author: b.Author,
	}
}

// BookSummary is the part of a Book shown next to a borrow record.
type BookSummary struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	Deleted bool      `json:"deleted,omitempty"`
}

// DeletedBookSummary is the sentinel shown for borrow records whose book no longer exists.
func DeletedBookSummary(id uuid.UUID) BookSummary {
	return BookSummary{ID: id, Title: deletedBookTitle, Deleted: true}
}

// UserSummary is the read-only view of a user owned by the identity collaborator.
type UserSummary struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Role    Role      `json:"role"`
	Deleted bool      `json:"deleted,omitempty"`
}

// DeletedUserSummary is the sentinel shown for borrow records whose user no longer exists.
func DeletedUserSummary(id uuid.UUID) UserSummary {
	return UserSummary{ID: id, Name: deletedUserName, Deleted: true}
}
