package core

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// LoanView is a borrow record as the listings show it.
// EffectiveStatus is the status at the time of the listing, so a loan past its due date
// reads as OVERDUE even before the sweep persisted it.
type LoanView struct {
	BorrowID        uuid.UUID            `json:"borrowId"`
	Book            lending.BookSummary  `json:"book"`
	User            lending.UserSummary  `json:"user"`
	BorrowDate      time.Time            `json:"borrowDate"`
	DueDate         time.Time            `json:"dueDate"`
	ReturnDate      *time.Time           `json:"returnDate,omitempty"`
	EffectiveStatus lending.BorrowStatus `json:"status"`
	IsOverdue       bool                 `json:"isOverdue"`
}

// ProjectLoanViews joins borrows with their summaries in the order the borrows came in.
// Missing summaries are replaced with the deleted sentinels.
func ProjectLoanViews(
	borrows []lending.Borrow,
	books map[uuid.UUID]lending.BookSummary,
	users map[uuid.UUID]lending.UserSummary,
	now time.Time,
) []LoanView {
	views := make([]LoanView, 0, len(borrows))

	for _, borrow := range borrows {
		book, ok := books[borrow.BookID]
		if !ok {
			book = lending.DeletedBookSummary(borrow.BookID)
		}

		user, ok := users[borrow.UserID]
		if !ok {
			user = lending.DeletedUserSummary(borrow.UserID)
		}

		views = append(views, LoanView{
			BorrowID:        borrow.ID,
			Book:            book,
			User:            user,
			BorrowDate:      borrow.BorrowDate,
			DueDate:         borrow.DueDate,
			ReturnDate:      borrow.ReturnDate,
			EffectiveStatus: borrow.EffectiveStatusAt(now),
			IsOverdue:       borrow.IsOverdueAt(now),
		})
	}

	return views
}

// ReferencedIDs collects the distinct book and user ids of the borrows, in first-seen order.
func ReferencedIDs(borrows []lending.Borrow) (bookIDs []uuid.UUID, userIDs []uuid.UUID) {
	seenBooks := make(map[uuid.UUID]struct{}, len(borrows))
	seenUsers := make(map[uuid.UUID]struct{}, len(borrows))

	for _, borrow := range borrows {
		if _, ok := seenBooks[borrow.BookID]; !ok {
			seenBooks[borrow.BookID] = struct{}{}
			bookIDs = append(bookIDs, borrow.BookID)
		}

		if _, ok := seenUsers[borrow.UserID]; !ok {
			seenUsers[borrow.UserID] = struct{}{}
			userIDs = append(userIDs, borrow.UserID)
		}
	}

	return bookIDs, userIDs
}
