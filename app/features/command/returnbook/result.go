package returnbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Result is what a successful return hands back to the caller.
type Result struct {
	BorrowID   uuid.UUID      `json:"borrowId"`
	ReturnDate time.Time      `json:"returnDate"`
	Borrow     lending.Borrow `json:"borrow"`
}
