package borrowbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// Result is what a successful borrow hands back to the caller.
type Result struct {
	BorrowID uuid.UUID      `json:"borrowId"`
	DueDate  time.Time      `json:"dueDate"`
	Borrow   lending.Borrow `json:"borrow"`
}
