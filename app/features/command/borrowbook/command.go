package borrowbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "BorrowBook"
)

// Command represents the intent of a caller to borrow one copy of a book.
type Command struct {
	Caller     lending.Caller
	BookID     uuid.UUID
	BorrowedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(caller lending.Caller, bookID uuid.UUID, borrowedAt time.Time) Command {
	return Command{
		Caller:     caller,
		BookID:     bookID,
		BorrowedAt: borrowedAt,
	}
}
