package returnbook

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "ReturnBook"
)

// Command represents the intent of a caller to return a borrowed copy.
type Command struct {
	Caller     lending.Caller
	BorrowID   uuid.UUID
	ReturnedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(caller lending.Caller, borrowID uuid.UUID, returnedAt time.Time) Command {
	return Command{
		Caller:     caller,
		BorrowID:   borrowID,
		ReturnedAt: returnedAt,
	}
}
