package sweepoverdue

import (
	"time"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	commandType = "SweepOverdueLoans"
)

// Command represents the intent to mark all loans past their due date as OVERDUE.
type Command struct {
	Caller lending.Caller
	Now    time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(caller lending.Caller, now time.Time) Command {
	return Command{
		Caller: caller,
		Now:    now,
	}
}
