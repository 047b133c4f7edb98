package shell

import (
	"context"
)

// Command is implemented by every command a feature slice accepts.
// CommandType must work on the zero value, the observable wrapper reads it from there.
type Command interface {
	CommandType() string
}

// Query is implemented by every query a feature slice accepts.
// QueryType must work on the zero value, the observable wrapper reads it from there.
type Query interface {
	QueryType() string
}

// CommandHandler handles one command type and returns its business result.
// The HandlerResult carries retry metadata and the idempotency flag for observability.
// Feature slices implement it without observability, observable.CommandWrapper decorates it.
type CommandHandler[C Command, R any] interface {
	Handle(ctx context.Context, command C) (R, HandlerResult, error)
}

// QueryHandler handles one query type and returns its result.
type QueryHandler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}
