package lending

import "context"

// ConsistencyLevel defines from which database node a store operation may read.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. Default for everything that precedes a write,
	// e.g. the ownership check before returning a book.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica. Used by loan listings, which tolerate
	// slightly stale rows and derive the overdue flag at read time anyway.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "lending.consistency_level"

// WithStrongConsistency returns a context that makes store reads go to the primary.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows store reads from a replica.
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// Without an explicit level it returns StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
