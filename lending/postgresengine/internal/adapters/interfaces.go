package adapters

import (
	"context"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// DBAdapter defines the interface for database operations needed by the lending store.
type DBAdapter interface {
	Querier
	BeginTx(ctx context.Context) (DBTx, error)
}

// Querier runs single statements, either directly on a pool or inside a transaction.
type Querier interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBTx is an open transaction. Rollback after Commit is a no-op.
type DBTx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}

// readsFromReplica reports whether a read may be served by a replica.
func readsFromReplica(ctx context.Context, replicaConfigured bool) bool {
	return replicaConfigured && lending.GetConsistencyLevel(ctx) == lending.EventualConsistency
}
