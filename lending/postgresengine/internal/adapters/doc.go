// Package adapters provide database adapter implementations for the PostgreSQL lending store.
//
// This package implements the adapter pattern to support multiple PostgreSQL database libraries:
// pgx.Pool, sql.DB, and sqlx.DB. All adapters provide equivalent functionality through
// a common DBAdapter interface: plain queries, statements, and transactions.
//
// Queries issued with lending.WithEventualConsistency go to the replica when one is configured,
// everything else goes to the primary.
package adapters
