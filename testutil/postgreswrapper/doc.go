// Package postgreswrapper provides the PostgreSQL fixture for integration tests of the lending store.
//
// The database is taken from LENDING_TEST_DATABASE_URL; tests are skipped when it is not set.
// ADAPTER_TYPE selects the driver the store is built on: pgx (default), sql, or sqlx.
package postgreswrapper
