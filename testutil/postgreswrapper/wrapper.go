package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/shared/shell/config"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine"
)

const (
	envTestDatabaseURL = "LENDING_TEST_DATABASE_URL"
	envAdapterType     = "ADAPTER_TYPE"
)

// Wrapper abstracts over the driver the store under test is built on.
type Wrapper interface {
	GetStore() postgresengine.Store
	Exec(ctx context.Context, statement string) error
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store postgresengine.Store
}

func (w *PGXPoolWrapper) GetStore() postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.pool.Exec(ctx, statement)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db    *sql.DB
	store postgresengine.Store
}

func (w *SQLDBWrapper) GetStore() postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db    *sqlx.DB
	store postgresengine.Store
}

func (w *SQLXWrapper) GetStore() postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// CreateWrapperWithTestConfig connects to the test database, creates the schema, truncates all tables,
// and registers Close as test cleanup. It skips the test when no test database is configured.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(envTestDatabaseURL)
	if dsn == "" {
		t.Skipf("%s is not set, skipping PostgreSQL integration test", envTestDatabaseURL)
	}

	ctx := context.Background()
	wrapper := createWrapper(t, ctx, dsn, options...)
	t.Cleanup(wrapper.Close)

	require.NoError(t, wrapper.GetStore().EnsureSchema(ctx), "error creating the schema in test setup")
	CleanUp(t, wrapper)

	return wrapper
}

func createWrapper(t testing.TB, ctx context.Context, dsn string, options ...postgresengine.Option) Wrapper {
	adapterTypeFromEnv := strings.ToLower(os.Getenv(envAdapterType))

	switch adapterTypeFromEnv {
	case config.AdapterPGX, "":
		pool, err := config.OpenPGXPool(ctx, dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the store in test setup")

		return &PGXPoolWrapper{pool: pool, store: store}

	case config.AdapterSQL:
		db, err := config.OpenSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store in test setup")

		return &SQLDBWrapper{db: db, store: store}

	case config.AdapterSQLX:
		db, err := config.OpenSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")
		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store in test setup")

		return &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}
}

// CleanUp empties all tables of the store.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	for _, table := range wrapper.GetStore().TableNames() {
		err := wrapper.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s", table))
		require.NoError(t, err, "error cleaning up table %s", table)
	}
}
