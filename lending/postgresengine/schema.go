package postgresengine

import (
	"context"
	"fmt"
	"strings"
)

const operationEnsureSchema = "ensure_schema"

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS {books} (
    id               uuid PRIMARY KEY,
    title            text        NOT NULL,
    author           text        NOT NULL,
    isbn             text        NOT NULL DEFAULT '',
    year             integer     NOT NULL DEFAULT 0,
    total_copies     integer     NOT NULL,
    available_copies integer     NOT NULL,
    created_at       timestamptz NOT NULL,
    updated_at       timestamptz NOT NULL,
    CONSTRAINT {books}_copies_check CHECK (available_copies >= 0 AND available_copies <= total_copies)
);

CREATE TABLE IF NOT EXISTS {borrows} (
    id          uuid PRIMARY KEY,
    user_id     uuid        NOT NULL,
    book_id     uuid        NOT NULL,
    borrow_date timestamptz NOT NULL,
    due_date    timestamptz NOT NULL,
    return_date timestamptz NULL,
    status      text        NOT NULL,
    CONSTRAINT {borrows}_status_check CHECK (status IN ('BORROWED', 'OVERDUE', 'RETURNED')),
    CONSTRAINT {borrows}_return_date_check CHECK ((status = 'RETURNED') = (return_date IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS {borrows}_user_id_idx ON {borrows} (user_id, borrow_date DESC);
CREATE INDEX IF NOT EXISTS {borrows}_book_id_idx ON {borrows} (book_id);
CREATE INDEX IF NOT EXISTS {borrows}_open_due_date_idx ON {borrows} (due_date) WHERE status = 'BORROWED';

CREATE TABLE IF NOT EXISTS {users} (
    id    uuid PRIMARY KEY,
    name  text NOT NULL,
    email text NOT NULL,
    role  text NOT NULL CHECK (role IN ('ADMIN', 'USER'))
);
`

// SchemaSQL renders the DDL for the configured table names.
// Borrows do not reference books with a foreign key: a deleted book keeps its loan history.
func (s Store) SchemaSQL() string {
	return strings.NewReplacer(
		"{books}", s.queries.booksTable,
		"{borrows}", s.queries.borrowsTable,
		"{users}", s.queries.usersTable,
	).Replace(schemaTemplate)
}

// TableNames lists the configured books, borrows, and users tables.
func (s Store) TableNames() []string {
	return []string{s.queries.booksTable, s.queries.borrowsTable, s.queries.usersTable}
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s Store) EnsureSchema(ctx context.Context) (err error) {
	observer, ctx := s.observe(ctx, operationEnsureSchema, nil)
	defer func() { observer.finish(err, 0) }()

	for _, statement := range strings.Split(s.SchemaSQL(), ";") {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}

		if _, execErr := s.exec(ctx, s.db, statement, operationEnsureSchema); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}

	return nil
}
