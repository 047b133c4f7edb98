package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/postgresengine/internal/adapters"
)

const (
	defaultBooksTableName     = "books"
	defaultBorrowsTableName   = "borrows"
	defaultUsersTableName     = "users"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "lending store operation: "
	logMsgCompletedSuffix     = " completed"
	logMsgFailedSuffix        = " failed"
	logMsgRejectedSuffix      = " rejected"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgBookGone            = "book of returned borrow no longer exists, counter not restored"
	logMsgCounterAtTotal      = "book counter already at total copies, counter not restored"
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrRowCount           = "row_count"
	logAttrOperation          = "operation"
	logAttrReason             = "reason"
	logAttrBookID             = "book_id"
	logAttrBorrowID           = "borrow_id"
	operationGetBook          = "get_book"
	operationSaveBook         = "save_book"
	operationDeleteBook       = "delete_book"
	operationSearchBooks      = "search_books"
	operationBooksByIDs       = "books_by_ids"
	operationUsersByIDs       = "users_by_ids"
	operationSaveUser         = "save_user"
	operationGetBorrow        = "get_borrow"
	operationLendCopy         = "lend_copy"
	operationSettleBorrow     = "settle_borrow"
	operationMarkOverdue      = "mark_overdue"
	operationQueryBorrows     = "query_borrows"
)

// Store is the PostgreSQL implementation of lending.Store.
//
// Every mutation of a copy counter or a borrow status is a single conditional UPDATE scoped to one row.
// LendCopy and SettleBorrow pair that UPDATE with the write on the other table inside one transaction.
type Store struct {
	db               adapters.DBAdapter
	queries          queryBuilder
	now              func() time.Time
	logger           lending.Logger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
	contextualLogger lending.ContextualLogger
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a new Store that serves eventually consistent reads from the replica.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLDBWithReplica creates a new Store that serves eventually consistent reads from the replica.
func NewStoreFromSQLDBWithReplica(db *sql.DB, replica *sql.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// NewStoreFromSQLXWithReplica creates a new Store that serves eventually consistent reads from the replica.
func NewStoreFromSQLXWithReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, lending.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapterWithReplica(db, replica), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{
		db: db,
		queries: queryBuilder{
			booksTable:   defaultBooksTableName,
			borrowsTable: defaultBorrowsTableName,
			usersTable:   defaultUsersTableName,
		},
		now: time.Now,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

/***** CatalogStore *****/

// GetBook loads a book or returns lending.ErrBookNotFound.
func (s Store) GetBook(ctx context.Context, bookID uuid.UUID) (book lending.Book, err error) {
	observer, ctx := s.observe(ctx, operationGetBook, map[string]string{spanAttrBookID: bookID.String()})
	defer func() { observer.finish(err, 1) }()

	book, found, err := s.loadBook(ctx, s.db, bookID, false)
	if err != nil {
		return lending.Book{}, err
	}

	if !found {
		return lending.Book{}, lending.ErrBookNotFound
	}

	return book, nil
}

// SaveBook inserts a new book or updates the catalog fields of an existing one.
// The existing row is locked with SELECT ... FOR UPDATE, so a concurrent LendCopy cannot slip in
// between reading the lent-out count and writing the new totals. On insert the open borrows that
// still reference the id are locked and counted, so they keep holding their copies.
func (s Store) SaveBook(ctx context.Context, book lending.Book) (saved lending.Book, err error) {
	observer, ctx := s.observe(ctx, operationSaveBook, map[string]string{spanAttrBookID: book.ID.String()})
	defer func() { observer.finish(err, 1) }()

	err = s.inTx(ctx, func(tx adapters.DBTx) error {
		stored, found, loadErr := s.loadBook(ctx, tx, book.ID, true)
		if loadErr != nil {
			return loadErr
		}

		var prepareErr error
		if found {
			saved, prepareErr = stored.ApplyCatalogUpdate(book, s.now())
		} else {
			openBorrows, countErr := s.lockOpenBorrowsOfBook(ctx, tx, book.ID)
			if countErr != nil {
				return countErr
			}

			saved, prepareErr = book.PrepareInsert(openBorrows, s.now())
		}

		if prepareErr != nil {
			return prepareErr
		}

		buildQuery := s.queries.insertBook
		if found {
			buildQuery = s.queries.updateBookCatalog
		}

		sqlQuery, buildErr := buildQuery(saved)
		if buildErr != nil {
			return buildErr
		}

		_, execErr := s.exec(ctx, tx, sqlQuery, operationSaveBook)

		return execErr
	})

	if err != nil {
		return lending.Book{}, err
	}

	return saved, nil
}

// DeleteBook removes the book. Borrow records keep referencing it.
func (s Store) DeleteBook(ctx context.Context, bookID uuid.UUID) (err error) {
	observer, ctx := s.observe(ctx, operationDeleteBook, map[string]string{spanAttrBookID: bookID.String()})
	defer func() { observer.finish(err, 1) }()

	sqlQuery, err := s.queries.deleteBook(bookID)
	if err != nil {
		return err
	}

	rowsAffected, err := s.exec(ctx, s.db, sqlQuery, operationDeleteBook)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return lending.ErrBookNotFound
	}

	return nil
}

// SearchBooks matches term case-insensitively against title and author, ordered by title.
func (s Store) SearchBooks(ctx context.Context, term string) (books []lending.Book, err error) {
	observer, ctx := s.observe(ctx, operationSearchBooks, nil)
	defer func() { observer.finish(err, len(books)) }()

	sqlQuery, err := s.queries.searchBooks(term)
	if err != nil {
		return nil, err
	}

	books = make([]lending.Book, 0)
	err = s.query(ctx, s.db, sqlQuery, operationSearchBooks, func(rows adapters.DBRows) error {
		book, scanErr := scanBook(rows)
		books = append(books, book)

		return scanErr
	})

	if err != nil {
		return nil, err
	}

	return books, nil
}

// BooksByIDs returns the summaries of the books that still exist.
func (s Store) BooksByIDs(ctx context.Context, bookIDs []uuid.UUID) (summaries map[uuid.UUID]lending.BookSummary, err error) {
	summaries = make(map[uuid.UUID]lending.BookSummary, len(bookIDs))
	if len(bookIDs) == 0 {
		return summaries, nil
	}

	observer, ctx := s.observe(ctx, operationBooksByIDs, nil)
	defer func() { observer.finish(err, len(summaries)) }()

	sqlQuery, err := s.queries.selectBookSummaries(bookIDs)
	if err != nil {
		return nil, err
	}

	err = s.query(ctx, s.db, sqlQuery, operationBooksByIDs, func(rows adapters.DBRows) error {
		var summary lending.BookSummary
		if scanErr := rows.Scan(&summary.ID, &summary.Title, &summary.Author); scanErr != nil {
			return errors.Join(lending.ErrScanningDBRowFailed, scanErr)
		}
		summaries[summary.ID] = summary

		return nil
	})

	if err != nil {
		return nil, err
	}

	return summaries, nil
}

/***** UserDirectory *****/

// UsersByIDs returns the summaries of the users that exist.
func (s Store) UsersByIDs(ctx context.Context, userIDs []uuid.UUID) (summaries map[uuid.UUID]lending.UserSummary, err error) {
	summaries = make(map[uuid.UUID]lending.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return summaries, nil
	}

	observer, ctx := s.observe(ctx, operationUsersByIDs, nil)
	defer func() { observer.finish(err, len(summaries)) }()

	sqlQuery, err := s.queries.selectUserSummaries(userIDs)
	if err != nil {
		return nil, err
	}

	err = s.query(ctx, s.db, sqlQuery, operationUsersByIDs, func(rows adapters.DBRows) error {
		var summary lending.UserSummary
		var role string
		if scanErr := rows.Scan(&summary.ID, &summary.Name, &summary.Email, &role); scanErr != nil {
			return errors.Join(lending.ErrScanningDBRowFailed, scanErr)
		}
		summary.Role = lending.Role(role)
		summaries[summary.ID] = summary

		return nil
	})

	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// SaveUser inserts or replaces a user summary. The lending core never writes users itself,
// this exists for provisioning and tests.
func (s Store) SaveUser(ctx context.Context, user lending.UserSummary) (err error) {
	observer, ctx := s.observe(ctx, operationSaveUser, nil)
	defer func() { observer.finish(err, 1) }()

	if _, roleErr := lending.ParseRole(string(user.Role)); roleErr != nil {
		return roleErr
	}

	sqlQuery, err := s.queries.upsertUser(user)
	if err != nil {
		return err
	}

	if _, err = s.exec(ctx, s.db, sqlQuery, operationSaveUser); err != nil {
		return err
	}

	return nil
}

/***** LoanLedger *****/

// GetBorrow loads a borrow record or returns lending.ErrBorrowNotFound.
func (s Store) GetBorrow(ctx context.Context, borrowID uuid.UUID) (borrow lending.Borrow, err error) {
	observer, ctx := s.observe(ctx, operationGetBorrow, map[string]string{spanAttrBorrowID: borrowID.String()})
	defer func() { observer.finish(err, 1) }()

	borrow, found, err := s.loadBorrow(ctx, s.db, borrowID)
	if err != nil {
		return lending.Borrow{}, err
	}

	if !found {
		return lending.Borrow{}, lending.ErrBorrowNotFound
	}

	return borrow, nil
}

// LendCopy decrements the counter with a conditional UPDATE and inserts the borrow in the same transaction.
// When the UPDATE matches no row, a probe tells a missing book apart from an exhausted one.
func (s Store) LendCopy(ctx context.Context, borrow lending.Borrow) (lent lending.Borrow, err error) {
	observer, ctx := s.observe(ctx, operationLendCopy, map[string]string{
		spanAttrBookID:   borrow.BookID.String(),
		spanAttrBorrowID: borrow.ID.String(),
	})
	defer func() { observer.finish(err, 1, logAttrBookID, borrow.BookID.String()) }()

	borrow.BorrowDate = lending.ToStoredTime(borrow.BorrowDate)
	borrow.DueDate = lending.ToStoredTime(borrow.DueDate)
	borrow.ReturnDate = nil
	borrow.Status = lending.StatusBorrowed

	err = s.inTx(ctx, func(tx adapters.DBTx) error {
		takeQuery, buildErr := s.queries.takeCopy(borrow.BookID, borrow.BorrowDate)
		if buildErr != nil {
			return buildErr
		}

		taken, execErr := s.exec(ctx, tx, takeQuery, operationLendCopy)
		if execErr != nil {
			return execErr
		}

		if taken == 0 {
			return s.explainMissedCopy(ctx, tx, borrow.BookID)
		}

		insertQuery, buildErr := s.queries.insertBorrow(borrow)
		if buildErr != nil {
			return buildErr
		}

		_, execErr = s.exec(ctx, tx, insertQuery, operationLendCopy)

		return execErr
	})

	if err != nil {
		return lending.Borrow{}, err
	}

	return borrow, nil
}

// lockOpenBorrowsOfBook locks the open borrows of the book until the transaction ends and counts them.
// A concurrent SettleBorrow waits for the lock and then restores the counter of the inserted row.
func (s Store) lockOpenBorrowsOfBook(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID) (int, error) {
	sqlQuery, err := s.queries.lockOpenBorrowsOfBook(bookID)
	if err != nil {
		return 0, err
	}

	open := 0
	err = s.query(ctx, tx, sqlQuery, operationSaveBook, func(rows adapters.DBRows) error {
		open++
		return nil
	})

	return open, err
}

func (s Store) explainMissedCopy(ctx context.Context, tx adapters.DBTx, bookID uuid.UUID) error {
	probeQuery, err := s.queries.bookExists(bookID)
	if err != nil {
		return err
	}

	exists := false
	err = s.query(ctx, tx, probeQuery, operationLendCopy, func(rows adapters.DBRows) error {
		exists = true
		return nil
	})

	switch {
	case err != nil:
		return err
	case exists:
		return lending.ErrUnavailable
	default:
		return lending.ErrBookNotFound
	}
}

// SettleBorrow flips the borrow to RETURNED with a conditional UPDATE and gives the copy back in the same transaction.
// A borrow whose book was deleted is still settled, the counter update is skipped with a warning.
func (s Store) SettleBorrow(ctx context.Context, borrowID uuid.UUID, returnedAt time.Time) (settled lending.Borrow, err error) {
	observer, ctx := s.observe(ctx, operationSettleBorrow, map[string]string{spanAttrBorrowID: borrowID.String()})
	defer func() { observer.finish(err, 1, logAttrBorrowID, borrowID.String()) }()

	returnedAt = lending.ToStoredTime(returnedAt)

	err = s.inTx(ctx, func(tx adapters.DBTx) error {
		settleQuery, buildErr := s.queries.settleBorrow(borrowID, returnedAt)
		if buildErr != nil {
			return buildErr
		}

		flipped := false
		queryErr := s.query(ctx, tx, settleQuery, operationSettleBorrow, func(rows adapters.DBRows) error {
			var scanErr error
			settled, scanErr = scanBorrow(rows)
			flipped = scanErr == nil

			return scanErr
		})

		if queryErr != nil {
			return queryErr
		}

		if !flipped {
			return s.explainMissedSettle(ctx, tx, borrowID)
		}

		giveBackQuery, buildErr := s.queries.giveBackCopy(settled.BookID, returnedAt)
		if buildErr != nil {
			return buildErr
		}

		restored, execErr := s.exec(ctx, tx, giveBackQuery, operationSettleBorrow)
		if execErr != nil {
			return execErr
		}

		if restored == 0 {
			s.warnCounterNotRestored(ctx, tx, settled)
		}

		return nil
	})

	if err != nil {
		return lending.Borrow{}, err
	}

	return settled, nil
}

func (s Store) explainMissedSettle(ctx context.Context, tx adapters.DBTx, borrowID uuid.UUID) error {
	_, found, err := s.loadBorrow(ctx, tx, borrowID)

	switch {
	case err != nil:
		return err
	case found:
		return lending.ErrAlreadyReturned
	default:
		return lending.ErrBorrowNotFound
	}
}

func (s Store) warnCounterNotRestored(ctx context.Context, tx adapters.DBTx, settled lending.Borrow) {
	message := logMsgCounterAtTotal

	if _, found, err := s.loadBook(ctx, tx, settled.BookID, false); err == nil && !found {
		message = logMsgBookGone
	}

	s.logWarn(ctx, message, logAttrBorrowID, settled.ID.String(), logAttrBookID, settled.BookID.String())
}

// MarkOverdue transitions all BORROWED rows due before now to OVERDUE with one conditional bulk UPDATE.
func (s Store) MarkOverdue(ctx context.Context, now time.Time) (marked int, err error) {
	observer, ctx := s.observe(ctx, operationMarkOverdue, nil)
	defer func() { observer.finish(err, marked) }()

	sqlQuery, err := s.queries.markOverdue(lending.ToStoredTime(now))
	if err != nil {
		return 0, err
	}

	rowsAffected, err := s.exec(ctx, s.db, sqlQuery, operationMarkOverdue)
	if err != nil {
		return 0, err
	}

	return int(rowsAffected), nil
}

// QueryBorrows lists the borrows matching the filter, newest BorrowDate first, ties broken by ID.
// With lending.WithEventualConsistency the query may be served by a replica.
func (s Store) QueryBorrows(ctx context.Context, filter lending.BorrowFilter) (borrows []lending.Borrow, err error) {
	observer, ctx := s.observe(ctx, operationQueryBorrows, nil)
	defer func() { observer.finish(err, len(borrows)) }()

	sqlQuery, err := s.queries.queryBorrows(filter)
	if err != nil {
		return nil, err
	}

	borrows = make([]lending.Borrow, 0)
	err = s.query(ctx, s.db, sqlQuery, operationQueryBorrows, func(rows adapters.DBRows) error {
		borrow, scanErr := scanBorrow(rows)
		borrows = append(borrows, borrow)

		return scanErr
	})

	if err != nil {
		return nil, err
	}

	return borrows, nil
}

/***** loaders *****/

func (s Store) loadBook(ctx context.Context, q adapters.Querier, bookID uuid.UUID, forUpdate bool) (lending.Book, bool, error) {
	sqlQuery, err := s.queries.selectBook(bookID, forUpdate)
	if err != nil {
		return lending.Book{}, false, err
	}

	var book lending.Book
	found := false

	err = s.query(ctx, q, sqlQuery, operationGetBook, func(rows adapters.DBRows) error {
		var scanErr error
		book, scanErr = scanBook(rows)
		found = scanErr == nil

		return scanErr
	})

	return book, found, err
}

func (s Store) loadBorrow(ctx context.Context, q adapters.Querier, borrowID uuid.UUID) (lending.Borrow, bool, error) {
	sqlQuery, err := s.queries.selectBorrow(borrowID)
	if err != nil {
		return lending.Borrow{}, false, err
	}

	var borrow lending.Borrow
	found := false

	err = s.query(ctx, q, sqlQuery, operationGetBorrow, func(rows adapters.DBRows) error {
		var scanErr error
		borrow, scanErr = scanBorrow(rows)
		found = scanErr == nil

		return scanErr
	})

	return borrow, found, err
}

func scanBook(rows adapters.DBRows) (lending.Book, error) {
	var book lending.Book

	scanErr := rows.Scan(
		&book.ID, &book.Title, &book.Author, &book.ISBN, &book.Year,
		&book.TotalCopies, &book.AvailableCopies, &book.CreatedAt, &book.UpdatedAt,
	)
	if scanErr != nil {
		return lending.Book{}, errors.Join(lending.ErrScanningDBRowFailed, scanErr)
	}

	book.CreatedAt = lending.ToStoredTime(book.CreatedAt)
	book.UpdatedAt = lending.ToStoredTime(book.UpdatedAt)

	return book, nil
}

func scanBorrow(rows adapters.DBRows) (lending.Borrow, error) {
	var borrow lending.Borrow
	var status string

	scanErr := rows.Scan(
		&borrow.ID, &borrow.UserID, &borrow.BookID,
		&borrow.BorrowDate, &borrow.DueDate, &borrow.ReturnDate, &status,
	)
	if scanErr != nil {
		return lending.Borrow{}, errors.Join(lending.ErrScanningDBRowFailed, scanErr)
	}

	parsed, parseErr := lending.ParseBorrowStatus(status)
	if parseErr != nil {
		return lending.Borrow{}, errors.Join(lending.ErrScanningDBRowFailed, parseErr)
	}

	borrow.Status = parsed
	borrow.BorrowDate = lending.ToStoredTime(borrow.BorrowDate)
	borrow.DueDate = lending.ToStoredTime(borrow.DueDate)

	if borrow.ReturnDate != nil {
		returnDate := lending.ToStoredTime(*borrow.ReturnDate)
		borrow.ReturnDate = &returnDate
	}

	return borrow, nil
}

/***** execution *****/

// inTx runs fn in a transaction. Any error from fn rolls it back, nothing is committed.
func (s Store) inTx(ctx context.Context, fn func(tx adapters.DBTx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return classifyDBError(err, lending.ErrBeginningTransactionFailed)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return classifyDBError(commitErr, lending.ErrCommittingTransactionFailed)
	}

	return nil
}

// exec runs a statement and returns the number of affected rows.
func (s Store) exec(ctx context.Context, q adapters.Querier, sqlQuery sqlQueryString, action string) (int64, error) {
	start := time.Now()
	result, execErr := q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		return 0, classifyDBError(execErr, lending.ErrExecutingStatementFailed)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		return 0, errors.Join(lending.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// query runs a query and hands every row to scan.
func (s Store) query(
	ctx context.Context,
	q adapters.Querier,
	sqlQuery sqlQueryString,
	action string,
	scan func(rows adapters.DBRows) error,
) error {

	start := time.Now()
	rows, queryErr := q.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		return classifyDBError(queryErr, lending.ErrQueryingFailed)
	}
	defer s.closeRows(ctx, rows)

	for rows.Next() {
		if scanErr := scan(rows); scanErr != nil {
			return scanErr
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return classifyDBError(rowsErr, lending.ErrQueryingFailed)
	}

	return nil
}

// closeRows safely closes database rows and logs any errors.
func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
