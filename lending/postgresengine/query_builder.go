package postgresengine

import (
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	dialectPostgres    = "postgres"
	colID              = "id"
	colTitle           = "title"
	colAuthor          = "author"
	colISBN            = "isbn"
	colYear            = "year"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colCreatedAt       = "created_at"
	colUpdatedAt       = "updated_at"
	colUserID          = "user_id"
	colBookID          = "book_id"
	colBorrowDate      = "borrow_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"
	colStatus          = "status"
	colName            = "name"
	colEmail           = "email"
	colRole            = "role"
	likeEscapeChar     = `\`
)

type sqlQueryString = string

var (
	bookColumns   = []any{colID, colTitle, colAuthor, colISBN, colYear, colTotalCopies, colAvailableCopies, colCreatedAt, colUpdatedAt}
	borrowColumns = []any{colID, colUserID, colBookID, colBorrowDate, colDueDate, colReturnDate, colStatus}
	userColumns   = []any{colID, colName, colEmail, colRole}
)

// queryBuilder renders all SQL of the store with goqu. Values are interpolated by goqu,
// which keeps the adapters free of placeholder dialects.
type queryBuilder struct {
	booksTable   string
	borrowsTable string
	usersTable   string
}

func (qb queryBuilder) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

/***** books *****/

func (qb queryBuilder) selectBook(bookID uuid.UUID, forUpdate bool) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.booksTable).
		Select(bookColumns...).
		Where(goqu.C(colID).Eq(bookID.String()))

	if forUpdate {
		stmt = stmt.ForUpdate(exp.Wait)
	}

	return toSQL(stmt)
}

func (qb queryBuilder) insertBook(book lending.Book) (sqlQueryString, error) {
	stmt := qb.dialect().
		Insert(qb.booksTable).
		Rows(goqu.Record{
			colID:              book.ID.String(),
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colISBN:            book.ISBN,
			colYear:            book.Year,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colCreatedAt:       book.CreatedAt,
			colUpdatedAt:       book.UpdatedAt,
		})

	return toSQL(stmt)
}

func (qb queryBuilder) updateBookCatalog(book lending.Book) (sqlQueryString, error) {
	stmt := qb.dialect().
		Update(qb.booksTable).
		Set(goqu.Record{
			colTitle:           book.Title,
			colAuthor:          book.Author,
			colISBN:            book.ISBN,
			colYear:            book.Year,
			colTotalCopies:     book.TotalCopies,
			colAvailableCopies: book.AvailableCopies,
			colUpdatedAt:       book.UpdatedAt,
		}).
		Where(goqu.C(colID).Eq(book.ID.String()))

	return toSQL(stmt)
}

func (qb queryBuilder) deleteBook(bookID uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		Delete(qb.booksTable).
		Where(goqu.C(colID).Eq(bookID.String()))

	return toSQL(stmt)
}

func (qb queryBuilder) searchBooks(term string) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.booksTable).
		Select(bookColumns...).
		Order(goqu.C(colTitle).Asc(), goqu.C(colID).Asc())

	if needle := strings.TrimSpace(term); needle != "" {
		pattern := "%" + escapeLike(needle) + "%"
		stmt = stmt.Where(goqu.Or(
			goqu.C(colTitle).ILike(pattern),
			goqu.C(colAuthor).ILike(pattern),
		))
	}

	return toSQL(stmt)
}

func (qb queryBuilder) selectBookSummaries(bookIDs []uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.booksTable).
		Select(colID, colTitle, colAuthor).
		Where(goqu.C(colID).In(uuidStrings(bookIDs)))

	return toSQL(stmt)
}

// takeCopy is the conditional decrement: it only affects a row that still has a copy available.
func (qb queryBuilder) takeCopy(bookID uuid.UUID, now time.Time) (sqlQueryString, error) {
	stmt := qb.dialect().
		Update(qb.booksTable).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " - 1"),
			colUpdatedAt:       now,
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colAvailableCopies).Gt(0),
		)

	return toSQL(stmt)
}

// giveBackCopy is the conditional increment: it never pushes the counter above the total.
func (qb queryBuilder) giveBackCopy(bookID uuid.UUID, now time.Time) (sqlQueryString, error) {
	stmt := qb.dialect().
		Update(qb.booksTable).
		Set(goqu.Record{
			colAvailableCopies: goqu.L(colAvailableCopies + " + 1"),
			colUpdatedAt:       now,
		}).
		Where(
			goqu.C(colID).Eq(bookID.String()),
			goqu.C(colAvailableCopies).Lt(goqu.C(colTotalCopies)),
		)

	return toSQL(stmt)
}

func (qb queryBuilder) bookExists(bookID uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.booksTable).
		Select(goqu.L("1")).
		Where(goqu.C(colID).Eq(bookID.String()))

	return toSQL(stmt)
}

/***** borrows *****/

func (qb queryBuilder) lockOpenBorrowsOfBook(bookID uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.borrowsTable).
		Select(colID).
		Where(
			goqu.C(colBookID).Eq(bookID.String()),
			goqu.C(colStatus).In(statusTokens(lending.OpenStatuses)),
		).
		ForUpdate(exp.Wait)

	return toSQL(stmt)
}

func (qb queryBuilder) insertBorrow(borrow lending.Borrow) (sqlQueryString, error) {
	stmt := qb.dialect().
		Insert(qb.borrowsTable).
		Rows(goqu.Record{
			colID:         borrow.ID.String(),
			colUserID:     borrow.UserID.String(),
			colBookID:     borrow.BookID.String(),
			colBorrowDate: borrow.BorrowDate,
			colDueDate:    borrow.DueDate,
			colStatus:     borrow.Status.String(),
		})

	return toSQL(stmt)
}

func (qb queryBuilder) selectBorrow(borrowID uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.borrowsTable).
		Select(borrowColumns...).
		Where(goqu.C(colID).Eq(borrowID.String()))

	return toSQL(stmt)
}

// settleBorrow is the conditional flip to RETURNED: a row that is already RETURNED is not touched.
func (qb queryBuilder) settleBorrow(borrowID uuid.UUID, returnedAt time.Time) (sqlQueryString, error) {
	stmt := qb.dialect().
		Update(qb.borrowsTable).
		Set(goqu.Record{
			colStatus:     lending.StatusReturned.String(),
			colReturnDate: returnedAt,
		}).
		Where(
			goqu.C(colID).Eq(borrowID.String()),
			goqu.C(colStatus).Neq(lending.StatusReturned.String()),
		).
		Returning(borrowColumns...)

	return toSQL(stmt)
}

// markOverdue evaluates its condition at write time, so a borrow returned in the meantime stays RETURNED.
func (qb queryBuilder) markOverdue(now time.Time) (sqlQueryString, error) {
	stmt := qb.dialect().
		Update(qb.borrowsTable).
		Set(goqu.Record{colStatus: lending.StatusOverdue.String()}).
		Where(
			goqu.C(colStatus).Eq(lending.StatusBorrowed.String()),
			goqu.C(colDueDate).Lt(now),
		)

	return toSQL(stmt)
}

func (qb queryBuilder) queryBorrows(filter lending.BorrowFilter) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.borrowsTable).
		Select(borrowColumns...).
		Order(goqu.C(colBorrowDate).Desc(), goqu.C(colID).Asc())

	conditions := make([]goqu.Expression, 0, 4)

	if filter.UserID() != uuid.Nil {
		conditions = append(conditions, goqu.C(colUserID).Eq(filter.UserID().String()))
	}

	if filter.BookID() != uuid.Nil {
		conditions = append(conditions, goqu.C(colBookID).Eq(filter.BookID().String()))
	}

	if statuses := filter.Statuses(); len(statuses) > 0 {
		conditions = append(conditions, goqu.C(colStatus).In(statusTokens(statuses)))
	}

	if !filter.DueBefore().IsZero() {
		conditions = append(conditions, goqu.C(colDueDate).Lt(filter.DueBefore()))
	}

	if len(conditions) > 0 {
		stmt = stmt.Where(goqu.And(conditions...))
	}

	return toSQL(stmt)
}

/***** users *****/

func (qb queryBuilder) selectUserSummaries(userIDs []uuid.UUID) (sqlQueryString, error) {
	stmt := qb.dialect().
		From(qb.usersTable).
		Select(userColumns...).
		Where(goqu.C(colID).In(uuidStrings(userIDs)))

	return toSQL(stmt)
}

func (qb queryBuilder) upsertUser(user lending.UserSummary) (sqlQueryString, error) {
	stmt := qb.dialect().
		Insert(qb.usersTable).
		Rows(goqu.Record{
			colID:    user.ID.String(),
			colName:  user.Name,
			colEmail: user.Email,
			colRole:  string(user.Role),
		}).
		OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colName:  goqu.I("excluded." + colName),
			colEmail: goqu.I("excluded." + colEmail),
			colRole:  goqu.I("excluded." + colRole),
		}))

	return toSQL(stmt)
}

/***** helpers *****/

type sqlStatement interface {
	ToSQL() (string, []any, error)
}

func toSQL(stmt sqlStatement) (sqlQueryString, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(lending.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.String())
	}

	return result
}

func statusTokens(statuses []lending.BorrowStatus) []string {
	result := make([]string, 0, len(statuses))
	for _, status := range statuses {
		result = append(result, status.String())
	}

	return result
}

// escapeLike escapes the ILIKE wildcards, so a search term matches literally.
func escapeLike(term string) string {
	return strings.NewReplacer(
		likeEscapeChar, likeEscapeChar+likeEscapeChar,
		"%", likeEscapeChar+"%",
		"_", likeEscapeChar+"_",
	).Replace(term)
}
