package memengine

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgOperation      = "memengine operation: "
	logMsgBookGone       = "book of returned borrow no longer exists, counter not restored"
	logMsgCounterAtTotal = "book counter already at total copies, counter not restored"
	logMsgCopyLent       = "copy lent"
	logMsgBorrowSettled  = "borrow settled"
	logMsgOverdueMarked  = "overdue borrows marked"
	logAttrBookID        = "book_id"
	logAttrBorrowID      = "borrow_id"
	logAttrRowsAffected  = "rows_affected"
	logAttrAvailable     = "available_copies"
)

// Store keeps books, borrows and users in maps.
// The maps are guarded by mu for short reads and writes. The read-decide-write sequences that
// must be atomic run under the per-key locks.
type Store struct {
	mu      sync.RWMutex
	books   map[uuid.UUID]lending.Book
	borrows map[uuid.UUID]lending.Borrow
	users   map[uuid.UUID]lending.UserSummary

	bookLocks   *keyedMutex
	borrowLocks *keyedMutex

	now    func() time.Time
	logger lending.Logger
}

// Option defines a functional option for configuring Store.
type Option func(*Store)

// WithLogger sets the logger for the Store.
func WithLogger(logger lending.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for the timestamps the Store sets itself (CreatedAt, UpdatedAt).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty Store.
func NewStore(options ...Option) *Store {
	s := &Store{
		books:       make(map[uuid.UUID]lending.Book),
		borrows:     make(map[uuid.UUID]lending.Borrow),
		users:       make(map[uuid.UUID]lending.UserSummary),
		bookLocks:   newKeyedMutex(),
		borrowLocks: newKeyedMutex(),
		now:         time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

/***** CatalogStore *****/

// GetBook loads a book or returns lending.ErrBookNotFound.
func (s *Store) GetBook(ctx context.Context, bookID uuid.UUID) (lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return lending.Book{}, err
	}

	book, ok := s.loadBook(bookID)
	if !ok {
		return lending.Book{}, lending.ErrBookNotFound
	}

	return book, nil
}

// SaveBook inserts a new book with all copies available or updates the catalog fields of an existing one.
func (s *Store) SaveBook(ctx context.Context, book lending.Book) (lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return lending.Book{}, err
	}

	unlock := s.bookLocks.Lock(book.ID)
	defer unlock()

	var saved lending.Book
	var err error

	if stored, ok := s.loadBook(book.ID); ok {
		saved, err = stored.ApplyCatalogUpdate(book, s.now())
	} else {
		saved, err = book.PrepareInsert(s.countOpenBorrows(book.ID), s.now())
	}

	if err != nil {
		return lending.Book{}, err
	}

	s.mu.Lock()
	s.books[saved.ID] = saved
	s.mu.Unlock()

	return saved, nil
}

// DeleteBook removes the book. Borrow records keep referencing it.
func (s *Store) DeleteBook(ctx context.Context, bookID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.bookLocks.Lock(bookID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[bookID]; !ok {
		return lending.ErrBookNotFound
	}

	delete(s.books, bookID)

	return nil
}

// SearchBooks matches term case-insensitively against title and author, ordered by title.
func (s *Store) SearchBooks(ctx context.Context, term string) ([]lending.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	result := make([]lending.Book, 0)

	s.mu.RLock()
	for _, book := range s.books {
		if needle == "" ||
			strings.Contains(strings.ToLower(book.Title), needle) ||
			strings.Contains(strings.ToLower(book.Author), needle) {

			result = append(result, book)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b lending.Book) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}

		return bytes.Compare(a.ID[:], b.ID[:])
	})

	return result, nil
}

// BooksByIDs returns the summaries of the books that still exist.
func (s *Store) BooksByIDs(ctx context.Context, bookIDs []uuid.UUID) (map[uuid.UUID]lending.BookSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uuid.UUID]lending.BookSummary, len(bookIDs))
	for _, id := range bookIDs {
		if book, ok := s.books[id]; ok {
			result[id] = book.Summary()
		}
	}

	return result, nil
}

/***** UserDirectory *****/

// PutUser registers a user summary, standing in for the identity collaborator.
func (s *Store) PutUser(user lending.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
}

// SaveUser is PutUser with the signature of the postgres engine.
func (s *Store) SaveUser(ctx context.Context, user lending.UserSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := lending.ParseRole(string(user.Role)); err != nil {
		return err
	}

	s.PutUser(user)

	return nil
}

// UsersByIDs returns the summaries of the users that exist.
func (s *Store) UsersByIDs(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]lending.UserSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uuid.UUID]lending.UserSummary, len(userIDs))
	for _, id := range userIDs {
		if user, ok := s.users[id]; ok {
			result[id] = user
		}
	}

	return result, nil
}

/***** LoanLedger *****/

// GetBorrow loads a borrow record or returns lending.ErrBorrowNotFound.
func (s *Store) GetBorrow(ctx context.Context, borrowID uuid.UUID) (lending.Borrow, error) {
	if err := ctx.Err(); err != nil {
		return lending.Borrow{}, err
	}

	borrow, ok := s.loadBorrow(borrowID)
	if !ok {
		return lending.Borrow{}, lending.ErrBorrowNotFound
	}

	return borrow, nil
}

// LendCopy takes one available copy and records the borrow while holding the book's lock.
func (s *Store) LendCopy(ctx context.Context, borrow lending.Borrow) (lending.Borrow, error) {
	if err := ctx.Err(); err != nil {
		return lending.Borrow{}, err
	}

	unlock := s.bookLocks.Lock(borrow.BookID)
	defer unlock()

	book, ok := s.loadBook(borrow.BookID)
	if !ok {
		return lending.Borrow{}, lending.ErrBookNotFound
	}

	if book.AvailableCopies <= 0 {
		return lending.Borrow{}, lending.ErrUnavailable
	}

	book.AvailableCopies--
	borrow.BorrowDate = lending.ToStoredTime(borrow.BorrowDate)
	borrow.DueDate = lending.ToStoredTime(borrow.DueDate)
	borrow.ReturnDate = nil
	borrow.Status = lending.StatusBorrowed

	s.mu.Lock()
	s.books[book.ID] = book
	s.borrows[borrow.ID] = borrow
	s.mu.Unlock()

	s.logOperation(logMsgCopyLent, logAttrBookID, book.ID.String(), logAttrAvailable, book.AvailableCopies)

	return borrow, nil
}

// SettleBorrow flips an open borrow to RETURNED and restores the book's counter.
// The book lock is taken before the borrow lock, like in LendCopy.
func (s *Store) SettleBorrow(ctx context.Context, borrowID uuid.UUID, returnedAt time.Time) (lending.Borrow, error) {
	if err := ctx.Err(); err != nil {
		return lending.Borrow{}, err
	}

	// BookID never changes, so it is safe to read it before locking.
	peek, ok := s.loadBorrow(borrowID)
	if !ok {
		return lending.Borrow{}, lending.ErrBorrowNotFound
	}

	unlockBook := s.bookLocks.Lock(peek.BookID)
	defer unlockBook()

	unlockBorrow := s.borrowLocks.Lock(borrowID)
	defer unlockBorrow()

	borrow, _ := s.loadBorrow(borrowID)
	if !borrow.Status.CanTransitionTo(lending.StatusReturned) {
		return lending.Borrow{}, lending.ErrAlreadyReturned
	}

	returnDate := lending.ToStoredTime(returnedAt)
	borrow.Status = lending.StatusReturned
	borrow.ReturnDate = &returnDate

	book, bookExists := s.loadBook(borrow.BookID)
	restored := bookExists && book.AvailableCopies < book.TotalCopies

	s.mu.Lock()
	s.borrows[borrow.ID] = borrow
	if restored {
		book.AvailableCopies++
		s.books[book.ID] = book
	}
	s.mu.Unlock()

	switch {
	case !bookExists:
		s.logWarn(logMsgBookGone, logAttrBorrowID, borrowID.String(), logAttrBookID, borrow.BookID.String())
	case !restored:
		s.logWarn(logMsgCounterAtTotal, logAttrBorrowID, borrowID.String(), logAttrBookID, borrow.BookID.String())
	default:
		s.logOperation(logMsgBorrowSettled, logAttrBorrowID, borrowID.String(), logAttrAvailable, book.AvailableCopies)
	}

	return copyBorrow(borrow), nil
}

// MarkOverdue transitions each BORROWED row due before now under that row's lock.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	candidates := make([]uuid.UUID, 0)

	s.mu.RLock()
	for id, borrow := range s.borrows {
		if borrow.Status == lending.StatusBorrowed && borrow.DueDate.Before(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	marked := 0
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return marked, err
		}

		if s.markOverdue(id, now) {
			marked++
		}
	}

	s.logOperation(logMsgOverdueMarked, logAttrRowsAffected, marked)

	return marked, nil
}

func (s *Store) markOverdue(borrowID uuid.UUID, now time.Time) bool {
	unlock := s.borrowLocks.Lock(borrowID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	borrow, ok := s.borrows[borrowID]
	if !ok || borrow.Status != lending.StatusBorrowed || !borrow.DueDate.Before(now) {
		return false
	}

	borrow.Status = lending.StatusOverdue
	s.borrows[borrowID] = borrow

	return true
}

// QueryBorrows lists the borrows matching the filter, newest BorrowDate first, ties broken by ID.
func (s *Store) QueryBorrows(ctx context.Context, filter lending.BorrowFilter) ([]lending.Borrow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]lending.Borrow, 0)

	s.mu.RLock()
	for _, borrow := range s.borrows {
		if filter.Matches(borrow) {
			result = append(result, copyBorrow(borrow))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b lending.Borrow) int {
		if c := b.BorrowDate.Compare(a.BorrowDate); c != 0 {
			return c
		}

		return bytes.Compare(a.ID[:], b.ID[:])
	})

	return result, nil
}

/***** helpers *****/

// countOpenBorrows must be called with the book's lock held, which serializes it with LendCopy and SettleBorrow.
func (s *Store) countOpenBorrows(bookID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := 0
	for _, borrow := range s.borrows {
		if borrow.BookID == bookID && borrow.Status.IsOpen() {
			open++
		}
	}

	return open
}

func (s *Store) loadBook(bookID uuid.UUID) (lending.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[bookID]

	return book, ok
}

func (s *Store) loadBorrow(borrowID uuid.UUID) (lending.Borrow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	borrow, ok := s.borrows[borrowID]

	return copyBorrow(borrow), ok
}

// copyBorrow detaches ReturnDate so callers cannot mutate stored rows.
func copyBorrow(b lending.Borrow) lending.Borrow {
	if b.ReturnDate != nil {
		returnDate := *b.ReturnDate
		b.ReturnDate = &returnDate
	}

	return b
}

func (s *Store) logOperation(action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}
}

func (s *Store) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
