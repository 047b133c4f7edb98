package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const defaultTokenTTL = 24 * time.Hour

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func newFlagSet(name string, app *application) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.errOut)

	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Join(errUsage, err)
	}

	return nil
}

func parseID(name, value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, fmt.Errorf("%w: -%s is required", errUsage, name)
	}

	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: -%s: %w", errUsage, name, err)
	}

	return id, nil
}

// userIDOrCaller falls back to the caller's own id when -user is not given.
func userIDOrCaller(ctx context.Context, value string) (uuid.UUID, error) {
	if value != "" {
		return parseID("user", value)
	}

	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	return caller.UserID, nil
}

func runSchema(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("schema", app)
	printOnly := fs.Bool("print", false, "print the DDL instead of executing it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if app.postgres == nil {
		return fmt.Errorf("%w: schema needs the postgres engine", errUsage)
	}

	if *printOnly {
		_, err := fmt.Fprintln(app.out, app.postgres.SchemaSQL())
		return err
	}

	if err := app.postgres.EnsureSchema(ctx); err != nil {
		return err
	}

	return writeJSON(app.out, map[string]any{"tables": app.postgres.TableNames()})
}

func runAddBook(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("add-book", app)
	id := fs.String("id", "", "id of an existing book to update")
	title := fs.String("title", "", "title")
	author := fs.String("author", "", "author")
	isbn := fs.String("isbn", "", "ISBN")
	year := fs.Int("year", 0, "publication year")
	copies := fs.Int("copies", 1, "total number of copies")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	book := lending.Book{Title: *title, Author: *author, ISBN: *isbn, Year: *year, TotalCopies: *copies}
	if *id != "" {
		bookID, err := parseID("id", *id)
		if err != nil {
			return err
		}
		book.ID = bookID
	}

	saved, err := app.service.AddBook(ctx, book)
	if err != nil {
		return err
	}

	return writeJSON(app.out, saved)
}

func runRemoveBook(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("remove-book", app)
	id := fs.String("book", "", "id of the book")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	bookID, err := parseID("book", *id)
	if err != nil {
		return err
	}

	if err = app.service.RemoveBook(ctx, bookID); err != nil {
		return err
	}

	return writeJSON(app.out, map[string]any{"removed": bookID})
}

func runAddUser(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("add-user", app)
	id := fs.String("id", "", "user id (generated when empty)")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", string(lending.RoleUser), "ADMIN or USER")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	caller, err := lending.CallerFrom(ctx)
	if err != nil {
		return err
	}
	if err = caller.RequireAdmin(); err != nil {
		return err
	}

	user := lending.UserSummary{ID: uuid.New(), Name: *name, Email: *email}
	if *id != "" {
		if user.ID, err = parseID("id", *id); err != nil {
			return err
		}
	}

	if user.Role, err = lending.ParseRole(strings.ToUpper(*role)); err != nil {
		return errors.Join(errUsage, err)
	}

	registry, ok := app.store.(userRegistry)
	if !ok {
		return fmt.Errorf("%w: the engine does not manage users", errUsage)
	}

	if err = registry.SaveUser(ctx, user); err != nil {
		return err
	}

	return writeJSON(app.out, user)
}

func runSearch(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("search", app)
	term := fs.String("q", "", "term matched against title and author")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	books, err := app.service.SearchBooks(ctx, *term)
	if err != nil {
		return err
	}

	return writeJSON(app.out, books)
}

func runBorrow(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("borrow", app)
	book := fs.String("book", "", "id of the book")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	bookID, err := parseID("book", *book)
	if err != nil {
		return err
	}

	result, err := app.service.Borrow(ctx, bookID)
	if err != nil {
		return err
	}

	return writeJSON(app.out, result)
}

func runReturn(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("return", app)
	borrow := fs.String("borrow", "", "id of the borrow record")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	borrowID, err := parseID("borrow", *borrow)
	if err != nil {
		return err
	}

	result, err := app.service.Return(ctx, borrowID)
	if err != nil {
		return err
	}

	return writeJSON(app.out, result)
}

func runMyCurrent(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("my-current", app)
	user := fs.String("user", "", "user id (defaults to the caller)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	userID, err := userIDOrCaller(ctx, *user)
	if err != nil {
		return err
	}

	loans, err := app.service.ListMyCurrent(ctx, userID)
	if err != nil {
		return err
	}

	return writeJSON(app.out, loans)
}

func runMyHistory(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("my-history", app)
	user := fs.String("user", "", "user id (defaults to the caller)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	userID, err := userIDOrCaller(ctx, *user)
	if err != nil {
		return err
	}

	loans, err := app.service.ListMyHistory(ctx, userID)
	if err != nil {
		return err
	}

	return writeJSON(app.out, loans)
}

func runAll(ctx context.Context, app *application, args []string) error {
	if err := parseFlags(newFlagSet("all", app), args); err != nil {
		return err
	}

	loans, err := app.service.ListAll(ctx)
	if err != nil {
		return err
	}

	return writeJSON(app.out, loans)
}

func runOverdue(ctx context.Context, app *application, args []string) error {
	if err := parseFlags(newFlagSet("overdue", app), args); err != nil {
		return err
	}

	loans, err := app.service.ListOverdue(ctx)
	if err != nil {
		return err
	}

	return writeJSON(app.out, loans)
}

// runSweep marks overdue loans once on behalf of the admin caller.
// With -every it runs the scheduler as the system caller until interrupted.
func runSweep(ctx context.Context, app *application, args []string) error {
	fs := newFlagSet("sweep", app)
	every := fs.Duration("every", 0, "sweep periodically at this interval instead of once")
	scheduled := fs.Bool("scheduled", false, "sweep periodically at LENDING_SWEEP_INTERVAL")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	interval := *every
	if interval == 0 && *scheduled {
		interval = app.cfg.SweepInterval
	}

	if interval == 0 {
		marked, err := app.service.SweepOverdue(ctx)
		if err != nil {
			return err
		}

		return writeJSON(app.out, map[string]int{"marked": marked})
	}

	scheduler, err := app.service.NewSweepScheduler(interval)
	if err != nil {
		return errors.Join(errUsage, err)
	}

	return scheduler.Run(ctx)
}

func runIssueToken(_ context.Context, app *application, args []string) error {
	fs := newFlagSet("issue-token", app)
	user := fs.String("user", "", "user id the token identifies")
	role := fs.String("role", string(lending.RoleUser), "ADMIN or USER")
	ttl := fs.Duration("ttl", defaultTokenTTL, "token lifetime")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	userID, err := parseID("user", *user)
	if err != nil {
		return err
	}

	parsedRole, err := lending.ParseRole(strings.ToUpper(*role))
	if err != nil {
		return errors.Join(errUsage, err)
	}

	verifier, err := app.verifier()
	if err != nil {
		return err
	}

	token, err := verifier.Issue(lending.Caller{UserID: userID, Role: parsedRole}, *ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(app.out, token)

	return err
}
