// Package main provides lendingctl, a command line client for the library lending service.
// Callers are identified by a bearer token (-token or LENDING_TOKEN) signed with LENDING_JWT_SECRET.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	serviceVersion = "1.0.0"

	envToken = "LENDING_TOKEN"

	engineMemory   = "memory"
	enginePostgres = "postgres"
	engineNone     = "none"
)

// Exit codes for business outcomes, so scripts can branch without parsing output.
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitNotFound
	exitUnavailable
	exitAlreadyReturned
	exitForbidden
)

var errUsage = errors.New("usage error")

type subcommand struct {
	summary   string
	run       func(ctx context.Context, app *application, args []string) error
	skipStore bool
}

var subcommands = map[string]subcommand{
	"schema":      {"create the tables or print their DDL (-print)", runSchema},
	"add-book":    {"add or update a catalog book (admin)", runAddBook},
	"remove-book": {"remove a catalog book (admin)", runRemoveBook},
	"add-user":    {"register a user summary in the directory (admin)", runAddUser},
	"search":      {"search the catalog by title or author", runSearch},
	"borrow":      {"borrow one copy of a book", runBorrow},
	"return":      {"return a borrowed copy", runReturn},
	"my-current":  {"list the open loans of a user", runMyCurrent},
	"my-history":  {"list all loans of a user", runMyHistory},
	"all":         {"list all loans (admin)", runAll},
	"overdue":     {"sweep and list overdue loans (admin)", runOverdue},
	"sweep":       {"mark overdue loans once, or periodically with -every (admin)", runSweep},
	"issue-token": {"sign a caller token with LENDING_JWT_SECRET", runIssueToken, true},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("lendingctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { printUsage(global, stderr) }

	engine := global.String("engine", "", "storage engine: postgres (default, needs LENDING_DATABASE_URL) or memory "+
		"(an empty store that lives for a single invocation, for trying out one command)")
	token := global.String("token", getenv(envToken), "bearer token of the caller")

	if err := global.Parse(args); err != nil {
		return exitUsage
	}

	if global.NArg() == 0 {
		global.Usage()
		return exitUsage
	}

	name := global.Arg(0)
	cmd, ok := subcommands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "lendingctl: unknown command %q\n", name)
		global.Usage()
		return exitUsage
	}

	storeEngine := *engine
	if cmd.skipStore {
		storeEngine = engineNone
	}

	app, err := newApplication(ctx, getenv, storeEngine, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lendingctl: %v\n", err)
		return exitCode(err)
	}
	defer app.Close()

	ctx, err = app.identify(ctx, *token)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "lendingctl: %v\n", err)
		return exitCode(err)
	}

	if err = cmd.run(ctx, app, global.Args()[1:]); err != nil {
		_, _ = fmt.Fprintf(stderr, "lendingctl %s: %v\n", name, err)
		return exitCode(err)
	}

	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	case errors.Is(err, lending.ErrNotFound):
		return exitNotFound
	case errors.Is(err, lending.ErrUnavailable):
		return exitUnavailable
	case errors.Is(err, lending.ErrAlreadyReturned):
		return exitAlreadyReturned
	case errors.Is(err, lending.ErrForbidden):
		return exitForbidden
	default:
		return exitFailure
	}
}

func printUsage(global *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, "Usage: lendingctl [flags] <command> [command flags]\n\nCommands:\n")

	names := make([]string, 0, len(subcommands))
	for name := range subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		_, _ = fmt.Fprintf(w, "  %-12s %s\n", name, subcommands[name].summary)
	}

	_, _ = fmt.Fprintf(w, "\nState only persists with the postgres engine. With -engine=memory every invocation\n"+
		"starts from an empty store, so loans made by one call are gone in the next.\n")
	_, _ = fmt.Fprintf(w, "\nFlags:\n")
	global.PrintDefaults()
}
