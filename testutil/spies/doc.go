// Package spies provides test doubles that capture what the lending code reports
// through its dependency-free observability interfaces and through slog.
package spies
