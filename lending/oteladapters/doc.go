// Package oteladapters provides OpenTelemetry implementations of the lending observability interfaces.
//
// Pass them to the postgres store with postgresengine.WithMetrics, WithTracing, and WithContextualLogger,
// or to the application handlers through the same interfaces.
package oteladapters
