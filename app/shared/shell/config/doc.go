// Package config wires the lending application to its environment: settings from environment variables,
// PostgreSQL connection pools for the three supported drivers, OpenTelemetry providers, and the slog logger.
//
// This package is part of the shell (infrastructure) layer.
package config
