// Package logging assembles structured slog loggers and formatting helpers used
// across ticketsync commands and worker pools.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code can automatically
// tag log lines with ticket IDs, stages, worker numbers, and correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every worker pool
// emits data with the same shape and routing as the rest of the system.
package logging
