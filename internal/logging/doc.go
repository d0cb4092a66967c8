// Package logging assembles the structured slog loggers used across squeeze.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes small attr helpers so components emit log lines with
// a consistent shape. A no-op logger is available for tests and wiring code
// that cannot fail.
package logging
