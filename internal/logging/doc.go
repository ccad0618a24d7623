// Package logging assembles structured slog loggers and formatting helpers used
// across mintline.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code tags log lines with the
// run identifier, the current stage and a correlation ID.
package logging
