// Package logging builds slog loggers with console and JSON handlers plus the
// typed attribute helpers and field-name constants used across the pipeline.
package logging
