// Package logging constructs the slog loggers used across jellyhook.
//
// Two output formats exist: a human console format for interactive use
// (colorized when stdout is a terminal) and JSON for log collectors.
// Standardized field keys keep consumer, orchestrator, and job logs
// correlatable.
package logging
