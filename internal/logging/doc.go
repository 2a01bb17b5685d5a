// Package logging assembles the slog loggers used by the imgcompare binary
// and HTTP server.
//
// It owns the console/JSON handler choice, level parsing, and optional
// rotated file output, and provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
