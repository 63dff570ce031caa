// Package logging wraps log/slog with the handlers and attribute helpers
// shared by the lux daemon and CLI.
package logging
