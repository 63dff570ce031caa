// Package history persists applied brightness changes in SQLite so the CLI
// can show what the daemon did and when.
package history
