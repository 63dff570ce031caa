// Package protocol implements the line-oriented client/daemon command
// protocol: one newline-terminated command in, one JSON (or status) line out.
package protocol
