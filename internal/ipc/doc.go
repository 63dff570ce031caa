// Package ipc provides the unix-socket transport between the lux CLI and
// daemon: one newline-terminated command per connection, one line back.
package ipc
