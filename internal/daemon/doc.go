// Package daemon ties the brightness manager, IPC server, display hotplug
// monitor, and single-instance lock into the long-lived lux process.
package daemon
