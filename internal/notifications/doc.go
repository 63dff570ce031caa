// Package notifications surfaces applied brightness changes as desktop
// notifications over the session D-Bus.
package notifications
