// Package ddc provides DDC/CI access to monitor VCP features.
//
// The Backend interface abstracts display enumeration so tests can inject
// fakes; the shipped implementation speaks DDC/CI over Linux /dev/i2c-*
// device nodes.
package ddc
