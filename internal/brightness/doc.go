// Package brightness orchestrates DDC/CI displays behind a cooldown cache.
//
// The manager is the single point of contention in the daemon: it serializes
// access to the cached brightness state while fanning hardware writes out to
// all displays in parallel.
package brightness
