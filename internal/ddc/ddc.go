package ddc

import "context"

// FeatureBrightness is VCP feature 0x10, display luminance.
const FeatureBrightness byte = 0x10

// Display is one physical monitor's DDC/CI control channel.
//
// Implementations are not safe for concurrent use; callers must serialize
// access to each display themselves.
type Display interface {
	// ID identifies the display for logs and listings (e.g. the i2c bus path).
	ID() string
	// Model returns the monitor model name when known, otherwise "".
	Model() string
	// ReadVCP reads the current value of a VCP feature.
	ReadVCP(code byte) (uint16, error)
	// WriteVCP sets a VCP feature to the given value.
	WriteVCP(code byte, value uint16) error
	Close() error
}

// Backend enumerates DDC/CI-capable displays.
type Backend interface {
	Enumerate(ctx context.Context) ([]Display, error)
}
