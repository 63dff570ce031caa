package testsupport

import (
	"path/filepath"
	"testing"

	"lux/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RuntimeDir = filepath.Join(base, "runtime")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Brightness.ReadCooldownMillis = 0
	cfg.Brightness.WriteCooldownMillis = 0
	cfg.History.Enabled = false
	cfg.Notifications.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithCooldowns sets the cache cooldowns in milliseconds.
func WithCooldowns(readMillis, writeMillis int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Brightness.ReadCooldownMillis = readMillis
		cfg.Brightness.WriteCooldownMillis = writeMillis
	}
}

// WithHistory enables the change log with the given retention cap.
func WithHistory(maxEntries int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.History.Enabled = true
		cfg.History.MaxEntries = maxEntries
	}
}
