package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBrightness(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBrightness() error {
	if c.Brightness.ReadCooldownMillis < 0 {
		return errors.New("brightness.read_cooldown_ms must not be negative")
	}
	if c.Brightness.WriteCooldownMillis < 0 {
		return errors.New("brightness.write_cooldown_ms must not be negative")
	}
	if c.Brightness.WriteCooldownMillis < c.Brightness.ReadCooldownMillis {
		return errors.New("brightness.write_cooldown_ms must be at least brightness.read_cooldown_ms")
	}
	if c.Brightness.DefaultStep < 1 || c.Brightness.DefaultStep > 100 {
		return fmt.Errorf("brightness.default_step must be between 1 and 100, got %d", c.Brightness.DefaultStep)
	}
	if c.Brightness.DefaultSet < 0 || c.Brightness.DefaultSet > 100 {
		return fmt.Errorf("brightness.default_set must be between 0 and 100, got %d", c.Brightness.DefaultSet)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.Enabled && c.History.MaxEntries < 1 {
		return errors.New("history.max_entries must be positive when history is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
