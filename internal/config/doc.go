// Package config loads, validates, and normalizes the lux TOML configuration.
package config
