// Package config loads, normalizes, and validates the squeeze TOML
// configuration. Defaults cover every key so the tool runs without a config
// file; normalization expands ~ paths and lower-cases extension and codec
// names before validation.
package config
