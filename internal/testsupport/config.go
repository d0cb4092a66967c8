// Package testsupport provides shared helpers for package tests: canned
// configurations backed by per-test temp directories and sized file writers.
package testsupport

import (
	"path/filepath"
	"testing"

	"squeeze/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp log directory per
// test. It applies any provided options on top of the defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithTargetCodec overrides the target codec on the test config.
func WithTargetCodec(codec string) ConfigOption {
	return func(c *config.Config) {
		c.Transcode.TargetCodec = codec
	}
}

// WithContainerExt overrides the published container extension.
func WithContainerExt(ext string) ConfigOption {
	return func(c *config.Config) {
		c.Transcode.ContainerExt = ext
	}
}
