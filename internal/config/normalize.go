package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscode() {
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.Encoder = strings.TrimSpace(c.Transcode.Encoder)
	if c.Transcode.Encoder == "" {
		c.Transcode.Encoder = defaultEncoder
	}
	c.Transcode.Preset = strings.ToLower(strings.TrimSpace(c.Transcode.Preset))
	if c.Transcode.Preset == "" {
		c.Transcode.Preset = defaultPreset
	}
	if c.Transcode.CRF == 0 {
		c.Transcode.CRF = defaultCRF
	}
	c.Transcode.TargetCodec = strings.ToLower(strings.TrimSpace(c.Transcode.TargetCodec))
	if c.Transcode.TargetCodec == "" {
		c.Transcode.TargetCodec = defaultTargetCodec
	}
	c.Transcode.ContainerExt = normalizeExt(c.Transcode.ContainerExt)
	if c.Transcode.ContainerExt == "" {
		c.Transcode.ContainerExt = defaultContainerExt
	}
	if len(c.Transcode.Extensions) == 0 {
		c.Transcode.Extensions = defaultExtensions()
	} else {
		normalized := make([]string, 0, len(c.Transcode.Extensions))
		for _, ext := range c.Transcode.Extensions {
			if cleaned := normalizeExt(ext); cleaned != "" {
				normalized = append(normalized, cleaned)
			}
		}
		c.Transcode.Extensions = normalized
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
