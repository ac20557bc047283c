package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(envProxy); ok && strings.TrimSpace(value) != "" {
		c.Resolver.Proxy = strings.TrimSpace(value)
	}
}

// Normalize trims and canonicalizes values and expands paths. Callers that
// override fields after Load should run Normalize and Validate again.
func (c *Config) Normalize() error {
	var err error

	c.Download.OutputDir = strings.TrimSpace(c.Download.OutputDir)
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = defaultOutputDir
	}
	if c.Download.OutputDir, err = expandHome(c.Download.OutputDir); err != nil {
		return fmt.Errorf("download.output_dir: %w", err)
	}

	c.Resolver.Backend = strings.ToLower(strings.TrimSpace(c.Resolver.Backend))
	if c.Resolver.Backend == "" {
		c.Resolver.Backend = defaultBackend
	}
	c.Resolver.Binary = strings.TrimSpace(c.Resolver.Binary)
	if c.Resolver.Binary == "" {
		c.Resolver.Binary = defaultBinary
	}
	c.Resolver.Proxy = strings.TrimSpace(c.Resolver.Proxy)
	c.Resolver.AudioFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Resolver.AudioFormat)), ".")
	if c.Resolver.AudioFormat == "" {
		c.Resolver.AudioFormat = defaultAudioFormat
	}
	c.Resolver.AudioQuality = strings.TrimSpace(c.Resolver.AudioQuality)
	if c.Resolver.AudioQuality == "" {
		c.Resolver.AudioQuality = defaultAudioQuality
	}

	if c.Catalog.Path, err = expandPath(strings.TrimSpace(c.Catalog.Path)); err != nil {
		return fmt.Errorf("catalog.path: %w", err)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
