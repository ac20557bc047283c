package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownload() error {
	d := c.Download
	if d.Workers < 1 || d.Workers > maxWorkers {
		return fmt.Errorf("download.workers must be between 1 and %d", maxWorkers)
	}
	if d.MinDelay < 0 || d.MaxDelay < 0 {
		return errors.New("download.min_delay and download.max_delay must not be negative")
	}
	if d.MaxDelay < d.MinDelay {
		return errors.New("download.max_delay must be greater than or equal to download.min_delay")
	}
	if d.TrackTimeout < 0 || d.TrackTimeout > maxTrackTimeoutHours*3600 {
		return fmt.Errorf("download.track_timeout must be between 0 and %d seconds", maxTrackTimeoutHours*3600)
	}
	if d.SettleDelay < 0 {
		return errors.New("download.settle_delay must not be negative")
	}
	return nil
}

func (c *Config) validateResolver() error {
	r := c.Resolver
	switch r.Backend {
	case "ytdlp", "youtube":
	default:
		return fmt.Errorf("resolver.backend must be ytdlp or youtube, got %q", r.Backend)
	}
	if r.Proxy != "" {
		u, err := url.Parse(r.Proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("resolver.proxy %q is not a valid proxy URL", r.Proxy)
		}
	}
	if r.HTTPTimeout < 0 {
		return errors.New("resolver.http_timeout must not be negative")
	}
	if r.HTTPRetries < 0 || r.HTTPRetries > maxHTTPRetries {
		return fmt.Errorf("resolver.http_retries must be between 0 and %d", maxHTTPRetries)
	}
	if r.RetryBackoff < 0 {
		return errors.New("resolver.retry_backoff must not be negative")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.Enabled && c.Catalog.Path == "" {
		return errors.New("catalog.path must be set when the catalog is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
