package config

import (
	"fmt"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCompare(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCompare() error {
	params, err := c.Parameters()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	return nil
}

func (c *Config) validateProgress() error {
	if _, err := c.Ticker(); err != nil {
		return err
	}
	if c.Progress.Step <= 0 {
		return fmt.Errorf("progress.step must be positive, got %d", c.Progress.Step)
	}
	if c.Progress.Ceiling <= 0 || c.Progress.Ceiling >= 100 {
		return fmt.Errorf("progress.ceiling must be between 1 and 99, got %d", c.Progress.Ceiling)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return fmt.Errorf("server.bind is required")
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("server.body_limit_mb must be positive, got %d", c.Server.BodyLimitMB)
	}
	if d, err := time.ParseDuration(c.Server.RequestTimeout); err != nil || d <= 0 {
		return fmt.Errorf("server.request_timeout: invalid duration %q", c.Server.RequestTimeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if d, err := time.ParseDuration(c.Logging.MaxAge); err != nil || d <= 0 {
		return fmt.Errorf("logging.max_age: invalid duration %q", c.Logging.MaxAge)
	}
	return nil
}
