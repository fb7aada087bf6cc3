package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable for a gather run.
func (c *Config) Validate() error {
	if err := c.validateGather(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateGather() error {
	if len(c.Gather.Contexts) == 0 {
		return errors.New("gather.contexts must name at least one context")
	}
	if _, err := time.ParseDuration(c.Gather.Since); err != nil {
		return fmt.Errorf("gather.since: not a duration like 5s, 2m, or 3h: %q", c.Gather.Since)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
