package config

import (
	"fmt"
	"strings"
)

// Normalize canonicalizes the configuration after flag overrides have been
// applied: comma flattening, "all" expansion, path expansion, defaults for
// blank values. Idempotent.
func (c *Config) Normalize() error {
	return c.normalize()
}

func (c *Config) normalize() error {
	if err := c.normalizeGather(); err != nil {
		return err
	}
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeGather() error {
	c.Gather.Contexts = splitTrimmed(c.Gather.Contexts)
	if len(c.Gather.Contexts) == 0 {
		c.Gather.Contexts = []string{defaultContext}
	}

	c.Gather.IncludeContainers = splitTrimmed(c.Gather.IncludeContainers)
	// "all" disables container filtering entirely.
	for _, name := range c.Gather.IncludeContainers {
		if strings.EqualFold(name, "all") {
			c.Gather.IncludeContainers = nil
			break
		}
	}

	c.Gather.Since = strings.TrimSpace(c.Gather.Since)
	if c.Gather.Since == "" {
		c.Gather.Since = defaultSince
	}

	var err error
	if c.Gather.WorkDir, err = expandPath(c.Gather.WorkDir); err != nil {
		return fmt.Errorf("gather.work_dir: %w", err)
	}
	if c.Gather.SavePath, err = expandPath(c.Gather.SavePath); err != nil {
		return fmt.Errorf("gather.save_path: %w", err)
	}

	if c.Gather.TerminateGraceSeconds <= 0 {
		c.Gather.TerminateGraceSeconds = defaultTerminateGraceS
	}
	return nil
}

func (c *Config) normalizeHistory() error {
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	if c.History.Path == "" {
		if c.History.Path, err = expandPath(defaultHistoryPath); err != nil {
			return fmt.Errorf("history.path: %w", err)
		}
	}
	return nil
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

// splitTrimmed flattens comma-separated entries, trims whitespace, and drops
// empties, so "-c a,b" and "-c a -c b" behave identically.
func splitTrimmed(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
