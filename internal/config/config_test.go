package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize defaults: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if !cfg.Gather.FixUpMessages || !cfg.Gather.SpaceAfterMessage {
		t.Fatalf("fix-up and trailing space default on: %#v", cfg.Gather)
	}
	if cfg.Gather.AllAtOnce || cfg.Gather.Follow || cfg.Gather.Quiet {
		t.Fatalf("concurrency and follow default off: %#v", cfg.Gather)
	}
	if cfg.Gather.Since != "1h" {
		t.Fatalf("since default: %q", cfg.Gather.Since)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[gather]
contexts = ["prod", "staging"]
all_at_once = true
since = "15m"
include_containers = ["app, sidecar"]

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Gather.Contexts) != 2 || cfg.Gather.Contexts[0] != "prod" {
		t.Fatalf("contexts not loaded: %#v", cfg.Gather.Contexts)
	}
	if !cfg.Gather.AllAtOnce {
		t.Fatalf("all_at_once not loaded")
	}
	if cfg.Gather.Since != "15m" {
		t.Fatalf("since not loaded: %q", cfg.Gather.Since)
	}
	if len(cfg.Gather.IncludeContainers) != 2 || cfg.Gather.IncludeContainers[1] != "sidecar" {
		t.Fatalf("comma-separated containers not flattened: %#v", cfg.Gather.IncludeContainers)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level not loaded: %q", cfg.Logging.Level)
	}
}

func TestLoadMissingExplicitPathFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}

func TestNormalizeIncludeAllDisablesFilter(t *testing.T) {
	cfg := Default()
	cfg.Gather.IncludeContainers = []string{"app", "ALL"}
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Gather.IncludeContainers != nil {
		t.Fatalf("'all' must disable filtering: %#v", cfg.Gather.IncludeContainers)
	}
}

func TestValidateRejectsBadSince(t *testing.T) {
	cfg := Default()
	cfg.Gather.Since = "yesterday"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for invalid since duration")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unsupported log format")
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("sample config must load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config must validate: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatalf("expected refusal to overwrite existing config")
	}
}
