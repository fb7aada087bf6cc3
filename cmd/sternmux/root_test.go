package main

import (
	"strings"
	"testing"
)

func TestFlagOverridesConfigDefaults(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"-c", "prod,staging", "-a", "--since", "10m", "-q"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadGatherConfig(cmd, []string{"nginx"}, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Gather.Contexts) != 2 || cfg.Gather.Contexts[0] != "prod" {
		t.Fatalf("contexts override lost: %v", cfg.Gather.Contexts)
	}
	if !cfg.Gather.AllAtOnce || !cfg.Gather.Quiet {
		t.Fatalf("bool overrides lost: %+v", cfg.Gather)
	}
	if cfg.Gather.Since != "10m" {
		t.Fatalf("since override lost: %q", cfg.Gather.Since)
	}
	if len(cfg.Gather.PodQuery) != 1 || cfg.Gather.PodQuery[0] != "nginx" {
		t.Fatalf("pod query lost: %v", cfg.Gather.PodQuery)
	}
}

func TestDefaultsSurviveWithoutFlags(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadGatherConfig(cmd, nil, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if !cfg.Gather.FixUpMessages || !cfg.Gather.SpaceAfterMessage || !cfg.Gather.SternDefaults {
		t.Fatalf("defaults lost: %+v", cfg.Gather)
	}
	if cfg.Gather.Since != "1h" {
		t.Fatalf("default since lost: %q", cfg.Gather.Since)
	}
}

func TestSavePathImpliesSave(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"-o", "out.txt"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadGatherConfig(cmd, nil, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Gather.Save || cfg.Gather.SavePath != "out.txt" {
		t.Fatalf("save path did not imply save: %+v", cfg.Gather)
	}
}

func TestIncludeContainerAllDisablesFilter(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"-i", "all"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadGatherConfig(cmd, nil, "")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Gather.IncludeContainers) != 0 {
		t.Fatalf("\"all\" must disable filtering: %v", cfg.Gather.IncludeContainers)
	}
}

func TestInvalidSinceRejected(t *testing.T) {
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"--since", "yesterday"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	if _, err := loadGatherConfig(cmd, nil, ""); err == nil {
		t.Fatal("expected validation error for bad since value")
	}
}

func TestRenderRowsPlainOutput(t *testing.T) {
	var buf strings.Builder
	renderRows(&buf, []string{"Name", "Value"}, [][]string{{"a", "1"}, {"b", "2"}})

	out := buf.String()
	for _, want := range []string{"Name", "a", "b", "2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}
