package deps

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
}

func TestVerifyReportsMissingBinary(t *testing.T) {
	err := Verify([]Requirement{{Name: "stern", Command: "clearly-not-present-binary", Description: "log tailing"}})
	if !errors.Is(err, ErrMissingBinary) {
		t.Fatalf("expected ErrMissingBinary, got %v", err)
	}
}

func TestVerifyStatusesUsesComputedResults(t *testing.T) {
	statuses := []Status{
		{Name: "kubectl", Available: true},
		{Name: "stern", Detail: `binary "stern" not found in PATH`, Description: "log tailing"},
	}
	err := VerifyStatuses(statuses)
	if !errors.Is(err, ErrMissingBinary) {
		t.Fatalf("expected ErrMissingBinary, got %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "log tailing") {
		t.Fatalf("description missing from error: %v", err)
	}

	if err := VerifyStatuses([]Status{{Name: "ok", Available: true}}); err != nil {
		t.Fatalf("all-available statuses must verify: %v", err)
	}
}

func TestVerifyPassesWhenAllPresent(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "stub")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if err := Verify([]Requirement{{Name: "stub", Command: stub}}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
