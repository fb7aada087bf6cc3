package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sternmux/internal/logging"
	"sternmux/internal/mux"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	logger, err := logging.New(logging.Options{Level: "error", Output: os.Stderr})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func drain(t *testing.T, m *mux.Multiplexer) []mux.RawLine {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var lines []mux.RawLine
	for {
		line, err := m.Next(ctx)
		if errors.Is(err, mux.ErrEndOfStreams) {
			return lines
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		lines = append(lines, line)
	}
}

func TestRunCollectsAllOutput(t *testing.T) {
	script := writeScript(t, "emit", "echo one\necho two\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	specs := []Spec{
		{Context: "a", Binary: script},
		{Context: "b", Binary: script},
	}

	failures := make(chan []Failure, 1)
	go func() { failures <- sup.Run(context.Background(), specs, true, m) }()

	lines := drain(t, m)
	if got := <-failures; len(got) != 0 {
		t.Fatalf("unexpected failures: %#v", got)
	}

	counts := map[string]int{}
	for _, line := range lines {
		counts[line.Context]++
	}
	if counts["a"] != 2 || counts["b"] != 2 {
		t.Fatalf("expected two lines per context, got %#v", counts)
	}
}

func TestFailureIsolation(t *testing.T) {
	good := writeScript(t, "good", "echo fine\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	specs := []Spec{
		{Context: "broken", Binary: filepath.Join(t.TempDir(), "does-not-exist")},
		{Context: "healthy", Binary: good},
	}

	failures := make(chan []Failure, 1)
	go func() { failures <- sup.Run(context.Background(), specs, true, m) }()

	lines := drain(t, m)
	got := <-failures
	if len(got) != 1 || got[0].Context != "broken" {
		t.Fatalf("expected single failure for broken context, got %#v", got)
	}
	if len(lines) != 1 || lines[0].Context != "healthy" || lines[0].Text != "fine" {
		t.Fatalf("healthy context output lost: %#v", lines)
	}
}

func TestNonZeroExitRecordedAsFailure(t *testing.T) {
	script := writeScript(t, "fail", "echo partial\nexit 3\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	failures := make(chan []Failure, 1)
	go func() {
		failures <- sup.Run(context.Background(), []Spec{{Context: "a", Binary: script}}, true, m)
	}()

	lines := drain(t, m)
	got := <-failures
	if len(got) != 1 {
		t.Fatalf("expected one failure, got %#v", got)
	}
	if len(lines) != 1 || lines[0].Text != "partial" {
		t.Fatalf("output before failure must still be delivered: %#v", lines)
	}
}

func TestStderrLinesAreTagged(t *testing.T) {
	script := writeScript(t, "mixed", "echo out\necho err >&2\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	failures := make(chan []Failure, 1)
	go func() {
		failures <- sup.Run(context.Background(), []Spec{{Context: "a", Binary: script}}, true, m)
	}()

	lines := drain(t, m)
	<-failures
	byText := map[string]bool{}
	for _, line := range lines {
		byText[line.Text] = line.Stderr
	}
	if stderr, ok := byText["err"]; !ok || !stderr {
		t.Fatalf("stderr line not tagged: %#v", lines)
	}
	if stderr, ok := byText["out"]; !ok || stderr {
		t.Fatalf("stdout line mis-tagged: %#v", lines)
	}
}

func TestAllAtOnceRunsConcurrently(t *testing.T) {
	script := writeScript(t, "slow", "sleep 0.5\necho done\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	specs := []Spec{
		{Context: "a", Binary: script},
		{Context: "b", Binary: script},
		{Context: "c", Binary: script},
	}

	start := time.Now()
	failures := make(chan []Failure, 1)
	go func() { failures <- sup.Run(context.Background(), specs, true, m) }()

	lines := drain(t, m)
	<-failures
	elapsed := time.Since(start)

	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	// Three parallel half-second sleeps should finish near the slowest
	// single one, well below the 1.5s a sequential run would need.
	if elapsed > 1200*time.Millisecond {
		t.Fatalf("all-at-once run took %v, expected roughly one sleep", elapsed)
	}
}

func TestSequentialRunsOneAtATime(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")
	// Each invocation fails the run if another instance is mid-flight.
	script := writeScript(t, "exclusive",
		"if [ -e "+marker+" ]; then echo OVERLAP; exit 1; fi\n"+
			"touch "+marker+"\nsleep 0.1\nrm -f "+marker+"\necho ok\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	specs := []Spec{
		{Context: "a", Binary: script},
		{Context: "b", Binary: script},
	}

	failures := make(chan []Failure, 1)
	go func() { failures <- sup.Run(context.Background(), specs, false, m) }()

	lines := drain(t, m)
	if got := <-failures; len(got) != 0 {
		t.Fatalf("sequential run must not overlap: %#v", got)
	}
	for _, line := range lines {
		if line.Text == "OVERLAP" {
			t.Fatalf("contexts overlapped in sequential mode")
		}
	}
}

func TestCancellationTerminatesFollowStreams(t *testing.T) {
	script := writeScript(t, "follow", "while true; do echo tick; sleep 0.05; done\n")
	m := mux.New(64)
	sup := New(testLogger(t), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	failures := make(chan []Failure, 1)
	go func() {
		failures <- sup.Run(ctx, []Spec{{Context: "a", Binary: script}}, true, m)
	}()

	// Read one line to prove the stream is live, then interrupt.
	first, err := m.Next(context.Background())
	if err != nil || first.Text != "tick" {
		t.Fatalf("expected live tick, got %q err=%v", first.Text, err)
	}
	cancel()

	select {
	case got := <-failures:
		if len(got) != 0 {
			t.Fatalf("shutdown must not count as failure: %#v", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("supervisor did not terminate follow stream")
	}

	// Remaining buffered output drains, then the stream set ends.
	deadline, cancelDrain := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelDrain()
	for {
		_, err := m.Next(deadline)
		if errors.Is(err, mux.ErrEndOfStreams) {
			break
		}
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
	}
}
