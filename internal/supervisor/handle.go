package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"sternmux/internal/mux"
)

// State tracks one context stream's lifecycle.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateExited
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Spec names the process to spawn for one context.
type Spec struct {
	Context string
	Binary  string
	Args    []string
}

// Handle wraps one spawned log-tailing process: its pipes, lifecycle state,
// and termination control. Handles never share mutable state with each
// other.
type Handle struct {
	contextName string
	done        chan struct{}

	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	exitCode int
	err      error
}

// Context returns the context name this handle streams for.
func (h *Handle) Context() string {
	return h.contextName
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ExitCode is meaningful once State is StateExited.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Err returns the spawn or wait error for failed handles.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Terminate sends SIGTERM to the process when it is still running. The
// bounded SIGKILL fallback is wired through the command's WaitDelay.
func (h *Handle) Terminate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateRunning || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	_ = h.cmd.Process.Signal(unix.SIGTERM)
}

// start spawns the process and begins feeding its output into the source.
// Lines from stdout and stderr preserve their own order; stderr lines are
// tagged so downstream can tell stern's own chatter from log payload.
func (h *Handle) start(ctx context.Context, spec Spec, src *mux.Source, grace time.Duration) error {
	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(unix.SIGTERM)
	}
	cmd.WaitDelay = grace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.fail(fmt.Errorf("stdout pipe: %w", err))
		return h.Err()
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		h.fail(fmt.Errorf("stderr pipe: %w", err))
		return h.Err()
	}

	if err := cmd.Start(); err != nil {
		h.fail(fmt.Errorf("start %s: %w", spec.Binary, err))
		return h.Err()
	}

	h.mu.Lock()
	h.cmd = cmd
	h.state = StateRunning
	h.mu.Unlock()

	// Publishing survives run cancellation so lines already buffered in the
	// pipes reach the drain phase instead of being dropped mid-stream.
	publishCtx := context.WithoutCancel(ctx)

	var scanners sync.WaitGroup
	scanners.Add(2)
	scan := func(r io.Reader, stderrStream bool) {
		defer scanners.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := mux.RawLine{Context: h.contextName, Text: scanner.Text(), Stderr: stderrStream}
			if err := src.Publish(publishCtx, line); err != nil {
				return
			}
		}
	}
	go scan(stdout, false)
	go scan(stderr, true)

	go func() {
		waitErr := cmd.Wait()
		scanners.Wait()
		src.Close()
		h.finish(waitErr, cmd.ProcessState.ExitCode())
	}()
	return nil
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.state = StateFailed
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) finish(waitErr error, exitCode int) {
	h.mu.Lock()
	h.state = StateExited
	h.exitCode = exitCode
	h.err = waitErr
	h.mu.Unlock()
	close(h.done)
}

// wait blocks until the process has exited and its output is fully
// published.
func (h *Handle) wait() {
	<-h.done
}
