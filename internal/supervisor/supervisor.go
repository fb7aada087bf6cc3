// Package supervisor owns the set of spawned log-tailing processes.
//
// It starts one process per selected context according to the configured
// concurrency policy, feeds each process's output into the shared
// multiplexer, and isolates per-context failures: one context failing to
// spawn or exiting non-zero never takes down its siblings. Termination is
// graceful (SIGTERM, bounded wait, SIGKILL through the command's WaitDelay).
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sternmux/internal/mux"
)

// Failure records one context's spawn or exit error for the final summary.
type Failure struct {
	Context string
	Err     error
}

// Supervisor starts and tracks the context stream processes.
type Supervisor struct {
	logger *slog.Logger
	grace  time.Duration

	mu      sync.Mutex
	handles []*Handle
}

// New constructs a Supervisor. grace bounds the SIGTERM to SIGKILL window
// during shutdown.
func New(logger *slog.Logger, grace time.Duration) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Supervisor{logger: logger, grace: grace}
}

// Run spawns one process per spec and blocks until every one has exited and
// published all of its output. With allAtOnce every process runs
// concurrently; otherwise contexts are processed strictly one at a time.
// The multiplexer is sealed before returning, so the consumer's Next will
// report end of streams once the intake drains. The returned failures cover
// only contexts that failed; an empty slice means a fully clean run.
func (s *Supervisor) Run(ctx context.Context, specs []Spec, allAtOnce bool, m *mux.Multiplexer) []Failure {
	defer m.Seal()

	if allAtOnce {
		return s.runConcurrent(ctx, specs, m)
	}
	return s.runSequential(ctx, specs, m)
}

func (s *Supervisor) runConcurrent(ctx context.Context, specs []Spec, m *mux.Multiplexer) []Failure {
	started := make([]*Handle, 0, len(specs))
	var failures []Failure

	for _, spec := range specs {
		handle, err := s.launch(ctx, spec, m)
		if err != nil {
			failures = append(failures, Failure{Context: spec.Context, Err: err})
			continue
		}
		started = append(started, handle)
	}

	for _, handle := range started {
		if failure, failed := s.collect(ctx, handle); failed {
			failures = append(failures, failure)
		}
	}
	return failures
}

func (s *Supervisor) runSequential(ctx context.Context, specs []Spec, m *mux.Multiplexer) []Failure {
	var failures []Failure
	for _, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		handle, err := s.launch(ctx, spec, m)
		if err != nil {
			failures = append(failures, Failure{Context: spec.Context, Err: err})
			continue
		}
		if failure, failed := s.collect(ctx, handle); failed {
			failures = append(failures, failure)
		}
	}
	return failures
}

// launch attaches a source, spawns the process, and registers the handle.
func (s *Supervisor) launch(ctx context.Context, spec Spec, m *mux.Multiplexer) (*Handle, error) {
	s.logger.Info("starting log stream",
		"context", spec.Context,
		"command", spec.Binary+" "+strings.Join(spec.Args, " "))

	handle := &Handle{contextName: spec.Context, done: make(chan struct{})}
	src := m.Attach()
	if err := handle.start(ctx, spec, src, s.grace); err != nil {
		src.Close()
		s.logger.Error("log stream failed to start", "context", spec.Context, "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.handles = append(s.handles, handle)
	s.mu.Unlock()
	return handle, nil
}

// collect waits for a handle and converts its outcome into a Failure when
// warranted. Exits caused by run cancellation are not failures.
func (s *Supervisor) collect(ctx context.Context, handle *Handle) (Failure, bool) {
	handle.wait()

	err := handle.Err()
	if err == nil {
		s.logger.Debug("log stream finished", "context", handle.Context())
		return Failure{}, false
	}
	if ctx.Err() != nil {
		// Terminated as part of shutdown.
		return Failure{}, false
	}
	s.logger.Warn("log stream exited with error",
		"context", handle.Context(),
		"exit_code", handle.ExitCode(),
		"error", err)
	return Failure{
		Context: handle.Context(),
		Err:     fmt.Errorf("exit code %d: %w", handle.ExitCode(), err),
	}, true
}

// TerminateAll sends a graceful stop signal to every still-running process.
// The SIGKILL fallback after the grace period is enforced per handle.
func (s *Supervisor) TerminateAll() {
	s.mu.Lock()
	handles := make([]*Handle, len(s.handles))
	copy(handles, s.handles)
	s.mu.Unlock()

	for _, handle := range handles {
		handle.Terminate()
	}
}
