// Package gather orchestrates a log-gathering run end to end.
//
// A run verifies the external tools, resolves the target contexts, spawns
// one stern process per context under the supervisor, and consumes the
// merged stream: classify, format, count, write. Cancellation drains what
// the processes already produced before the run ends.
package gather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"sternmux/internal/classify"
	"sternmux/internal/config"
	"sternmux/internal/deps"
	"sternmux/internal/format"
	"sternmux/internal/history"
	"sternmux/internal/kubectl"
	"sternmux/internal/mux"
	"sternmux/internal/sink"
	"sternmux/internal/stats"
	"sternmux/internal/stern"
	"sternmux/internal/supervisor"
)

// ErrAllContextsFailed means no context produced a usable stream.
var ErrAllContextsFailed = errors.New("all contexts failed")

// ErrPartialFailure means at least one context failed while others
// completed. Callers map this to the partial-failure exit status.
var ErrPartialFailure = errors.New("some contexts failed")

// ErrNoContexts means context discovery found nothing to stream from.
var ErrNoContexts = errors.New("no kubectl contexts configured")

// Intake buffer between the stream processes and the consumer loop. Bounded
// so a stalled consumer applies backpressure instead of growing without
// limit.
const intakeBuffer = 1024

// Options wires a Runner to its collaborators.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Stdout receives formatted lines and notices, usually os.Stdout.
	Stdout io.Writer

	// CommandLine is the invocation rendered for the banner and history.
	CommandLine string

	// Kube discovers contexts when the config asks for "all".
	Kube *kubectl.Client

	// History is optional; nil disables run recording.
	History *history.Store
}

// Runner executes one gathering run.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	stdout  io.Writer
	cmdLine string
	kube    *kubectl.Client
	hist    *history.Store

	counters stats.Counters
}

// New constructs a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	kube := opts.Kube
	if kube == nil {
		kube = kubectl.New()
	}
	return &Runner{
		cfg:     opts.Config,
		logger:  logger,
		stdout:  stdout,
		cmdLine: opts.CommandLine,
		kube:    kube,
		hist:    opts.History,
	}
}

// Run performs the gathering run and blocks until all streams end or ctx is
// cancelled. A cancelled run still drains buffered output and returns nil;
// context failures surface as ErrPartialFailure or ErrAllContextsFailed.
func (r *Runner) Run(ctx context.Context) error {
	if err := deps.Verify(deps.Default()); err != nil {
		return err
	}

	contexts, err := r.resolveContexts(ctx)
	if err != nil {
		return err
	}

	if dir := r.cfg.Gather.WorkDir; dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return err
		}
		if err := os.Chdir(expanded); err != nil {
			return fmt.Errorf("change to work directory: %w", err)
		}
	}

	out, saveErr := sink.Open(sink.Options{
		Stdout:      r.stdout,
		Quiet:       r.cfg.Gather.Quiet,
		Save:        r.cfg.Gather.Save,
		SavePath:    r.cfg.Gather.SavePath,
		CommandArgs: r.cfg.Gather.PodQuery,
		Now:         time.Now(),
	})
	if saveErr != nil {
		// Sink failures are isolated: the save file being unusable must not
		// stop log output on stdout. Opening without a file cannot fail.
		r.logger.Error("save file unavailable, continuing with stdout only", "error", saveErr)
		out, _ = sink.Open(sink.Options{Stdout: r.stdout, Quiet: r.cfg.Gather.Quiet})
	}
	defer func() {
		if err := out.Close(); err != nil {
			r.logger.Warn("closing output", "error", err)
		}
	}()

	r.banner(out, contexts)
	if saveErr != nil {
		out.WriteNotice(fmt.Sprintf("# save file unavailable: %v", saveErr))
	}

	runID := r.beginHistory(ctx, contexts)

	grace := time.Duration(r.cfg.Gather.TerminateGraceSeconds) * time.Second
	m := mux.New(intakeBuffer)
	sup := supervisor.New(r.logger, grace)
	classifier := classify.New()
	formatter := format.New(r.cfg)

	specs := make([]supervisor.Spec, 0, len(contexts))
	for _, name := range contexts {
		specs = append(specs, supervisor.Spec{
			Context: name,
			Binary:  stern.Binary,
			Args:    stern.Args(r.cfg, name),
		})
	}

	failuresCh := make(chan []supervisor.Failure, 1)
	go func() {
		failuresCh <- sup.Run(ctx, specs, r.cfg.Gather.AllAtOnce, m)
	}()

	r.consume(ctx, m, sup, classifier, formatter, out, grace)

	failures := <-failuresCh
	snapshot := r.counters.Snapshot()

	r.summary(out, snapshot, failures)
	r.finishHistory(runID, snapshot, failures, len(specs))

	if err := out.Err(); err != nil {
		r.logger.Warn("output destination errors", "error", err)
	}

	switch {
	case len(specs) > 0 && len(failures) == len(specs):
		return fmt.Errorf("%w: %s", ErrAllContextsFailed, failureSummary(failures))
	case len(failures) > 0:
		return fmt.Errorf("%w: %s", ErrPartialFailure, failureSummary(failures))
	default:
		return nil
	}
}

// consume pulls from the merged stream until it ends. On cancellation it
// asks the supervisor to terminate the processes and keeps draining, bounded
// by the grace window, so already-produced lines are not lost.
func (r *Runner) consume(ctx context.Context, m *mux.Multiplexer, sup *supervisor.Supervisor,
	classifier *classify.Classifier, formatter *format.Formatter, out *sink.Sink, grace time.Duration) {

	for {
		line, err := m.Next(ctx)
		if errors.Is(err, mux.ErrEndOfStreams) {
			return
		}
		if err != nil {
			break
		}
		r.handleLine(line, classifier, formatter, out)
	}

	r.logger.Info("interrupted, terminating streams")
	sup.TerminateAll()

	drainCtx, cancel := context.WithTimeout(context.Background(), grace+2*time.Second)
	defer cancel()
	for {
		line, err := m.Next(drainCtx)
		if err != nil {
			if !errors.Is(err, mux.ErrEndOfStreams) {
				r.logger.Warn("drain window expired, discarding remaining output", "error", err)
				go discard(m)
			}
			return
		}
		r.handleLine(line, classifier, formatter, out)
	}
}

// discard keeps reading the intake after the drain window has closed.
// Publishers blocked on a full buffer can only make progress through a
// consumer read, so without this the supervisor would never observe the
// final process exits and Run would hang. Ends at ErrEndOfStreams.
func discard(m *mux.Multiplexer) {
	for {
		if _, err := m.Next(context.Background()); err != nil {
			return
		}
	}
}

// handleLine routes one raw line through classification and formatting.
// Stderr lines are process chatter, not log payload; they go to diagnostics.
func (r *Runner) handleLine(line mux.RawLine, classifier *classify.Classifier,
	formatter *format.Formatter, out *sink.Sink) {

	if line.Stderr {
		r.logger.Debug("stern", "context", line.Context, "line", line.Text)
		return
	}

	r.counters.Line()
	rec := classifier.Classify(line)
	rendered, disposition := formatter.Format(rec)
	switch disposition {
	case format.DroppedInvalid:
		r.counters.Invalid()
	case format.DroppedContainer:
		r.counters.FilteredOut()
	default:
		r.counters.Printed()
		out.WriteLine(rendered)
	}
}

// resolveContexts expands the special "all" selector through kubectl.
func (r *Runner) resolveContexts(ctx context.Context) ([]string, error) {
	selected := r.cfg.Gather.Contexts
	if len(selected) != 1 || selected[0] != "all" {
		return selected, nil
	}

	discovered, err := r.kube.Contexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover contexts: %w", err)
	}
	if len(discovered) == 0 {
		return nil, ErrNoContexts
	}

	names := make([]string, 0, len(discovered))
	for _, c := range discovered {
		names = append(names, c.Name)
	}
	r.logger.Info("discovered contexts", "count", len(names))
	return names, nil
}

func (r *Runner) banner(out *sink.Sink, contexts []string) {
	out.WriteNotice(fmt.Sprintf("# sternmux run %s", time.Now().UTC().Format(time.RFC3339)))
	out.WriteNotice(fmt.Sprintf("# contexts: %s", strings.Join(contexts, ", ")))
	if r.cmdLine != "" {
		out.WriteNotice(fmt.Sprintf("# command: %s", r.cmdLine))
	}
	if path := out.Path(); path != "" {
		out.WriteNotice(fmt.Sprintf("# saving to: %s", path))
	}
}

// summary reports the final accounting. On a terminal the counters render
// as a table; otherwise they stay on one grep-friendly line.
func (r *Runner) summary(out *sink.Sink, snapshot stats.Snapshot, failures []supervisor.Failure) {
	out.WriteNotice(fmt.Sprintf("# done: received %d, printed %d, invalid %d, filtered %d",
		snapshot.Total, snapshot.Printed, snapshot.Invalid, snapshot.FilteredOut))
	for _, failure := range failures {
		out.WriteNotice(fmt.Sprintf("# context %s failed: %v", failure.Context, failure.Err))
	}

	if f, ok := r.stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) && !r.cfg.Gather.Quiet {
		snapshot.Render(r.stdout)
	}
}

func (r *Runner) beginHistory(ctx context.Context, contexts []string) string {
	if r.hist == nil {
		return ""
	}
	id, err := r.hist.Begin(ctx, r.cmdLine, contexts)
	if err != nil {
		r.logger.Warn("recording run start", "error", err)
		return ""
	}
	return id
}

func (r *Runner) finishHistory(runID string, snapshot stats.Snapshot, failures []supervisor.Failure, total int) {
	if r.hist == nil || runID == "" {
		return
	}

	failed := make([]string, 0, len(failures))
	for _, failure := range failures {
		failed = append(failed, failure.Context)
	}

	status := 0
	switch {
	case total > 0 && len(failures) == total:
		status = 1
	case len(failures) > 0:
		status = 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.hist.Finish(ctx, runID, snapshot, failed, status); err != nil {
		r.logger.Warn("recording run outcome", "error", err)
	}
}

func failureSummary(failures []supervisor.Failure) string {
	parts := make([]string, 0, len(failures))
	for _, failure := range failures {
		parts = append(parts, fmt.Sprintf("%s (%v)", failure.Context, failure.Err))
	}
	return strings.Join(parts, "; ")
}
