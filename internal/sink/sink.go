// Package sink fans formatted lines out to the run's destinations.
//
// The two destinations are stdout and an optional save file. Log lines
// respect quiet mode on stdout; run notices (banner, summary) always print.
// A destination that starts failing is muted for the rest of the run so the
// other one keeps receiving lines.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Options configures a Sink.
type Options struct {
	// Stdout is the primary destination, usually os.Stdout.
	Stdout io.Writer

	// Quiet suppresses log lines on stdout. Notices still print.
	Quiet bool

	// Save enables the file destination. SavePath empty means a name is
	// generated from CommandArgs and Now.
	Save     bool
	SavePath string

	// CommandArgs and Now feed the generated save-file name.
	CommandArgs []string
	Now         time.Time
}

// Sink writes formatted lines to the configured destinations.
type Sink struct {
	stdout io.Writer
	quiet  bool

	mu        sync.Mutex
	file      *os.File
	fileBuf   *bufio.Writer
	fileLock  *flock.Flock
	filePath  string
	stdoutErr error
	fileErr   error
}

// AutoFilename derives a save-file name from the run's arguments, so
// consecutive runs with different queries never clobber each other.
func AutoFilename(args []string, now time.Time) string {
	stamp := now.Format("20060102-150405")
	joined := unsafeFilenameChars.ReplaceAllString(strings.Join(args, "-"), "_")
	joined = strings.Trim(joined, "_-")
	if joined == "" {
		return fmt.Sprintf("sternmux-%s.txt", stamp)
	}
	return fmt.Sprintf("sternmux-%s-%s.txt", joined, stamp)
}

// Open prepares the destinations. When saving, the file is created fresh and
// locked so a concurrent run cannot interleave output into it.
func Open(opts Options) (*Sink, error) {
	s := &Sink{stdout: opts.Stdout, quiet: opts.Quiet}
	if s.stdout == nil {
		s.stdout = os.Stdout
	}
	if !opts.Save {
		return s, nil
	}

	path := opts.SavePath
	if path == "" {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		path = AutoFilename(opts.CommandArgs, now)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock save file: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("save file %s is in use by another run", path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open save file: %w", err)
	}

	s.file = file
	s.fileBuf = bufio.NewWriter(file)
	s.fileLock = lock
	s.filePath = path
	return s, nil
}

// Path returns the save-file path, or "" when not saving.
func (s *Sink) Path() string {
	return s.filePath
}

// WriteLine sends one formatted log line to the destinations.
func (s *Sink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.quiet {
		s.writeStdout(line)
	}
	s.writeFile(line)
}

// WriteNotice sends a run notice. Notices ignore quiet mode.
func (s *Sink) WriteNotice(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeStdout(line)
	s.writeFile(line)
}

func (s *Sink) writeStdout(line string) {
	if s.stdoutErr != nil {
		return
	}
	if _, err := io.WriteString(s.stdout, line+"\n"); err != nil {
		s.stdoutErr = fmt.Errorf("stdout: %w", err)
	}
}

func (s *Sink) writeFile(line string) {
	if s.fileBuf == nil || s.fileErr != nil {
		return
	}
	if _, err := s.fileBuf.WriteString(line + "\n"); err != nil {
		s.fileErr = fmt.Errorf("save file %s: %w", s.filePath, err)
	}
}

// Err reports destination write errors accumulated during the run.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.stdoutErr, s.fileErr)
}

// Close flushes and releases the file destination. Safe to call when no
// save file is open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.fileBuf != nil {
		if err := s.fileBuf.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush save file: %w", err))
		}
		if err := s.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync save file: %w", err))
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close save file: %w", err))
		}
		s.fileBuf = nil
		s.file = nil
	}
	if s.fileLock != nil {
		if err := s.fileLock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("unlock save file: %w", err))
		}
		_ = os.Remove(s.fileLock.Path())
		s.fileLock = nil
	}
	return errors.Join(errs...)
}
