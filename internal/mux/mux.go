// Package mux merges the line output of several concurrently running log
// sources into a single ordered stream.
//
// Each source publishes lines through its own Source handle; the Multiplexer
// fans them into one bounded channel. Per-source order is preserved, no line
// is dropped, and a source that bursts may emit several lines before another
// source's single line appears. End of stream is reported only after every
// attached source has closed and the intake buffer has been drained.
package mux

import (
	"context"
	"errors"
	"sync"
)

// ErrEndOfStreams reports that every source has exited and been drained.
var ErrEndOfStreams = errors.New("all log streams exhausted")

// RawLine is one untouched line of text received from a tailing process.
type RawLine struct {
	Context string
	Text    string
	Stderr  bool
}

// Multiplexer merges RawLines from any number of sources. Sources may attach
// at any time until Seal is called; the consumer reads through Next.
type Multiplexer struct {
	intake chan RawLine

	mu     sync.Mutex
	active int
	sealed bool
	closed bool
}

// New constructs a Multiplexer with the given intake buffer size. The buffer
// bounds how far producers can run ahead of the consumer; once it is full,
// publishers block and backpressure reaches the child process through its
// pipe buffer.
func New(buffer int) *Multiplexer {
	if buffer < 1 {
		buffer = 1
	}
	return &Multiplexer{intake: make(chan RawLine, buffer)}
}

// Source publishes lines for one attached log stream.
type Source struct {
	m    *Multiplexer
	once sync.Once
}

// Attach registers a new source. It panics if the multiplexer has been
// sealed, since that would race with intake shutdown.
func (m *Multiplexer) Attach() *Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed {
		panic("mux: attach after seal")
	}
	m.active++
	return &Source{m: m}
}

// Publish delivers one line. It blocks when the intake buffer is full and
// returns early when ctx is cancelled.
func (s *Source) Publish(ctx context.Context, line RawLine) error {
	select {
	case s.m.intake <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close retires the source. Safe to call more than once.
func (s *Source) Close() {
	s.once.Do(func() {
		s.m.mu.Lock()
		s.m.active--
		s.m.maybeCloseLocked()
		s.m.mu.Unlock()
	})
}

// Seal declares that no further sources will attach. Once sealed and all
// sources have closed, the intake channel closes and Next reports
// ErrEndOfStreams after draining.
func (m *Multiplexer) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.maybeCloseLocked()
	m.mu.Unlock()
}

func (m *Multiplexer) maybeCloseLocked() {
	if m.sealed && m.active == 0 && !m.closed {
		m.closed = true
		close(m.intake)
	}
}

// Next returns the next available line. It blocks until a line is ready,
// the stream set is exhausted (ErrEndOfStreams), or ctx is cancelled.
func (m *Multiplexer) Next(ctx context.Context) (RawLine, error) {
	select {
	case line, ok := <-m.intake:
		if !ok {
			return RawLine{}, ErrEndOfStreams
		}
		return line, nil
	case <-ctx.Done():
		// Lines may still be buffered; prefer them over the cancellation
		// so nothing already received is lost.
		select {
		case line, ok := <-m.intake:
			if !ok {
				return RawLine{}, ErrEndOfStreams
			}
			return line, nil
		default:
			return RawLine{}, ctx.Err()
		}
	}
}

// TryNext returns a buffered line without blocking. The second return is
// false when the buffer is currently empty; the error is ErrEndOfStreams
// once the intake has closed and drained. Used for the bounded drain after
// cancellation.
func (m *Multiplexer) TryNext() (RawLine, bool, error) {
	select {
	case line, ok := <-m.intake:
		if !ok {
			return RawLine{}, false, ErrEndOfStreams
		}
		return line, true, nil
	default:
		return RawLine{}, false, nil
	}
}
