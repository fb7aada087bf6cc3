package mux

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPerSourceOrderPreserved(t *testing.T) {
	m := New(16)
	src := m.Attach()
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		if err := src.Publish(ctx, RawLine{Context: "a", Text: text}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	src.Close()
	m.Seal()

	var got []string
	for {
		line, err := m.Next(ctx)
		if errors.Is(err, ErrEndOfStreams) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, line.Text)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestEndOfStreamsOnlyAfterSealAndDrain(t *testing.T) {
	m := New(4)
	first := m.Attach()
	ctx := context.Background()

	if err := first.Publish(ctx, RawLine{Context: "a", Text: "early"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	first.Close()

	// A later source may still attach before Seal (sequential policy).
	second := m.Attach()
	if err := second.Publish(ctx, RawLine{Context: "b", Text: "late"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	second.Close()
	m.Seal()

	seen := 0
	for {
		_, err := m.Next(ctx)
		if errors.Is(err, ErrEndOfStreams) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		seen++
	}
	if seen != 2 {
		t.Fatalf("expected 2 lines before end of streams, got %d", seen)
	}
}

func TestSlowSourceIsNotStarved(t *testing.T) {
	m := New(16)
	fast := m.Attach()
	slow := m.Attach()
	ctx := context.Background()

	go func() {
		for i := 0; i < 3; i++ {
			_ = fast.Publish(ctx, RawLine{Context: "fast", Text: "burst"})
		}
		fast.Close()
	}()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = slow.Publish(ctx, RawLine{Context: "slow", Text: "single"})
		slow.Close()
		m.Seal()
	}()

	counts := map[string]int{}
	deadline, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for {
		line, err := m.Next(deadline)
		if errors.Is(err, ErrEndOfStreams) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		counts[line.Context]++
	}
	if counts["fast"] != 3 || counts["slow"] != 1 {
		t.Fatalf("unexpected line counts: %#v", counts)
	}
}

func TestNextPrefersBufferedLinesOverCancellation(t *testing.T) {
	m := New(4)
	src := m.Attach()
	if err := src.Publish(context.Background(), RawLine{Context: "a", Text: "pending"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	line, err := m.Next(cancelled)
	if err != nil {
		t.Fatalf("expected buffered line, got error: %v", err)
	}
	if line.Text != "pending" {
		t.Fatalf("unexpected line: %q", line.Text)
	}

	if _, err := m.Next(cancelled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled once drained, got %v", err)
	}
}

func TestTryNextDrain(t *testing.T) {
	m := New(4)
	src := m.Attach()
	_ = src.Publish(context.Background(), RawLine{Context: "a", Text: "buffered"})
	src.Close()
	m.Seal()

	line, ok, err := m.TryNext()
	if err != nil || !ok {
		t.Fatalf("expected buffered line, got ok=%v err=%v", ok, err)
	}
	if line.Text != "buffered" {
		t.Fatalf("unexpected line: %q", line.Text)
	}

	if _, ok, err := m.TryNext(); ok || !errors.Is(err, ErrEndOfStreams) {
		t.Fatalf("expected end of streams, got ok=%v err=%v", ok, err)
	}
}
