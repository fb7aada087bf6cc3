// Package stats counts line dispositions during a gathering run.
package stats

import (
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Counters accumulates per-run line accounting. Safe for concurrent use,
// though in practice a single consumer goroutine feeds it.
type Counters struct {
	mu          sync.Mutex
	total       int64
	printed     int64
	invalid     int64
	filteredOut int64
}

// Line records one line received from the merged stream.
func (c *Counters) Line() {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()
}

// Printed records a line that reached an output destination.
func (c *Counters) Printed() {
	c.mu.Lock()
	c.printed++
	c.mu.Unlock()
}

// Invalid records a line dropped for not being a parseable envelope.
func (c *Counters) Invalid() {
	c.mu.Lock()
	c.invalid++
	c.mu.Unlock()
}

// FilteredOut records a line dropped by the container filter.
func (c *Counters) FilteredOut() {
	c.mu.Lock()
	c.filteredOut++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total       int64
	Printed     int64
	Invalid     int64
	FilteredOut int64
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Total:       c.total,
		Printed:     c.printed,
		Invalid:     c.invalid,
		FilteredOut: c.filteredOut,
	}
}

// Render writes the run summary as a table.
func (s Snapshot) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Lines", "Count"})
	t.AppendRows([]table.Row{
		{"received", s.Total},
		{"printed", s.Printed},
		{"invalid", s.Invalid},
		{"filtered out", s.FilteredOut},
	})
	t.Render()
}
