// Package kubectl discovers the cluster contexts available to stream from.
package kubectl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Binary is the kubectl command name looked up on PATH.
const Binary = "kubectl"

// Context describes one entry from kubectl's context table.
type Context struct {
	Current   bool
	Name      string
	Cluster   string
	AuthInfo  string
	Namespace string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

// commandExecutor executes commands using os/exec.
type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).Output()
}

// Client wraps kubectl invocations.
type Client struct {
	binary string
	exec   Executor
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// New constructs a kubectl client.
func New(opts ...Option) *Client {
	client := &Client{binary: Binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Contexts runs "kubectl config get-contexts" and parses the fixed-width
// table it prints.
func (c *Client) Contexts(ctx context.Context) ([]Context, error) {
	out, err := c.exec.Run(ctx, c.binary, []string{"config", "get-contexts"})
	if err != nil {
		return nil, fmt.Errorf("kubectl config get-contexts: %w", err)
	}
	return parseContextTable(string(out))
}

// parseContextTable reads kubectl's fixed-width context listing. Column
// boundaries come from the header positions, since the CURRENT column is
// blank for all but one row and field counts vary.
func parseContextTable(out string) ([]Context, error) {
	lines := strings.Split(out, "\n")
	if len(lines) == 0 {
		return nil, errors.New("kubectl printed no context table header")
	}

	header := lines[0]
	columns := []string{"CURRENT", "NAME", "CLUSTER", "AUTHINFO", "NAMESPACE"}
	offsets := make([]int, 0, len(columns))
	for _, column := range columns {
		idx := strings.Index(header, column)
		if idx < 0 {
			return nil, fmt.Errorf("kubectl context table header missing %s column", column)
		}
		offsets = append(offsets, idx)
	}

	var contexts []Context
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := sliceColumns(line, offsets)
		name := cells[1]
		if name == "" {
			continue
		}
		contexts = append(contexts, Context{
			Current:   cells[0] == "*",
			Name:      name,
			Cluster:   cells[2],
			AuthInfo:  cells[3],
			Namespace: cells[4],
		})
	}
	return contexts, nil
}

func sliceColumns(line string, offsets []int) []string {
	cells := make([]string, len(offsets))
	for i, start := range offsets {
		if start >= len(line) {
			continue
		}
		end := len(line)
		if i+1 < len(offsets) && offsets[i+1] < end {
			end = offsets[i+1]
		}
		cells[i] = strings.TrimSpace(line[start:end])
	}
	return cells
}
