// Package deps verifies the external binaries sternmux drives.
package deps

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// SternURL points users at the stern install instructions when the binary is
// missing.
const SternURL = "https://github.com/stern/stern"

// ErrMissingBinary marks a fatal startup condition: a required external tool
// is not on PATH.
var ErrMissingBinary = errors.New("required binary missing")

// Requirement defines an external binary sternmux relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Detail      string
}

// Default returns the binaries every gather run needs.
func Default() []Requirement {
	return []Requirement{
		{Name: "kubectl", Command: "kubectl", Description: "context discovery"},
		{Name: "stern", Command: "stern", Description: fmt.Sprintf("log tailing, get it from %s", SternURL)},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found in PATH", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Verify checks the requirements and returns an ErrMissingBinary error
// naming the first missing one. Runs before any process is spawned.
func Verify(requirements []Requirement) error {
	return VerifyStatuses(CheckBinaries(requirements))
}

// VerifyStatuses converts already-computed statuses into the fatal-startup
// error, so callers that display the statuses do not repeat the lookups.
func VerifyStatuses(statuses []Status) error {
	for _, status := range statuses {
		if status.Available {
			continue
		}
		detail := status.Detail
		if status.Description != "" {
			detail = fmt.Sprintf("%s (%s)", detail, status.Description)
		}
		return fmt.Errorf("%w: %s", ErrMissingBinary, detail)
	}
	return nil
}
