// Package stern builds the argument lists for the stern processes sternmux
// spawns.
package stern

import "sternmux/internal/config"

// Binary is the stern command name looked up on PATH.
const Binary = "stern"

// Args assembles the argv for one context's stern process. With stern
// defaults enabled the process emits JSON envelopes with short UTC
// timestamps across all namespaces; the pod query and any extra user
// arguments are always appended last.
func Args(cfg *config.Config, contextName string) []string {
	args := []string{"--context", contextName}

	if cfg.Gather.SternDefaults {
		args = append(args,
			"--all-namespaces",
			"--output", "json",
			"--timestamps=short",
			"--since", cfg.Gather.Since,
			"--timezone", "UTC",
		)
		if !cfg.Gather.Follow {
			args = append(args, "--no-follow")
		}
	}

	for _, container := range cfg.Gather.IncludeContainers {
		args = append(args, "--container", container)
	}

	args = append(args, cfg.Gather.PodQuery...)
	return args
}
