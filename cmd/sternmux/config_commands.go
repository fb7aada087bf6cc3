package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sternmux/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the sternmux configuration file",
	}
	cmd.AddCommand(newConfigInitCommand(configFlag))
	cmd.AddCommand(newConfigShowCommand(configFlag))
	return cmd
}

func newConfigInitCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configFlag
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			g := cfg.Gather
			rows := [][]string{
				{"contexts", joinOrDash(g.Contexts)},
				{"all_at_once", fmt.Sprint(g.AllAtOnce)},
				{"stern_defaults", fmt.Sprint(g.SternDefaults)},
				{"skip_invalid_messages", fmt.Sprint(g.SkipInvalid)},
				{"include_containers", joinOrDash(g.IncludeContainers)},
				{"fix_up_messages", fmt.Sprint(g.FixUpMessages)},
				{"pretty_print_objects", fmt.Sprint(g.PrettyPrint)},
				{"since", g.Since},
				{"follow", fmt.Sprint(g.Follow)},
				{"quiet", fmt.Sprint(g.Quiet)},
				{"blank_line_after_entry", fmt.Sprint(g.BlankLineAfterEntry)},
				{"space_after_message", fmt.Sprint(g.SpaceAfterMessage)},
				{"terminate_grace_seconds", fmt.Sprint(g.TerminateGraceSeconds)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
				{"history.enabled", fmt.Sprint(cfg.History.Enabled)},
				{"history.path", cfg.History.Path},
			}
			renderRows(out, []string{"Option", "Value"}, rows)
			return nil
		},
	}
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ",")
}
