package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sternmux/internal/config"
	"sternmux/internal/history"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent gathering runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return fmt.Errorf("run history is disabled in the configuration")
			}

			path, err := config.ExpandPath(cfg.History.Path)
			if err != nil {
				return err
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format(time.DateTime),
					strings.Join(run.Contexts, ","),
					fmt.Sprintf("%d/%d", run.Lines.Printed, run.Lines.Total),
					runOutcome(run),
					run.CommandLine,
				})
			}
			renderRows(cmd.OutOrStdout(),
				[]string{"Started", "Contexts", "Printed/Total", "Outcome", "Command"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func runOutcome(run history.Run) string {
	switch {
	case run.FinishedAt.IsZero():
		return "unfinished"
	case len(run.FailedContexts) > 0:
		return fmt.Sprintf("failed: %s", strings.Join(run.FailedContexts, ","))
	default:
		return "ok"
	}
}
