package main

import (
	"github.com/spf13/cobra"

	"sternmux/internal/deps"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the external tools sternmux depends on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := deps.CheckBinaries(deps.Default())

			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = status.Detail
				}
				rows = append(rows, []string{status.Name, status.Command, state})
			}
			renderRows(cmd.OutOrStdout(), []string{"Tool", "Command", "Status"}, rows)

			return deps.VerifyStatuses(statuses)
		},
	}
}
