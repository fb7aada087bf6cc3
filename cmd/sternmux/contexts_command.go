package main

import (
	"github.com/spf13/cobra"

	"sternmux/internal/kubectl"
)

func newContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contexts",
		Short: "List the kubectl contexts available to stream from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			contexts, err := kubectl.New().Contexts(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(contexts))
			for _, c := range contexts {
				current := ""
				if c.Current {
					current = "*"
				}
				rows = append(rows, []string{current, c.Name, c.Cluster, c.Namespace})
			}
			renderRows(cmd.OutOrStdout(), []string{"", "Name", "Cluster", "Namespace"}, rows)
			return nil
		},
	}
}
