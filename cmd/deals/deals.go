// Package deals provides the deals command implementation.
package deals

import (
	"github.com/spf13/cobra"
)

// NewDealsCommand creates a new deals command.
func NewDealsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deals",
		Short: "Inspect detected deals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewListCommand())

	return cmd
}
