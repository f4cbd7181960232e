// Package jobs provides the jobs command implementation.
package jobs

import (
	"github.com/spf13/cobra"
)

// NewJobsCommand creates a new jobs command.
func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect scrape jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewListCommand())

	return cmd
}
