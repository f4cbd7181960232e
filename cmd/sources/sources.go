// Package sources provides the sources command implementation.
package sources

import (
	"github.com/spf13/cobra"
)

// NewSourcesCommand creates a new sources command.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage scrape sources",
		Long:  `Inspect and validate the configured e-commerce sources`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
