// Package sources implements the command-line interface for managing scrape
// sources. This file contains the implementation of the list command that
// displays all configured sources in a formatted table.
package sources

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/cmd/common"
	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
)

// TableRenderer handles the display of source data in a table format
type TableRenderer struct {
	logger logger.Interface
}

// NewTableRenderer creates a new TableRenderer instance
func NewTableRenderer(log logger.Interface) *TableRenderer {
	return &TableRenderer{
		logger: log,
	}
}

// RenderTable formats and displays the sources in a table format
func (r *TableRenderer) RenderTable(sources []config.Source) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Name", "Adapter", "Base URL", "Currency", "Rate Limit", "Schedule", "Enabled"})

	for _, source := range sources {
		rateLimit := fmt.Sprintf("%d/%s", source.RateLimit.Requests, source.RateLimit.Interval)
		t.AppendRow(table.Row{
			source.Name,
			source.Adapter,
			source.BaseURL,
			source.Currency,
			rateLimit,
			source.Schedule,
			source.Enabled,
		})
	}

	t.Render()
	return nil
}

// NewListCommand creates a new list subcommand for sources.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			if len(deps.Config.Sources) == 0 {
				deps.Logger.Info("no sources configured")
				return nil
			}

			renderer := NewTableRenderer(deps.Logger)
			return renderer.RenderTable(deps.Config.Sources)
		},
	}
}
