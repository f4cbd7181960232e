package deals

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/cmd/common"
	"github.com/dealradar/dealradar/internal/catalog"
)

const defaultDealLimit = 20

var listLimit int

// NewListCommand creates a new list subcommand for deals.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the top active deals by score",
		RunE:  runList,
	}

	cmd.Flags().IntVarP(&listLimit, "limit", "n", defaultDealLimit,
		"maximum number of deals to show")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}

	db, err := catalog.NewPostgresConnection(deps.Config.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store := catalog.NewStore(db)
	deals, err := store.Deals().Top(cmd.Context(), listLimit)
	if err != nil {
		return fmt.Errorf("list deals: %w", err)
	}

	if len(deals) == 0 {
		deps.Logger.Info("no active deals")
		return nil
	}

	renderDeals(deals)
	return nil
}

func renderDeals(deals []catalog.DealListing) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Score", "Title", "Source", "Price", "Was", "Discount", "Type"})

	for _, deal := range deals {
		discount := ""
		if deal.DiscountPercentage != nil {
			discount = deal.DiscountPercentage.StringFixed(1) + "%"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%.1f", deal.AIScore),
			deal.ProductTitle,
			deal.Source,
			fmt.Sprintf("%s %s", deal.DealPrice.StringFixed(2), deal.Currency),
			deal.OriginalPrice.StringFixed(2),
			discount,
			deal.DealType,
		})
	}

	t.Render()
}
