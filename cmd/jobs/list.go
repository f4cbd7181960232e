package jobs

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/cmd/common"
	"github.com/dealradar/dealradar/internal/catalog"
	"github.com/dealradar/dealradar/internal/domain"
)

const defaultJobLimit = 20

var (
	listSource string
	listLimit  int
)

// NewListCommand creates a new list subcommand for jobs.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scrape jobs",
		RunE:  runList,
	}

	cmd.Flags().StringVarP(&listSource, "source", "s", "", "only show jobs for this source")
	cmd.Flags().IntVarP(&listLimit, "limit", "n", defaultJobLimit,
		"maximum number of jobs to show")

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
	jobs, err := store.Jobs().ListRecent(cmd.Context(), listSource, listLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		deps.Logger.Info("no jobs found")
		return nil
	}

	renderJobs(jobs)
	return nil
}

func renderJobs(jobs []*domain.ScraperJob) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Source", "Status", "Scraped", "Failed", "Started", "Duration", "Last Error"})

	for _, job := range jobs {
		started := ""
		if job.StartedAt != nil {
			started = job.StartedAt.Format(time.RFC3339)
		}
		duration := ""
		if job.StartedAt != nil && job.FinishedAt != nil {
			duration = job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()
		}
		lastError := ""
		if job.LastError != nil {
			lastError = *job.LastError
		}
		t.AppendRow(table.Row{
			job.ID,
			job.Source,
			job.Status,
			job.ItemsScraped,
			job.ItemsFailed,
			started,
			duration,
			lastError,
		})
	}

	t.Render()
}
