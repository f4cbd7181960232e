// Package scrape implements the one-shot scrape command: it runs a single
// job for each requested source and prints the results.
package scrape

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/cmd/common"
	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/domain"
)

// Command returns the scrape command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [source...]",
		Short: "Run a scrape job for the given sources",
		Long: `Run one scrape job per named source and wait for the results.
With no arguments, every enabled source is scraped.`,
		RunE: runScrape,
	}
}

func runScrape(cmd *cobra.Command, args []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}

	sources, err := selectSources(deps.Config, args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources to scrape")
	}

	pipeline, err := common.NewPipeline(deps)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	// Ctrl-C cancels the run; already-fetched items still persist.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := make([]*domain.ScraperJob, 0, len(sources))
	for _, src := range sources {
		job, runErr := pipeline.Scheduler.RunOnce(ctx, src)
		if runErr != nil {
			return fmt.Errorf("scrape %s: %w", src.Name, runErr)
		}
		jobs = append(jobs, job)

		if ctx.Err() != nil {
			break
		}
	}

	renderJobs(jobs)
	return nil
}

// selectSources resolves the requested source names against the
// configuration. With no names, all enabled sources are returned.
func selectSources(cfg *config.Config, names []string) ([]config.Source, error) {
	if len(names) == 0 {
		return cfg.EnabledSources(), nil
	}

	sources := make([]config.Source, 0, len(names))
	for _, name := range names {
		src := cfg.Source(name)
		if src == nil {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		sources = append(sources, *src)
	}
	return sources, nil
}

func renderJobs(jobs []*domain.ScraperJob) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Source", "Status", "Scraped", "Failed", "Duration", "Last Error"})

	for _, job := range jobs {
		lastError := ""
		if job.LastError != nil {
			lastError = *job.LastError
		}
		duration := ""
		if job.StartedAt != nil && job.FinishedAt != nil {
			duration = job.FinishedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{
			job.Source,
			job.Status,
			job.ItemsScraped,
			job.ItemsFailed,
			duration,
			lastError,
		})
	}

	t.Render()
}
