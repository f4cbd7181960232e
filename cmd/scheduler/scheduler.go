// Package scheduler implements the long-running scheduler command that
// drives recurring scrape jobs from the per-source cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/cmd/common"
)

// shutdownTimeout bounds how long shutdown waits for running jobs to drain.
const shutdownTimeout = 30 * time.Second

var runAllOnStart bool

// Command returns the scheduler command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the scrape scheduler",
		Long: `Run the scheduler daemon. Each enabled source with a cron schedule
is scraped on that schedule until the process is stopped.`,
		RunE: runScheduler,
	}

	cmd.Flags().BoolVar(&runAllOnStart, "run-all", false,
		"immediately enqueue a job for every enabled source on startup")

	return cmd
}

func runScheduler(cmd *cobra.Command, args []string) error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}

	pipeline, err := common.NewPipeline(deps)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if err := pipeline.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	if runAllOnStart {
		pipeline.Scheduler.RunAll()
	}

	deps.Logger.Info("scheduler started",
		"sources", len(deps.Config.EnabledSources()))

	// Block until an interrupt, then drain running jobs.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	deps.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := pipeline.Scheduler.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	deps.Logger.Info("scheduler stopped")
	return nil
}
