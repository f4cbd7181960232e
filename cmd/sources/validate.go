package sources

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dealradar/dealradar/internal/config"
)

// NewValidateCommand creates a new validate subcommand for sources.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [source...]",
		Short: "Validate source configurations",
		Long: `Check the configured sources for errors: missing selectors, bad
URLs, unknown adapter types. With no arguments, every source is checked.`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	// The lenient loader skips validation so every source gets reported,
	// instead of stopping at the first invalid one.
	cfg, err := config.LoadRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	names := args
	if len(names) == 0 {
		for _, src := range cfg.Sources {
			names = append(names, src.Name)
		}
	}
	if len(names) == 0 {
		fmt.Println("no sources configured")
		return nil
	}

	failures := 0
	for _, name := range names {
		src := cfg.Source(name)
		if src == nil {
			fmt.Printf("%s: unknown source\n", name)
			failures++
			continue
		}
		if validateErr := src.Validate(); validateErr != nil {
			fmt.Printf("%s: %v\n", name, validateErr)
			failures++
			continue
		}
		fmt.Printf("%s: ok\n", name)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed validation", failures, len(names))
	}
	return nil
}
