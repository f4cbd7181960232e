// Package cmd implements the command-line interface for DealRadar.
// It provides the root command and subcommands for running scrapes,
// managing sources, and inspecting detected deals.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dealradar/dealradar/cmd/deals"
	"github.com/dealradar/dealradar/cmd/jobs"
	cmdscheduler "github.com/dealradar/dealradar/cmd/scheduler"
	"github.com/dealradar/dealradar/cmd/scrape"
	cmdsources "github.com/dealradar/dealradar/cmd/sources"
	"github.com/dealradar/dealradar/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug mode for all commands
	Debug bool

	// rootCmd represents the root command for the DealRadar CLI.
	rootCmd = &cobra.Command{
		Use:   "dealradar",
		Short: "A multi-source e-commerce deal scraper",
		Long:  `A scraping pipeline that collects product listings from configured e-commerce sources, tracks price history, and surfaces scored deals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() error {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	// Parse flags early to get debug flag before creating logger
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

// init initializes the root command and its subcommands.
func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dealradar version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(scrape.Command())
	rootCmd.AddCommand(cmdscheduler.Command())
	rootCmd.AddCommand(cmdsources.NewSourcesCommand())
	rootCmd.AddCommand(deals.NewDealsCommand())
	rootCmd.AddCommand(jobs.NewJobsCommand())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Environment variables take precedence over config file values and
	// defaults, with dots mapped to underscores (database.host -> DATABASE_HOST).
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// Config file is optional: sources are usually declared there, but a
	// bare environment-driven setup is valid too.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindCommandLineFlags(); err != nil {
		return err
	}
	if err := bindAppEnvVars(); err != nil {
		return err
	}

	setupDevelopmentLogging()

	return nil
}

// bindCommandLineFlags binds command-line flags to Viper.
func bindCommandLineFlags() error {
	if err := viper.BindPFlag("app.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	return nil
}

// bindAppEnvVars binds application and logger environment variables to config keys.
func bindAppEnvVars() error {
	if err := viper.BindEnv("app.environment", "APP_ENV"); err != nil {
		return fmt.Errorf("failed to bind APP_ENV: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("logging.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logging.encoding", "LOG_FORMAT"); err != nil {
		return fmt.Errorf("failed to bind LOG_FORMAT: %w", err)
	}
	if err := viper.BindEnv("database.password", "DATABASE_PASSWORD", "PGPASSWORD"); err != nil {
		return fmt.Errorf("failed to bind DATABASE_PASSWORD: %w", err)
	}
	if err := viper.BindEnv("redis.addr", "REDIS_ADDR"); err != nil {
		return fmt.Errorf("failed to bind REDIS_ADDR: %w", err)
	}
	if err := viper.BindEnv("redis.password", "REDIS_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind REDIS_PASSWORD: %w", err)
	}
	return nil
}

// setupDevelopmentLogging configures development logging settings based on
// environment and the debug flag.
func setupDevelopmentLogging() {
	debugFlag := Debug || viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	if debugFlag {
		viper.Set("logging.level", "debug")
	}

	if isDev {
		viper.Set("logging.development", true)
		viper.Set("logging.enable_color", true)
		viper.Set("logging.encoding", "console")
	}

	Debug = debugFlag
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults - production safe
	viper.SetDefault("app", map[string]any{
		"name":        "dealradar",
		"environment": "production",
		"debug":       false,
	})

	// Logging defaults - production safe
	viper.SetDefault("logging", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "json",
		"output_paths": []string{"stdout"},
		"enable_color": false,
	})

	// Database defaults
	viper.SetDefault("database", map[string]any{
		"host":    "127.0.0.1",
		"port":    "5432",
		"user":    "dealradar",
		"dbname":  "dealradar",
		"sslmode": "disable",
	})

	// Redis defaults: no addr means deal events stay disabled
	viper.SetDefault("redis", map[string]any{
		"db":             0,
		"deal_stream":    "dealradar:deals",
		"max_stream_len": config.DefaultMaxStreamLen,
	})

	// Scraper defaults - production safe
	viper.SetDefault("scraper", map[string]any{
		"pool_size":            config.DefaultPoolSize,
		"item_retries":         config.DefaultItemRetries,
		"fetch_attempts":       config.DefaultFetchAttempts,
		"backoff_initial":      config.DefaultBackoffInitial.String(),
		"backoff_max":          config.DefaultBackoffMax.String(),
		"similarity_tolerance": config.DefaultSimilarityTolerance,
		"stale_after":          config.DefaultStaleAfter.String(),
		"deal_ttl":             config.DefaultDealTTL.String(),
	})
}
