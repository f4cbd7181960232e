package common

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dealradar/dealradar/internal/config"
	"github.com/dealradar/dealradar/internal/logger"
)

// NewCommandDeps creates CommandDeps by loading config and creating a logger.
// This consolidates the common initialization code from each command's RunE.
func NewCommandDeps() (CommandDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	logLevel := strings.ToLower(cfg.Logging.Level)
	if logLevel == "" {
		logLevel = "info"
	}

	logCfg := &logger.Config{
		Level:       logger.Level(logLevel),
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: viper.GetStringSlice("logging.output_paths"),
		EnableColor: viper.GetBool("logging.enable_color"),
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}

	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}

	return deps, nil
}
