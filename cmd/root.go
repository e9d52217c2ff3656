// Package cmd implements the deal-finder command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/config"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/config"
)

const defaultConfigPath = "config.yml"

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug forces development logging for all commands
	debug bool
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "deal-finder",
		Short: "Finds underpriced Vinted listings and emails a digest",
		Long: `deal-finder scrapes the Vinted catalogs of several countries, asks a
language model to pick out the best deals, ranks them and sends an HTML digest.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $CONFIG_PATH or ./config.yml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newServeCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newTokenCommand())
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = infraconfig.GetConfigPath(defaultConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if Version != "dev" {
		cfg.Service.Version = Version
	}
	if debug {
		cfg.Service.Debug = true
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config, outputPaths ...string) (logger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Development = logCfg.Development || cfg.Service.Debug
	if debug {
		logCfg.Level = "debug"
	}
	if len(outputPaths) > 0 {
		logCfg.OutputPaths = outputPaths
	}

	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", cfg.Service.Name)), nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deal-finder version %s\n", Version)
		},
	}
}
