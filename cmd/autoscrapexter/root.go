// cmd/autoscrapexter/root.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/AutoScrapexter/internal/config"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "autoscrapexter",
		Short: "Vehicle listing aggregator",
		Long: `AutoScrapexter searches used-vehicle listings across several sites,
merging a local catalog with live results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newSearchCommand(opts),
		newExportCommand(opts),
		newSourcesCommand(opts),
		newJobsCommand(opts),
		newValidateCommand(),
		newTemplateCommand(),
		newVersionCommand(),
	)
	return root
}

// load reads the configuration and builds the logger.
func (o *globalOptions) load() (*config.Config, utils.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		if _, err := utils.ParseLevel(o.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.Logging.Level = o.logLevel
	}
	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}
