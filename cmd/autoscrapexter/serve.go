// cmd/autoscrapexter/serve.go
package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/AutoScrapexter/internal/api"
	"github.com/valpere/AutoScrapexter/internal/config"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search API",
		Long: `Serve the HTTP search API. Scheduled refresh jobs run alongside when
scheduler.enabled is set. With --watch, edits to the config file update the
search policy, log level and rate limit without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if watch && opts.configFile == "" {
				return errors.New("--watch needs --config")
			}
			return serve(cmd.Context(), cfg, logger, opts.configFile, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "override server.addr")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the config file on change")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger utils.Logger, configFile string, watch bool) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server, a.search, logger, a.serverOptions()...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })

	if cfg.Scheduler.Enabled && len(cfg.Scheduler.Jobs) > 0 {
		g.Go(func() error { return a.scheduler.Run(gctx) })
	}

	if watch {
		watcher, err := config.NewConfigWatcher(configFile, logger)
		if err != nil {
			return err
		}
		watcher.OnChange(func(next *config.Config) {
			a.search.SetConfig(next.Search)
			if err := utils.SetLevel(logger, next.Logging.Level); err != nil {
				logger.Warnf("log level not changed: %v", err)
			}
			server.SetRateLimit(next.Server.RateLimit, next.Server.RateBurst)
			logger.Infof("applied configuration from %s", configFile)
		})
		g.Go(func() error { return watcher.Run(gctx) })
	}

	logger.WithFields(map[string]interface{}{
		"version": version,
		"sources": a.agg.Sources(),
		"catalog": cfg.Catalog.Driver,
		"mode":    cfg.Search.DefaultMode,
	}).Info("autoscrapexter started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("autoscrapexter stopped")
	return nil
}

func (a *app) serverOptions() []api.Option {
	opts := []api.Option{
		api.WithHealth(a.health),
		api.WithSources(a.profiles),
		api.WithJobs(a.scheduler),
		api.WithAdvancedPageSize(a.cfg.Search.MaxSize),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, api.WithMetrics(a.metrics, a.cfg.Metrics.Path))
	}
	if a.reader != nil {
		opts = append(opts, api.WithHistory(a.reader))
	}
	return opts
}
