// cmd/autoscrapexter/manage.go
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/AutoScrapexter/internal/config"
	"github.com/valpere/AutoScrapexter/internal/scheduler"
	"github.com/valpere/AutoScrapexter/internal/sources"
)

func newValidateCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range cfg.ValidateWithDetails().Warnings {
				fmt.Fprintf(out, "⚠ %s\n", w)
			}
			fmt.Fprintf(out, "✓ Configuration file '%s' is valid\n", path)

			if verbose {
				profiles, err := sources.ResolveProfiles(cfg.Sources)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Configuration details:\n")
				fmt.Fprintf(out, "  Server: %s\n", cfg.Server.Addr)
				fmt.Fprintf(out, "  Sources: %d\n", len(profiles))
				fmt.Fprintf(out, "  Catalog driver: %s\n", cfg.Catalog.Driver)
				fmt.Fprintf(out, "  Scraping mode: %s (threshold %d)\n", cfg.Search.DefaultMode, cfg.Search.Threshold)
				fmt.Fprintf(out, "  Browser: %t\n", cfg.Browser.Enabled)
				fmt.Fprintf(out, "  Cache: %t\n", cfg.Cache.Enabled)
				fmt.Fprintf(out, "  Scheduled jobs: %d\n", len(cfg.Scheduler.Jobs))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print a configuration summary")
	return cmd
}

func newTemplateCommand() *cobra.Command {
	var (
		templateType string
		path         string
	)

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate a configuration template",
		Long: `Generate a configuration template. "minimal" keeps everything in memory;
"full" uses PostgreSQL, MongoDB and Redis, reading their addresses from
AUTOSCRAPEXTER_DATABASE_URL, AUTOSCRAPEXTER_MONGO_URI and AUTOSCRAPEXTER_REDIS_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(templateType) {
			case "minimal", "full":
			default:
				return fmt.Errorf("unknown template type %q (want minimal or full)", templateType)
			}

			tmpl := config.GenerateTemplate(templateType)
			if path == "" {
				return config.SaveToWriter(tmpl, cmd.OutOrStdout())
			}
			if err := config.SaveToFile(tmpl, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Template written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&templateType, "type", "t", "minimal", "template type: minimal or full")
	cmd.Flags().StringVarP(&path, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newSourcesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			profiles, err := sources.ResolveProfiles(cfg.Sources)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Base URL", "Renderer", "Max Pages", "Page Delay"})
			for _, p := range profiles {
				renderer := p.Renderer
				if renderer == "" {
					renderer = sources.RendererBrowser
				}
				t.AppendRow(table.Row{p.Name, p.BaseURL, renderer, p.MaxPages, formatDelay(p.PageDelay)})
			}
			t.Render()
			return nil
		},
	}
}

func formatDelay(d sources.DelayRange) string {
	if d.Max <= 0 {
		return "-"
	}
	return fmt.Sprintf("%s-%s", d.Min, d.Max)
}

func newJobsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List scheduled refresh jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Schedule", "Query", "Filters", "Sources", "Next Run"})
			now := time.Now()
			for _, job := range cfg.Scheduler.Jobs {
				next := "-"
				if sched, err := scheduler.ParseSpec(job.Spec); err == nil {
					next = sched.Next(now).Format(time.RFC3339)
				}
				srcs := "all"
				if len(job.Sources) > 0 {
					srcs = strings.Join(job.Sources, ", ")
				}
				t.AppendRow(table.Row{job.Name, job.Spec, job.Query, strings.Join(job.Filters.Applied(), ", "), srcs, next})
			}
			t.Render()
			if !cfg.Scheduler.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Scheduler is disabled; jobs run only with 'jobs run'.")
			}
			return nil
		},
	}
	cmd.AddCommand(newJobsRunCommand(opts))
	return cmd
}

func newJobsRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run one scheduled job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.scheduler.RunNow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderSourceStats(cmd.OutOrStdout(), res.Sources)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Job %s fetched %d listings, %d new\n", args[0], res.Total, res.Inserted)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}
