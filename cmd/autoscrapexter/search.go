// cmd/autoscrapexter/search.go
package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/output"
	"github.com/valpere/AutoScrapexter/internal/search"
)

// filterFlags binds the structured filters to command flags. Only flags
// given on the command line become filters.
type filterFlags struct {
	priceMin, priceMax     int64
	yearMin, yearMax       int
	mileageMin, mileageMax int64
	make, model            string
	fuel, transmission     string
	location               string
	sources                []string
	maxPages               int
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.priceMin, "price-min", 0, "minimum price")
	fs.Int64Var(&f.priceMax, "price-max", 0, "maximum price")
	fs.IntVar(&f.yearMin, "year-min", 0, "oldest model year")
	fs.IntVar(&f.yearMax, "year-max", 0, "newest model year")
	fs.Int64Var(&f.mileageMin, "mileage-min", 0, "minimum mileage in km")
	fs.Int64Var(&f.mileageMax, "mileage-max", 0, "maximum mileage in km")
	fs.StringVar(&f.make, "make", "", "vehicle make")
	fs.StringVar(&f.model, "model", "", "vehicle model")
	fs.StringVar(&f.fuel, "fuel", "", "fuel type (petrol, diesel, hybrid, electric, lpg)")
	fs.StringVar(&f.transmission, "transmission", "", "transmission (manual, automatic)")
	fs.StringVar(&f.location, "location", "", "location substring")
	fs.StringSliceVar(&f.sources, "sources", nil, "restrict live fetching to these sources")
	fs.IntVar(&f.maxPages, "max-pages", 0, "result pages per source (0 uses the source default)")
}

func (f *filterFlags) filters(fs *pflag.FlagSet) listing.Filters {
	var out listing.Filters
	if fs.Changed("price-min") {
		out.PriceMin = listing.Int64(f.priceMin)
	}
	if fs.Changed("price-max") {
		out.PriceMax = listing.Int64(f.priceMax)
	}
	if fs.Changed("year-min") {
		out.YearMin = listing.Int(f.yearMin)
	}
	if fs.Changed("year-max") {
		out.YearMax = listing.Int(f.yearMax)
	}
	if fs.Changed("mileage-min") {
		out.MileageMin = listing.Int64(f.mileageMin)
	}
	if fs.Changed("mileage-max") {
		out.MileageMax = listing.Int64(f.mileageMax)
	}
	out.Make = f.make
	out.Model = f.model
	out.FuelType = f.fuel
	out.Transmission = f.transmission
	out.Location = f.location
	return out
}

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var (
		flags    filterFlags
		mode     string
		page     int
		size     int
		noScrape bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the catalog and the live sources",
		Example: `  autoscrapexter search peugeot 308 --price-max 15000
  autoscrapexter search "golf diesel" --mode always --sources leboncoin`,
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

			res, err := a.search.Search(cmd.Context(), listing.SearchRequest{
				Query:          strings.Join(args, " "),
				Filters:        flags.filters(cmd.Flags()),
				Page:           page,
				Size:           size,
				Mode:           mode,
				EnableScraping: !noScrape,
				Sources:        flags.sources,
				MaxPages:       flags.maxPages,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			renderListings(out, res.Results, (res.Page-1)*res.Size)
			if len(res.Sources) > 0 {
				renderSourceStats(out, res.Sources)
			}
			fmt.Fprintf(out, "Page %d of %d results (%d from catalog, %d live) in %s\n",
				res.Page, res.Total, res.FromDB, res.FromLive, res.Duration.Round(time.Millisecond))
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&mode, "mode", "", "scraping mode: "+strings.Join(modeNames(), ", "))
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&size, "size", 0, "page size (0 uses search.default_size)")
	cmd.Flags().BoolVar(&noScrape, "no-scrape", false, "never fetch live results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		flags  filterFlags
		format string
		path   string
		live   bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export [query...]",
		Short: "Export matching listings to JSON, CSV or Excel",
		Long: `Export listings matching the query and filters. By default rows come from
the catalog; with --live the sources are fetched first and the fresh results
are exported (and persisted when aggregator.persist is set).`,
		Example: `  autoscrapexter export peugeot 308 -o peugeot.xlsx
  autoscrapexter export --live --make renault --fuel diesel -o renault.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				return fmt.Errorf("--output is required")
			}
			if _, err := output.ParseFormat(format, path); err != nil {
				return err
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(args, " ")
			filters := flags.filters(cmd.Flags())

			var rows []listing.Listing
			if live {
				res, err := a.agg.Aggregate(cmd.Context(), aggregator.Request{
					Query:    query,
					Filters:  filters,
					Sources:  flags.sources,
					MaxPages: flags.maxPages,
				})
				if err != nil {
					return err
				}
				rows = res.Results
				renderSourceStats(cmd.OutOrStdout(), res.Sources)
			} else {
				rows, err = a.store.Query(cmd.Context(), catalog.Query{Text: query, Filters: filters, Limit: limit})
				if err != nil {
					return err
				}
			}
			rows = search.NewFilterProcessor().Apply(rows, filters)

			if err := output.Export(format, path, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d listings to %s\n", len(rows), path)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&path, "output", "o", "", "output file")
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, csv or xlsx (inferred from the file extension when empty)")
	cmd.Flags().BoolVar(&live, "live", false, "fetch the sources instead of reading the catalog")
	cmd.Flags().IntVar(&limit, "limit", catalog.DefaultLimit, "maximum catalog rows")
	return cmd
}

func modeNames() []string {
	modes := search.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return names
}
