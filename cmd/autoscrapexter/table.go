// cmd/autoscrapexter/table.go
package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

const maxTitleWidth = 48

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderListings prints one row per listing, numbered from offset+1.
func renderListings(w io.Writer, listings []listing.Listing, offset int) {
	if len(listings) == 0 {
		fmt.Fprintln(w, "No listings found.")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Title", "Price", "Year", "Mileage", "Fuel", "Location", "Source"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: maxTitleWidth, WidthMaxEnforcer: text.Trim},
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	for i, l := range listings {
		t.AppendRow(table.Row{
			offset + i + 1,
			l.Title,
			formatInt64(l.Price, "€"),
			formatInt(l.Year),
			formatInt64(l.Mileage, " km"),
			l.FuelType,
			l.Location,
			l.Source,
		})
	}
	t.Render()
}

// renderSourceStats prints the per-source outcome, sorted by name.
func renderSourceStats(w io.Writer, stats map[string]listing.SourceStats) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w)
	t.AppendHeader(table.Row{"Source", "Listings", "Status", "Error"})
	for _, name := range names {
		s := stats[name]
		status := "ok"
		if !s.Success {
			status = "failed"
		}
		t.AppendRow(table.Row{name, s.Count, status, s.Error})
	}
	t.Render()
}

func formatInt64(v *int64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d%s", *v, unit)
}

func formatInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
