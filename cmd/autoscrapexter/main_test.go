// cmd/autoscrapexter/main_test.go
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/config"
	"github.com/valpere/AutoScrapexter/internal/listing"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestCLIVersion(t *testing.T) {
	version = "test-version"
	buildTime = "2025-06-23"
	gitCommit = "abc123"

	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"test-version", "2025-06-23", "abc123"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

func TestCLIHelp(t *testing.T) {
	output, err := execute(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"serve", "search", "export", "sources", "jobs", "validate", "template", "version"} {
		if !strings.Contains(output, cmd) {
			t.Errorf("help output should contain command %q, got: %s", cmd, output)
		}
	}
}

func TestTemplateThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "autoscrapexter.yaml")

	output, err := execute(t, "template", "--type", "minimal", "-o", path)
	if err != nil {
		t.Fatalf("template failed: %v", err)
	}
	if !strings.Contains(output, path) {
		t.Errorf("expected the output path to be reported, got: %s", output)
	}

	output, err = execute(t, "validate", "-v", path)
	if err != nil {
		t.Fatalf("generated template does not validate: %v", err)
	}
	if !strings.Contains(output, "is valid") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "Sources: 3") {
		t.Errorf("expected the built-in sources in the summary, got: %s", output)
	}
}

func TestTemplateToStdout(t *testing.T) {
	output, err := execute(t, "template", "--type", "full")
	if err != nil {
		t.Fatalf("template failed: %v", err)
	}
	for _, want := range []string{"driver: postgres", "AUTOSCRAPEXTER_DATABASE_URL", "default_mode: db_first"} {
		if !strings.Contains(output, want) {
			t.Errorf("full template should contain %q", want)
		}
	}

	if _, err := execute(t, "template", "--type", "ecommerce"); err == nil {
		t.Error("expected an unknown template type to fail")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, "search:\n  default_mode: sometimes\n")
	if _, err := execute(t, "validate", path); err == nil {
		t.Fatal("expected validation to fail")
	} else if !strings.Contains(err.Error(), "default_mode") {
		t.Errorf("error should name the field, got: %v", err)
	}

	if _, err := execute(t, "validate"); err == nil {
		t.Error("expected validate without a path to fail")
	}
}

func TestSourcesCommand(t *testing.T) {
	output, err := execute(t, "sources")
	if err != nil {
		t.Fatalf("sources failed: %v", err)
	}
	for _, name := range []string{"lacentrale", "leboncoin", "autoscout24"} {
		if !strings.Contains(output, name) {
			t.Errorf("expected source %s in output: %s", name, output)
		}
	}
}

func TestJobsCommand(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  enabled: false
  jobs:
    - name: nightly-308
      spec: "@daily"
      query: peugeot 308
      filters:
        price_max: 15000
`)
	output, err := execute(t, "--config", path, "jobs")
	if err != nil {
		t.Fatalf("jobs failed: %v", err)
	}
	for _, want := range []string{"nightly-308", "@daily", "peugeot 308", "price_max", "disabled"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output: %s", want, output)
		}
	}
}

func TestSearchCommand_CatalogOnly(t *testing.T) {
	output, err := execute(t, "--log-level", "error", "search", "--no-scrape", "peugeot", "308")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(output, "No listings found.") {
		t.Errorf("expected an empty result, got: %s", output)
	}
	if !strings.Contains(output, "0 results") {
		t.Errorf("expected a summary line, got: %s", output)
	}
}

func TestSearchCommand_InvalidMode(t *testing.T) {
	_, err := execute(t, "--log-level", "error", "search", "--mode", "sometimes", "golf")
	if err == nil {
		t.Fatal("expected an invalid mode to fail")
	}
	if !strings.Contains(err.Error(), "scraping_mode") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExportCommand_FromCatalog(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")

	cfg := config.Default()
	cfg.Catalog = catalog.Config{Driver: catalog.DriverSQLite, DSN: dbPath, AutoMigrate: true}
	store, err := catalog.Open(context.Background(), cfg.Catalog, nil)
	if err != nil {
		t.Skipf("sqlite catalog unavailable: %v", err)
	}
	_, err = store.Upsert(context.Background(), []listing.Listing{
		{Title: "Peugeot 308 GT Line", Make: "peugeot", Model: "308", Price: listing.Int64(14500), Year: listing.Int(2019), Source: "leboncoin", SourceURL: "https://www.leboncoin.fr/voitures/1.htm"},
		{Title: "Peugeot 308 SW", Make: "peugeot", Model: "308", Price: listing.Int64(21000), Year: listing.Int(2021), Source: "lacentrale", SourceURL: "https://www.lacentrale.fr/auto-occasion-annonce-2.html"},
		{Title: "Renault Clio", Make: "renault", Model: "clio", Price: listing.Int64(9000), Year: listing.Int(2017), Source: "leboncoin", SourceURL: "https://www.leboncoin.fr/voitures/3.htm"},
	})
	store.Close()
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := config.SaveToFile(cfg, configPath); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	out := filepath.Join(dir, "peugeot.csv")
	output, err := execute(t, "--config", configPath, "--log-level", "error", "export", "peugeot", "308", "--price-max", "15000", "-o", out)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(output, "Exported 1 listings") {
		t.Errorf("expected one listing under the price cap, got: %s", output)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if !strings.Contains(string(data), "Peugeot 308 GT Line") || strings.Contains(string(data), "Peugeot 308 SW") {
		t.Errorf("unexpected export content:\n%s", data)
	}

	if _, err := execute(t, "--config", configPath, "export", "-o", filepath.Join(dir, "out.pdf")); err == nil {
		t.Error("expected an unsupported format to fail")
	}
}

func TestLoad_LogLevelOverride(t *testing.T) {
	opts := &globalOptions{logLevel: "debug"}
	cfg, _, err := opts.load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}

	opts.logLevel = "loud"
	if _, _, err := opts.load(); err == nil {
		t.Error("expected an unknown level to fail")
	}
}
