// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/scheduler"
	"github.com/valpere/AutoScrapexter/internal/search"
)

// LoadFromFile loads configuration from a YAML file. A .env file next to it
// is read first; variables already set in the environment win.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	if err := LoadDotEnv(filepath.Join(filepath.Dir(filename), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadDotEnv loads KEY=value pairs into the environment. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromBytes parses YAML on top of Default, expands ${VAR} references and
// validates the result. Unknown keys are rejected.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	config := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// Load returns the configuration at filename, or Default when filename is
// empty.
func Load(filename string) (*Config, error) {
	if filename == "" {
		config := Default()
		applyDefaults(config)
		return config, nil
	}
	return LoadFromFile(filename)
}

// SaveToWriter validates and writes the configuration as YAML.
func SaveToWriter(config *Config, writer io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}
	return enc.Close()
}

// SaveToFile writes the configuration to filename, creating its directory.
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	var buf bytes.Buffer
	if err := SaveToWriter(config, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// GenerateTemplate returns a starting configuration. "minimal" keeps
// everything in memory; "full" shows every backend.
func GenerateTemplate(templateType string) *Config {
	switch strings.ToLower(templateType) {
	case "full", "production":
		return generateFullTemplate()
	default:
		return generateMinimalTemplate()
	}
}

func generateMinimalTemplate() *Config {
	config := Default()
	config.Logging.Format = "console"
	return config
}

func generateFullTemplate() *Config {
	config := Default()
	config.Browser.Enabled = true
	config.Catalog = catalog.Config{
		Driver:       catalog.DriverPostgres,
		DSN:          "${AUTOSCRAPEXTER_DATABASE_URL}",
		MaxOpenConns: 20,
		AutoMigrate:  true,
	}
	config.History.Mongo.URI = "${AUTOSCRAPEXTER_MONGO_URI}"
	config.History.Mongo.Retention = 90 * 24 * time.Hour
	config.Cache.Enabled = true
	config.Cache.Addr = "${AUTOSCRAPEXTER_REDIS_ADDR}"
	config.Search.DefaultMode = search.ModeDBFirst
	config.Scheduler = scheduler.Config{
		Enabled: true,
		Jobs: []scheduler.Job{
			{Name: "peugeot-308", Spec: "0 */6 * * *", Query: "peugeot 308", MaxPages: 2},
			{
				Name:    "cheap-diesel",
				Spec:    "@daily",
				Query:   "diesel",
				Filters: listing.Filters{PriceMax: listing.Int64(8000), FuelType: "diesel"},
			},
		},
	}
	return config
}

// Helper functions

// expandEnvironmentVariables substitutes ${VAR} and $VAR references.
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills values that are empty after decoding. Explicit
// out-of-range numbers are left for Validate to report.
func applyDefaults(config *Config) {
	defaults := Default()

	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Logging.Level
	}
	if config.Logging.Format == "" {
		config.Logging.Format = defaults.Logging.Format
	}

	if config.Catalog.Driver == "" {
		config.Catalog.Driver = catalog.DriverMemory
	}

	config.Search.DefaultMode = search.Mode(strings.ToLower(strings.TrimSpace(string(config.Search.DefaultMode))))
	if config.Search.DefaultMode == "" {
		config.Search.DefaultMode = defaults.Search.DefaultMode
	}

	if config.Cache.Prefix == "" {
		config.Cache.Prefix = defaults.Cache.Prefix
	}

	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = defaults.Metrics.Path
	}

	if config.History.Mongo.URI != "" {
		if config.History.Mongo.Database == "" {
			config.History.Mongo.Database = "autoscrapexter"
		}
		if config.History.Mongo.Collection == "" {
			config.History.Mongo.Collection = "search_history"
		}
	}
}
