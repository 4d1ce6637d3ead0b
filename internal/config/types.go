// internal/config/types.go

// Package config loads the service configuration: listener, logging, fetching,
// site profile overrides, aggregation, search policy and storage backends.
package config

import (
	"time"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/api"
	"github.com/valpere/AutoScrapexter/internal/browser"
	"github.com/valpere/AutoScrapexter/internal/cache"
	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/history"
	"github.com/valpere/AutoScrapexter/internal/monitoring"
	"github.com/valpere/AutoScrapexter/internal/scheduler"
	"github.com/valpere/AutoScrapexter/internal/scraper"
	"github.com/valpere/AutoScrapexter/internal/search"
	"github.com/valpere/AutoScrapexter/internal/sources"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Config is the root of the configuration file.
type Config struct {
	Server  api.Config            `yaml:"server" json:"server"`
	Logging utils.LogConfig       `yaml:"logging" json:"logging"`
	HTTP    HTTPConfig            `yaml:"http" json:"http"`
	Browser browser.BrowserConfig `yaml:"browser" json:"browser"`

	// Sources override built-in site profiles by name. Unknown names add a
	// new profile.
	Sources []sources.SiteProfile `yaml:"sources,omitempty" json:"sources,omitempty"`

	Aggregator aggregator.Config        `yaml:"aggregator" json:"aggregator"`
	Search     search.Config            `yaml:"search" json:"search"`
	Catalog    catalog.Config           `yaml:"catalog" json:"catalog"`
	History    HistoryConfig            `yaml:"history" json:"history"`
	Cache      cache.Config             `yaml:"cache" json:"cache"`
	Metrics    monitoring.MetricsConfig `yaml:"metrics" json:"metrics"`
	Scheduler  scheduler.Config         `yaml:"scheduler" json:"scheduler"`
}

// HTTPConfig configures the static page fetcher.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// RetryAttempts re-requests 5xx responses only.
	RetryAttempts int               `yaml:"retry_attempts" json:"retry_attempts"`
	RetryDelay    time.Duration     `yaml:"retry_delay" json:"retry_delay"`
	RateLimit     float64           `yaml:"rate_limit" json:"rate_limit"`
	RateBurst     int               `yaml:"rate_burst" json:"rate_burst"`
	MaxSessions   int               `yaml:"max_sessions" json:"max_sessions"`
	UserAgents    []string          `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ClientConfig converts to the fetcher's own configuration.
func (h HTTPConfig) ClientConfig() scraper.ClientConfig {
	return scraper.ClientConfig{
		Timeout:       h.Timeout,
		RetryAttempts: h.RetryAttempts,
		RetryDelay:    h.RetryDelay,
		UserAgents:    h.UserAgents,
		Headers:       h.Headers,
		RateLimit:     h.RateLimit,
		RateBurst:     h.RateBurst,
	}
}

// HistoryConfig selects where search history goes. Without a Mongo URI the
// history is kept in memory, bounded to MemoryCapacity entries.
type HistoryConfig struct {
	Enabled        bool                `yaml:"enabled" json:"enabled"`
	Buffer         int                 `yaml:"buffer" json:"buffer"`
	MemoryCapacity int                 `yaml:"memory_capacity" json:"memory_capacity"`
	Mongo          history.MongoConfig `yaml:"mongo" json:"mongo"`
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server:  api.DefaultConfig(),
		Logging: utils.LogConfig{Level: "info", Format: "json"},
		HTTP: HTTPConfig{
			Timeout:     30 * time.Second,
			RetryDelay:  time.Second,
			RateLimit:   1,
			RateBurst:   5,
			MaxSessions: 8,
		},
		Browser:    *browser.DefaultBrowserConfig(),
		Aggregator: aggregator.DefaultConfig(),
		Search:     search.DefaultConfig(),
		Catalog:    catalog.Config{Driver: catalog.DriverMemory, AutoMigrate: true},
		History:    HistoryConfig{Enabled: true, Buffer: 256, MemoryCapacity: history.DefaultMemoryCapacity},
		Cache:      cache.DefaultConfig(),
		Metrics:    monitoring.DefaultMetricsConfig(),
	}
}
