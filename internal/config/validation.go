// internal/config/validation.go
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/search"
	"github.com/valpere/AutoScrapexter/internal/sources"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) fail(field string, value interface{}, format string, args ...interface{}) {
	v := ""
	if value != nil {
		v = fmt.Sprint(value)
	}
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: v, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateServer(result)
	c.validateLogging(result)
	c.validateFetching(result)
	profiles := c.validateSources(result)
	c.validateAggregator(result)
	c.validateSearch(result)
	c.validateStorage(result)
	c.validateScheduler(result, profiles)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateServer(result *ValidationResult) {
	s := c.Server
	if s.Addr == "" {
		result.fail("server.addr", nil, "Listen address is required")
	}
	if s.ReadTimeout <= 0 {
		result.fail("server.read_timeout", s.ReadTimeout, "Read timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		result.fail("server.write_timeout", s.WriteTimeout, "Write timeout must be positive")
	} else if s.WriteTimeout < c.Aggregator.RequestDeadline {
		result.warn("server.write_timeout (%v) is shorter than aggregator.request_deadline (%v); live searches may be cut off", s.WriteTimeout, c.Aggregator.RequestDeadline)
	}
	if s.ShutdownTimeout < 0 {
		result.fail("server.shutdown_timeout", s.ShutdownTimeout, "Shutdown timeout must not be negative")
	}
	if s.RateLimit < 0 {
		result.fail("server.rate_limit", s.RateLimit, "Rate limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst < 1 {
		result.fail("server.rate_burst", s.RateBurst, "Rate burst must be at least 1 when rate limiting is on")
	}
	if s.MaxBodyBytes <= 0 {
		result.fail("server.max_body_bytes", s.MaxBodyBytes, "Request body limit must be positive")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		result.fail("metrics.path", c.Metrics.Path, "Metrics path must start with /")
	}
}

func (c *Config) validateLogging(result *ValidationResult) {
	if _, err := utils.ParseLevel(c.Logging.Level); err != nil {
		result.fail("logging.level", c.Logging.Level, "Unknown log level")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		result.fail("logging.format", c.Logging.Format, "Log format must be json or console")
	}
}

func (c *Config) validateFetching(result *ValidationResult) {
	h := c.HTTP
	if h.Timeout <= 0 {
		result.fail("http.timeout", h.Timeout, "HTTP timeout must be positive")
	}
	if h.RetryAttempts < 0 {
		result.fail("http.retry_attempts", h.RetryAttempts, "Retry attempts must not be negative")
	}
	if h.RateLimit <= 0 {
		result.fail("http.rate_limit", h.RateLimit, "Rate limit must be positive")
	}
	if h.RateBurst < 1 {
		result.fail("http.rate_burst", h.RateBurst, "Rate burst must be at least 1")
	}
	if h.MaxSessions < 1 {
		result.fail("http.max_sessions", h.MaxSessions, "At least one HTTP session is required")
	}

	b := c.Browser
	if b.Enabled {
		if b.Timeout <= 0 {
			result.fail("browser.timeout", b.Timeout, "Browser timeout must be positive")
		}
		if b.MaxSessions < 1 {
			result.fail("browser.max_sessions", b.MaxSessions, "At least one browser session is required")
		}
	}
}

// validateSources resolves the profiles so overrides are checked the same
// way the registry will see them.
func (c *Config) validateSources(result *ValidationResult) []sources.SiteProfile {
	seen := make(map[string]bool, len(c.Sources))
	for i, p := range c.Sources {
		field := fmt.Sprintf("sources[%d].name", i)
		if p.Name == "" {
			result.fail(field, nil, "Source name is required")
			continue
		}
		if seen[p.Name] {
			result.fail(field, p.Name, "Duplicate source override")
		}
		seen[p.Name] = true
	}

	profiles, err := sources.ResolveProfiles(c.Sources)
	if err != nil {
		result.fail("sources", nil, "%v", err)
		return nil
	}
	if len(profiles) == 0 {
		result.warn("every source is disabled; only the catalog will answer searches")
	}
	return profiles
}

func (c *Config) validateAggregator(result *ValidationResult) {
	a := c.Aggregator
	if a.MaxConcurrency < 1 {
		result.fail("aggregator.max_concurrency", a.MaxConcurrency, "Concurrency must be at least 1")
	}
	if a.QueueSize < 0 {
		result.fail("aggregator.queue_size", a.QueueSize, "Queue size must not be negative")
	}
	if a.TaskTimeout <= 0 {
		result.fail("aggregator.task_timeout", a.TaskTimeout, "Task timeout must be positive")
	}
	if a.RequestDeadline <= 0 {
		result.fail("aggregator.request_deadline", a.RequestDeadline, "Request deadline must be positive")
	} else if a.TaskTimeout > a.RequestDeadline {
		result.warn("aggregator.task_timeout (%v) exceeds request_deadline (%v); the deadline wins", a.TaskTimeout, a.RequestDeadline)
	}
	if a.Retry.MaxRetries < 0 {
		result.fail("aggregator.retry.max_retries", a.Retry.MaxRetries, "Retries must not be negative")
	}
	if a.Retry.BaseDelay < 0 {
		result.fail("aggregator.retry.base_delay", a.Retry.BaseDelay, "Retry delay must not be negative")
	}
}

func (c *Config) validateSearch(result *ValidationResult) {
	s := c.Search
	if _, err := search.ParseMode(string(s.DefaultMode)); err != nil {
		result.fail("search.default_mode", s.DefaultMode, "Scraping mode must be one of %s", joinModes())
	}
	if s.Threshold < 0 {
		result.fail("search.threshold", s.Threshold, "Threshold must not be negative")
	}
	if s.DBCap < 0 {
		result.fail("search.db_cap", s.DBCap, "Catalog cap must not be negative")
	} else if s.DBCap > catalog.DefaultLimit {
		result.warn("search.db_cap %d is above the catalog limit and will be capped at %d", s.DBCap, catalog.DefaultLimit)
	}
	if s.PageCap < 0 {
		result.fail("search.page_cap", s.PageCap, "Page cap must not be negative")
	}
	if s.MaxSize < 0 || s.DefaultSize < 0 {
		result.fail("search.max_size", s.MaxSize, "Page sizes must not be negative")
	} else if s.MaxSize > 0 && s.DefaultSize > s.MaxSize {
		result.fail("search.default_size", s.DefaultSize, "Default page size exceeds max_size %d", s.MaxSize)
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	cat := c.Catalog
	if !slices.Contains(catalog.Drivers(), cat.Driver) {
		result.fail("catalog.driver", cat.Driver, "Catalog driver must be one of %s", strings.Join(catalog.Drivers(), ", "))
	} else if cat.Driver != catalog.DriverMemory && cat.DSN == "" {
		result.fail("catalog.dsn", nil, "DSN is required for the %s driver", cat.Driver)
	}
	if cat.MaxOpenConns < 0 {
		result.fail("catalog.max_open_conns", cat.MaxOpenConns, "Connection limit must not be negative")
	}
	if c.Aggregator.Persist && cat.Driver == catalog.DriverMemory {
		result.warn("catalog uses the memory driver; persisted listings are lost on restart")
	}

	h := c.History
	if h.MemoryCapacity < 0 {
		result.fail("history.memory_capacity", h.MemoryCapacity, "History memory capacity cannot be negative")
	}
	if h.Enabled && h.Buffer < 1 {
		result.fail("history.buffer", h.Buffer, "History buffer must be at least 1")
	}
	if h.Mongo.Timeout < 0 {
		result.fail("history.mongo.timeout", h.Mongo.Timeout, "Timeout must not be negative")
	}
	if h.Mongo.Retention < 0 {
		result.fail("history.mongo.retention", h.Mongo.Retention, "Retention must not be negative")
	}

	ch := c.Cache
	if ch.Enabled {
		if ch.Addr == "" {
			result.fail("cache.addr", nil, "Redis address is required when the cache is enabled")
		}
		if ch.TTL <= 0 {
			result.fail("cache.ttl", ch.TTL, "Cache TTL must be positive")
		}
	}
}

func (c *Config) validateScheduler(result *ValidationResult, profiles []sources.SiteProfile) {
	if !c.Scheduler.Enabled {
		return
	}
	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		known[p.Name] = true
	}

	seen := make(map[string]bool, len(c.Scheduler.Jobs))
	for i, job := range c.Scheduler.Jobs {
		field := fmt.Sprintf("scheduler.jobs[%d]", i)
		if err := job.Validate(); err != nil {
			result.fail(field, job.Name, "%v", err)
			continue
		}
		if seen[job.Name] {
			result.fail(field+".name", job.Name, "Duplicate job name")
		}
		seen[job.Name] = true
		// Unknown sources are only checked when profiles resolved.
		if profiles == nil {
			continue
		}
		for _, name := range job.Sources {
			if !known[name] {
				result.fail(field+".sources", name, "Unknown source")
			}
		}
	}
	if len(c.Scheduler.Jobs) == 0 {
		result.warn("scheduler is enabled but has no jobs")
	}
}

func joinModes() string {
	modes := search.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("Configuration validation failed:\n")

	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		errorMsg.WriteString("\nWarnings:\n")
		for i, warning := range result.Warnings {
			errorMsg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, warning))
		}
	}

	return fmt.Errorf("%s", errorMsg.String())
}
