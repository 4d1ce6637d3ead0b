// internal/browser/types.go
package browser

import (
	"context"
	"time"
)

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	Headless       bool          `yaml:"headless" json:"headless"`
	UserDataDir    string        `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	ExecPath       string        `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	WaitForElement string        `yaml:"wait_for_element,omitempty" json:"wait_for_element,omitempty"`
	WaitDelay      time.Duration `yaml:"wait_delay,omitempty" json:"wait_delay,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
	MaxSessions    int           `yaml:"max_sessions" json:"max_sessions"`
	UserAgents     []string      `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Enabled:       false,
		Headless:      true,
		Timeout:       30 * time.Second,
		WaitDelay:     2 * time.Second,
		DisableImages: true, // Faster loading
		MaxSessions:   4,
	}
}

// Renderer turns a URL into rendered HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// Factory creates a new Renderer for the pool.
type Factory func(ctx context.Context) (Renderer, error)

// SessionStats contains rendering statistics for one session
type SessionStats struct {
	PagesLoaded     int           `json:"pages_loaded"`
	AverageLoadTime time.Duration `json:"average_load_time"`
	Errors          int           `json:"errors"`
	Timeouts        int           `json:"timeouts"`
}

// PoolStats describes session pool usage
type PoolStats struct {
	MaxSessions int   `json:"max_sessions"`
	InUse       int   `json:"in_use"`
	Idle        int   `json:"idle"`
	Created     int64 `json:"created"`
	Reused      int64 `json:"reused"`
	Discarded   int64 `json:"discarded"`
}
