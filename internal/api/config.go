// internal/api/config.go
package api

import "time"

// Config controls the HTTP listener and per-client limits.
type Config struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit    float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst    int     `yaml:"rate_burst" json:"rate_burst"`
	MaxBodyBytes int64   `yaml:"max_body_bytes" json:"max_body_bytes"`
	TrustProxy   bool    `yaml:"trust_proxy" json:"trust_proxy"`
}

// DefaultConfig listens on :8080. The write timeout leaves room for a live
// aggregation.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       5,
		RateBurst:       10,
		MaxBodyBytes:    1 << 20,
	}
}
