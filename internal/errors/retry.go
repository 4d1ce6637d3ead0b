// internal/errors/retry.go
package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
	Jitter        bool          `yaml:"jitter" json:"jitter"`
}

// DefaultRetryConfig retries a single time after one second.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    1,
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Second,
		Jitter:        true,
	}
}

// Retry runs op until it succeeds, shouldRetry rejects the error, retries are
// exhausted or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, op func(attempt int) error, shouldRetry func(error) bool) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err = op(attempt)
		if err == nil {
			return nil
		}
		if attempt == cfg.MaxRetries || (shouldRetry != nil && !shouldRetry(err)) {
			return err
		}

		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// IsRetryableFetch is a shouldRetry predicate for FetchErrors.
func IsRetryableFetch(err error) bool {
	k, ok := KindOf(err)
	return ok && k == NetworkError
}

// Delay returns the backoff before retry number attempt+1.
func (c RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(c.BaseDelay)
	factor := c.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	for i := 0; i < attempt; i++ {
		delay *= factor
	}
	if c.MaxDelay > 0 && time.Duration(delay) > c.MaxDelay {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter && delay > 0 {
		// +/- 10%
		delay += (rand.Float64()*0.2 - 0.1) * delay
	}
	return time.Duration(delay)
}
