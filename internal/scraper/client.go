// internal/scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/valpere/AutoScrapexter/internal/antidetect"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// maxBodySize caps how much of a listing page is read.
const maxBodySize = 8 << 20

// HTTPClient fetches pages with rotated browser headers. Requests are rate
// limited per target host, so one site never spends another site's budget.
type HTTPClient struct {
	httpClient    *http.Client
	headers       *antidetect.HeaderRotator
	rateLimiter   *utils.KeyedRateLimiter
	retryAttempts int
	retryDelay    time.Duration
	extraHeaders  map[string]string
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout time.Duration
	// RetryAttempts applies to retryable status codes only. Transport
	// failures are returned at once so the caller decides about retries.
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgents    []string
	Headers       map[string]string
	RateLimit     float64 // requests per second per host
	RateBurst     int
	Transport     http.RoundTripper
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}

	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &HTTPClient{
		httpClient:    &http.Client{Timeout: config.Timeout, Transport: transport},
		headers:       antidetect.NewHeaderRotator(antidetect.NewUserAgentRotator(config.UserAgents)),
		rateLimiter:   utils.NewKeyedRateLimiter(config.RateLimit, config.RateBurst, 0),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		extraHeaders:  config.Headers,
	}
}

// Get fetches targetURL and returns the body. Non-2xx responses come back as
// *HTTPError.
func (c *HTTPClient) Get(ctx context.Context, targetURL string) (string, error) {
	u, err := url.ParseRequestURI(targetURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx, u.Host); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		c.setRequestHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			resp.Body.Close()
			if err != nil {
				return "", fmt.Errorf("failed to read body: %w", err)
			}
			return string(body), nil
		}

		resp.Body.Close()
		lastErr = &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: targetURL, Attempt: attempt + 1}

		if !shouldRetryStatusCode(resp.StatusCode) || attempt == c.retryAttempts {
			break
		}
		if err := c.waitForRetry(ctx, attempt); err != nil {
			break
		}
	}

	return "", lastErr
}

// setRequestHeaders applies rotated browser headers plus configured extras
func (c *HTTPClient) setRequestHeaders(req *http.Request) {
	for key, values := range c.headers.GetHeaders() {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	for key, value := range c.extraHeaders {
		req.Header.Set(key, value)
	}
}

// waitForRetry implements exponential backoff with jitter
func (c *HTTPClient) waitForRetry(ctx context.Context, attempt int) error {
	backoff := c.retryDelay * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shouldRetryStatusCode determines if a status code warrants a retry. 429 is
// excluded: it is a block signal, not a transient failure.
func shouldRetryStatusCode(statusCode int) bool {
	switch statusCode {
	case 500, 502, 503, 504, 520, 521, 522, 523, 524:
		return true
	}
	return false
}

// HTTPError represents an HTTP-related error with additional context
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Attempt    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s, Attempt: %d)",
		e.StatusCode, e.Status, e.URL, e.Attempt)
}

// IsBlockStatus reports whether the status is how sites refuse bots.
func (e *HTTPError) IsBlockStatus() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}
