// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Latency  time.Duration          `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON renders latency in milliseconds.
func (r HealthCheckResult) MarshalJSON() ([]byte, error) {
	type alias HealthCheckResult
	return json.Marshal(struct {
		alias
		LatencyMS float64 `json:"latency_ms"`
	}{alias(r), float64(r.Latency.Microseconds()) / 1000})
}

// HealthCheck is one component probe. A failing critical check makes the
// whole service unhealthy; a failing non-critical one degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(ctx context.Context) HealthCheckResult
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status     HealthStatus                 `json:"status"`
	Timestamp  time.Time                    `json:"timestamp"`
	Version    string                       `json:"version,omitempty"`
	Uptime     string                       `json:"uptime"`
	Components map[string]HealthCheckResult `json:"components"`
	Summary    HealthSummary                `json:"summary"`
	Goroutines int                          `json:"goroutines"`
}

// HealthSummary provides a summary of health checks
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	mu             sync.RWMutex
	checks         map[string]HealthCheck
	defaultTimeout time.Duration
	version        string
	started        time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string, defaultTimeout time.Duration) *HealthManager {
	if defaultTimeout <= 0 {
		defaultTimeout = 3 * time.Second
	}
	return &HealthManager{
		checks:         make(map[string]HealthCheck),
		defaultTimeout: defaultTimeout,
		version:        version,
		started:        time.Now(),
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check HealthCheck) {
	if check.Timeout <= 0 {
		check.Timeout = hm.defaultTimeout
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Names lists registered checks.
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check concurrently and aggregates the results.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()

	results := make([]HealthCheckResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, c HealthCheck) {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}(i, c)
	}
	wg.Wait()

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    hm.version,
		Uptime:     time.Since(hm.started).Round(time.Second).String(),
		Components: make(map[string]HealthCheckResult, len(checks)),
		Goroutines: runtime.NumGoroutine(),
	}
	for i, c := range checks {
		r := results[i]
		health.Components[c.Name] = r
		health.Summary.Total++
		switch r.Status {
		case HealthStatusHealthy:
			health.Summary.Healthy++
		case HealthStatusDegraded:
			health.Summary.Degraded++
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			health.Summary.Unhealthy++
			if c.Critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}
	return health
}

func runCheck(ctx context.Context, c HealthCheck) (result HealthCheckResult) {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	done := make(chan HealthCheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- HealthCheckResult{Status: HealthStatusUnhealthy, Error: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- c.Check(checkCtx)
	}()

	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = HealthCheckResult{Status: HealthStatusUnhealthy, Error: "check timed out"}
	}
	return result
}

// HealthHandler serves the aggregated report. Unhealthy is 503.
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// PingCheck turns a connectivity probe into a health check.
func PingCheck(name string, critical bool, ping func(ctx context.Context) error) HealthCheck {
	return HealthCheck{
		Name:     name,
		Critical: critical,
		Check: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "ping failed", Error: err.Error()}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: "reachable"}
		},
	}
}

// PoolCheck reports a worker or session pool. A pool with every slot busy is
// degraded.
func PoolCheck(name string, stats func() (busy, size int)) HealthCheck {
	return HealthCheck{
		Name: name,
		Check: func(context.Context) HealthCheckResult {
			busy, size := stats()
			meta := map[string]interface{}{"busy": busy, "size": size}
			if size > 0 && busy >= size {
				return HealthCheckResult{Status: HealthStatusDegraded, Message: "pool saturated", Metadata: meta}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Metadata: meta}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) HealthCheck {
	return HealthCheck{
		Name: "goroutines",
		Check: func(context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			meta := map[string]interface{}{"goroutine_count": count, "max_allowed": maxGoroutines}
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: meta,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Metadata: meta}
		},
	}
}
