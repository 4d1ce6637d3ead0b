// internal/monitoring/monitoring_test.go
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/listing"
)

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.ObservePage("leboncoin", 300*time.Millisecond, nil)
	m.ObservePage("leboncoin", time.Second, errors.New("blocked"))
	m.ObserveDropped("leboncoin", 2)
	m.ObserveSource("leboncoin", 2*time.Second, listing.SourceStats{Count: 12, Success: true})
	m.ObserveSource("lacentrale", time.Second, listing.SourceStats{Error: "network_error"})
	m.ObserveAggregate(3*time.Second, 12)
	m.ObserveSearch("auto", true, 3*time.Second, 14)
	m.ObserveHTTP("POST", "/search", 200, 3*time.Second)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"pages ok", testutil.ToFloat64(m.pagesFetched.WithLabelValues("leboncoin", "ok")), 1},
		{"pages error", testutil.ToFloat64(m.pagesFetched.WithLabelValues("leboncoin", "error")), 1},
		{"dropped", testutil.ToFloat64(m.recordsDropped.WithLabelValues("leboncoin")), 2},
		{"source success", testutil.ToFloat64(m.sourceOutcomes.WithLabelValues("leboncoin", "success")), 1},
		{"source failure kind", testutil.ToFloat64(m.sourceOutcomes.WithLabelValues("lacentrale", "network_error")), 1},
		{"records", testutil.ToFloat64(m.sourceRecords.WithLabelValues("leboncoin")), 12},
		{"aggregations", testutil.ToFloat64(m.aggregations), 1},
		{"searches", testutil.ToFloat64(m.searches.WithLabelValues("auto", "true")), 1},
		{"http", testutil.ToFloat64(m.requestsTotal.WithLabelValues("POST", "/search", "200")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics(DefaultMetricsConfig())
	b := NewMetrics(DefaultMetricsConfig())
	a.ObserveAggregate(time.Second, 1)

	if testutil.ToFloat64(b.aggregations) != 0 {
		t.Error("expected registries to be independent")
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "test"})
	m.RegisterGauge("pool", "busy_workers", "Busy workers", func() float64 { return 3 })
	m.RegisterCounter("history", "dropped_total", "Dropped entries", func() float64 { return 7 })
	m.ObserveSearch("never", false, time.Millisecond, 0)

	srv := httptest.NewServer(m.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"test_pool_busy_workers 3",
		"test_history_dropped_total 7",
		`test_search_searches_total{live="false",mode="never"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestInstrumentedStore(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	store := InstrumentStore(catalog.NewMemoryStore(), m)
	ctx := context.Background()

	batch := []listing.Listing{
		{Title: "Fiat 500", SourceURL: "https://x/1"},
		{Title: "Fiat Panda", SourceURL: "https://x/2"},
	}
	if _, err := store.Upsert(ctx, batch); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Upsert(ctx, batch); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Query(ctx, catalog.Query{Text: "fiat"}); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.upserts.WithLabelValues("inserted")); got != 2 {
		t.Errorf("expected 2 inserted, got %v", got)
	}
	if got := testutil.ToFloat64(m.upserts.WithLabelValues("ignored")); got != 2 {
		t.Errorf("expected 2 ignored, got %v", got)
	}
	if n := testutil.CollectAndCount(m.catalogQuery); n != 2 {
		t.Errorf("expected upsert and query histograms, got %d series", n)
	}
}

func TestHealthManager_Check(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthCheck
		want   HealthStatus
	}{
		{
			"all healthy",
			[]HealthCheck{PingCheck("catalog", true, func(context.Context) error { return nil })},
			HealthStatusHealthy,
		},
		{
			"non-critical failure degrades",
			[]HealthCheck{
				PingCheck("catalog", true, func(context.Context) error { return nil }),
				PingCheck("cache", false, func(context.Context) error { return errors.New("refused") }),
			},
			HealthStatusDegraded,
		},
		{
			"critical failure",
			[]HealthCheck{PingCheck("catalog", true, func(context.Context) error { return errors.New("down") })},
			HealthStatusUnhealthy,
		},
		{
			"saturated pool degrades",
			[]HealthCheck{PoolCheck("workers", func() (int, int) { return 4, 4 })},
			HealthStatusDegraded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hm := NewHealthManager("test", time.Second)
			for _, c := range tt.checks {
				hm.RegisterCheck(c)
			}
			got := hm.Check(context.Background())
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s (%+v)", tt.want, got.Status, got.Components)
			}
			if got.Summary.Total != len(tt.checks) {
				t.Errorf("expected %d checks, got %d", len(tt.checks), got.Summary.Total)
			}
		})
	}
}

func TestHealthManager_TimeoutAndPanic(t *testing.T) {
	hm := NewHealthManager("test", 20*time.Millisecond)
	hm.RegisterCheck(PingCheck("slow", true, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	}))
	hm.RegisterCheck(HealthCheck{Name: "broken", Check: func(context.Context) HealthCheckResult { panic("boom") }})

	start := time.Now()
	got := hm.Check(context.Background())
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("check did not honour its timeout")
	}
	if got.Components["slow"].Error != "check timed out" {
		t.Errorf("unexpected slow result %+v", got.Components["slow"])
	}
	if !strings.Contains(got.Components["broken"].Error, "panicked") {
		t.Errorf("unexpected broken result %+v", got.Components["broken"])
	}
	if got.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", got.Status)
	}
}

func TestHealthHandler(t *testing.T) {
	hm := NewHealthManager("1.2.3", time.Second)
	hm.RegisterCheck(PingCheck("catalog", true, func(context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	hm.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	comp := body["components"].(map[string]interface{})["catalog"].(map[string]interface{})
	if comp["status"] != "unhealthy" || comp["error"] != "down" {
		t.Errorf("unexpected component %+v", comp)
	}
	if _, ok := comp["latency_ms"]; !ok {
		t.Error("expected latency_ms in component report")
	}
	if body["version"] != "1.2.3" {
		t.Errorf("unexpected version %v", body["version"])
	}
}
