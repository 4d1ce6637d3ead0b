// internal/monitoring/metrics.go
package monitoring

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/listing"
)

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// DefaultMetricsConfig returns enabled metrics under /metrics.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "autoscrapexter", Path: "/metrics"}
}

// Metrics holds the Prometheus collectors for fetching, aggregation, search
// and the HTTP API. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	// Fetch metrics
	pagesFetched   *prometheus.CounterVec
	pageDuration   *prometheus.HistogramVec
	recordsDropped *prometheus.CounterVec

	// Aggregation metrics
	sourceOutcomes  *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	sourceRecords   *prometheus.CounterVec
	aggregations    prometheus.Counter
	aggregateTime   prometheus.Histogram
	aggregateTotals prometheus.Histogram

	// Catalog metrics
	upserts       *prometheus.CounterVec
	catalogQuery  *prometheus.HistogramVec
	catalogErrors *prometheus.CounterVec

	// Search metrics
	searches       *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec

	// HTTP metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	namespace string
}

// NewMetrics creates the collectors on a fresh registry, including the Go
// runtime and process collectors.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = DefaultMetricsConfig().Namespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry:  reg,
		factory:   promauto.With(reg),
		namespace: config.Namespace,
	}
	m.initializeMetrics()
	return m
}

func (m *Metrics) initializeMetrics() {
	ns := m.namespace

	m.pagesFetched = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "source",
			Name:      "pages_fetched_total",
			Help:      "Result pages fetched per source and outcome",
		},
		[]string{"source", "outcome"},
	)

	m.pageDuration = m.factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "source",
			Name:      "page_duration_seconds",
			Help:      "Time to render and extract one result page",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"source"},
	)

	m.recordsDropped = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "source",
			Name:      "records_dropped_total",
			Help:      "Listing cards dropped for missing required fields",
		},
		[]string{"source"},
	)

	m.sourceOutcomes = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "aggregator",
			Name:      "source_fetches_total",
			Help:      "Source fetch tasks by outcome kind",
		},
		[]string{"source", "outcome"},
	)

	m.sourceDuration = m.factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "aggregator",
			Name:      "source_duration_seconds",
			Help:      "Duration of one source fetch task including retries",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"source"},
	)

	m.sourceRecords = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "aggregator",
			Name:      "records_normalized_total",
			Help:      "Listings normalized per source",
		},
		[]string{"source"},
	)

	m.aggregations = m.factory.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "aggregator",
		Name:      "aggregations_total",
		Help:      "Completed aggregation calls",
	})

	m.aggregateTime = m.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "aggregator",
		Name:      "aggregation_duration_seconds",
		Help:      "Duration of one aggregation call",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
	})

	m.aggregateTotals = m.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "aggregator",
		Name:      "unique_listings",
		Help:      "Unique listings returned per aggregation call",
		Buckets:   prometheus.LinearBuckets(0, 20, 10),
	})

	m.upserts = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "catalog",
			Name:      "upserts_total",
			Help:      "Listings offered to the catalog by result",
		},
		[]string{"result"},
	)

	m.catalogQuery = m.factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "catalog",
			Name:      "operation_duration_seconds",
			Help:      "Catalog operation duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.catalogErrors = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "catalog",
			Name:      "errors_total",
			Help:      "Failed catalog operations",
		},
		[]string{"operation"},
	)

	m.searches = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "search",
			Name:      "searches_total",
			Help:      "Hybrid searches by mode and whether live fetching ran",
		},
		[]string{"mode", "live"},
	)

	m.searchDuration = m.factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Hybrid search duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 90},
		},
		[]string{"live"},
	)

	m.requestsTotal = m.factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	m.requestDuration = m.factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObservePage records one fetched page.
func (m *Metrics) ObservePage(source string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pagesFetched.WithLabelValues(source, outcome).Inc()
	m.pageDuration.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveDropped records cards dropped during extraction.
func (m *Metrics) ObserveDropped(source string, n int) {
	m.recordsDropped.WithLabelValues(source).Add(float64(n))
}

// ObserveSource records the outcome of one fetch task.
func (m *Metrics) ObserveSource(source string, d time.Duration, stats listing.SourceStats) {
	outcome := "success"
	if !stats.Success {
		outcome = stats.Error
		if outcome == "" {
			outcome = "error"
		}
	}
	m.sourceOutcomes.WithLabelValues(source, outcome).Inc()
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
	if stats.Count > 0 {
		m.sourceRecords.WithLabelValues(source).Add(float64(stats.Count))
	}
}

// ObserveAggregate records one aggregation call.
func (m *Metrics) ObserveAggregate(d time.Duration, total int) {
	m.aggregations.Inc()
	m.aggregateTime.Observe(d.Seconds())
	m.aggregateTotals.Observe(float64(total))
}

// ObserveSearch records one hybrid search.
func (m *Metrics) ObserveSearch(mode string, live bool, d time.Duration, total int) {
	l := strconv.FormatBool(live)
	m.searches.WithLabelValues(mode, l).Inc()
	m.searchDuration.WithLabelValues(l).Observe(d.Seconds())
}

// ObserveUpsert records how many offered listings were new.
func (m *Metrics) ObserveUpsert(offered, inserted int) {
	m.upserts.WithLabelValues("inserted").Add(float64(inserted))
	if ignored := offered - inserted; ignored > 0 {
		m.upserts.WithLabelValues("ignored").Add(float64(ignored))
	}
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RegisterGauge exposes a value read at scrape time.
func (m *Metrics) RegisterGauge(subsystem, name, help string, fn func() float64) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// RegisterCounter exposes a monotonically increasing value read at scrape
// time.
func (m *Metrics) RegisterCounter(subsystem, name, help string, fn func() float64) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InstrumentedStore records catalog operation metrics around a Store.
type InstrumentedStore struct {
	catalog.Store
	metrics *Metrics
}

// InstrumentStore wraps store.
func InstrumentStore(store catalog.Store, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{Store: store, metrics: m}
}

// Upsert forwards and records inserted versus ignored listings.
func (s *InstrumentedStore) Upsert(ctx context.Context, listings []listing.Listing) (int, error) {
	start := time.Now()
	n, err := s.Store.Upsert(ctx, listings)
	s.observe("upsert", start, err)
	if err == nil {
		s.metrics.ObserveUpsert(len(listings), n)
	}
	return n, err
}

// Query forwards and records duration.
func (s *InstrumentedStore) Query(ctx context.Context, q catalog.Query) ([]listing.Listing, error) {
	start := time.Now()
	rows, err := s.Store.Query(ctx, q)
	s.observe("query", start, err)
	return rows, err
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	s.metrics.catalogQuery.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.catalogErrors.WithLabelValues(op).Inc()
	}
}
