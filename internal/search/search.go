// internal/search/search.go
package search

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/catalog"
	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/history"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Config holds the search policy defaults.
type Config struct {
	DefaultMode Mode `yaml:"default_mode" json:"default_mode"`
	Threshold   int  `yaml:"threshold" json:"threshold"`
	// DBCap bounds catalog rows merged into one search.
	DBCap int `yaml:"db_cap" json:"db_cap"`
	// PageCap bounds pages fetched per source.
	PageCap     int `yaml:"page_cap" json:"page_cap"`
	DefaultSize int `yaml:"default_size" json:"default_size"`
	MaxSize     int `yaml:"max_size" json:"max_size"`
	// ParseQuery turns filter phrases in the query text into filters when a
	// QueryParser is installed.
	ParseQuery bool `yaml:"parse_query" json:"parse_query"`
}

// DefaultConfig returns the default policy.
func DefaultConfig() Config {
	return Config{
		DefaultMode: ModeAuto,
		Threshold:   DefaultThreshold,
		DBCap:       catalog.DefaultLimit,
		PageCap:     2,
		DefaultSize: 20,
		MaxSize:     100,
		ParseQuery:  true,
	}
}

// Catalog is the read side of the catalog store.
type Catalog interface {
	Query(ctx context.Context, q catalog.Query) ([]listing.Listing, error)
}

// LiveFetcher runs a live aggregation across sources.
type LiveFetcher interface {
	Aggregate(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

// HistoryRecorder logs searches without blocking.
type HistoryRecorder interface {
	Record(e history.Entry)
}

// ParsedQuery is what a QueryParser extracts from free text. Keywords is the
// text left once the filter phrases are taken out.
type ParsedQuery struct {
	Filters  listing.Filters
	Keywords string
}

// QueryParser turns free text into structured filters.
type QueryParser interface {
	Parse(ctx context.Context, text string) (ParsedQuery, error)
}

// Observer receives one call per completed search.
type Observer interface {
	ObserveSearch(mode string, live bool, d time.Duration, total int)
}

// Orchestrator answers searches from the catalog, falling through to live
// fetching according to the scraping mode.
type Orchestrator struct {
	config   atomic.Pointer[Config]
	catalog  Catalog
	live     LiveFetcher
	history  HistoryRecorder
	parser   QueryParser
	observer Observer
	filters  *FilterProcessor
	logger   utils.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithHistory enables search history.
func WithHistory(h HistoryRecorder) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithQueryParser enables free-text filter extraction.
func WithQueryParser(p QueryParser) Option {
	return func(o *Orchestrator) { o.parser = p }
}

// WithObserver installs a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// NewOrchestrator creates an Orchestrator. live may be nil, which disables
// live fetching.
func NewOrchestrator(config Config, store Catalog, live LiveFetcher, logger utils.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	o := &Orchestrator{
		catalog: store,
		live:    live,
		filters: NewFilterProcessor(),
		logger:  logger.WithField("component", "search"),
	}
	o.SetConfig(config)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective policy.
func (o *Orchestrator) Config() Config {
	return *o.config.Load()
}

// SetConfig replaces the policy. Searches already running keep the policy
// they started with.
func (o *Orchestrator) SetConfig(config Config) {
	config = withDefaults(config)
	o.config.Store(&config)
}

func withDefaults(config Config) Config {
	defaults := DefaultConfig()
	if config.DefaultMode == "" {
		config.DefaultMode = defaults.DefaultMode
	}
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	if config.DBCap <= 0 || config.DBCap > catalog.DefaultLimit {
		config.DBCap = defaults.DBCap
	}
	if config.PageCap <= 0 {
		config.PageCap = defaults.PageCap
	}
	if config.MaxSize <= 0 {
		config.MaxSize = defaults.MaxSize
	}
	if config.DefaultSize <= 0 || config.DefaultSize > config.MaxSize {
		config.DefaultSize = min(defaults.DefaultSize, config.MaxSize)
	}
	return config
}

// Search runs one hybrid search. Only an invalid request returns an error;
// failing collaborators degrade the result instead.
func (o *Orchestrator) Search(ctx context.Context, req listing.SearchRequest) (*listing.SearchResult, error) {
	start := time.Now()
	cfg := o.Config()

	mode := cfg.DefaultMode
	if req.Mode != "" {
		m, err := ParseMode(req.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	page, size := cfg.pageBounds(req.Page, req.Size)

	filters := req.Filters
	keywords := req.Query
	if o.parser != nil && cfg.ParseQuery && req.Query != "" {
		parsed, err := o.parser.Parse(ctx, req.Query)
		if err != nil {
			o.logger.Warnf("query parser failed, using raw text: %v", err)
		} else {
			filters = MergeFilters(filters, parsed.Filters)
			keywords = parsed.Keywords
		}
	}

	dbRows, err := o.catalog.Query(ctx, catalog.Query{Text: keywords, Filters: filters, Limit: cfg.DBCap})
	if err != nil {
		o.logger.Warnf("catalog query failed, continuing without catalog rows: %v", err)
		dbRows = nil
	}
	for i := range dbRows {
		dbRows[i].Source = listing.SourceDB
	}

	policy := Policy{Mode: mode, Threshold: cfg.Threshold}
	fetchLive := o.live != nil && policy.ShouldFetchLive(len(dbRows), req.EnableScraping)

	var liveRows []listing.Listing
	sourceStats := make(map[string]listing.SourceStats)
	if fetchLive {
		res, err := o.live.Aggregate(ctx, aggregator.Request{
			Query:    keywords,
			Filters:  filters,
			Sources:  req.Sources,
			MaxPages: cfg.pageCap(req.MaxPages),
		})
		switch {
		case err != nil && apperrors.IsClientError(err):
			return nil, err
		case err != nil:
			o.logger.Warnf("live fetch failed: %v", err)
		default:
			liveRows = res.Results
			for name, s := range res.Sources {
				sourceStats[name] = s
			}
		}
	}

	merged := pipeline.Merge(dbRows, liveRows)
	filtered := o.filters.Apply(merged, filters)

	result := &listing.SearchResult{
		Total:   len(filtered),
		Page:    page,
		Size:    size,
		Sources: sourceStats,
		Applied: filters.Applied(),
	}
	for i := range filtered {
		if filtered[i].Source == listing.SourceDB {
			result.FromDB++
		} else {
			result.FromLive++
		}
	}
	result.Results = paginate(filtered, page, size)
	result.Duration = time.Since(start)

	o.record(req, mode, fetchLive, result)
	if o.observer != nil {
		o.observer.ObserveSearch(string(mode), fetchLive, result.Duration, result.Total)
	}
	o.logger.WithFields(map[string]interface{}{
		"query":     req.Query,
		"mode":      string(mode),
		"live":      fetchLive,
		"db_rows":   len(dbRows),
		"live_rows": len(liveRows),
		"total":     result.Total,
	}).Info("search completed")
	return result, nil
}

func (o *Orchestrator) record(req listing.SearchRequest, mode Mode, live bool, res *listing.SearchResult) {
	if o.history == nil {
		return
	}
	o.history.Record(history.Entry{
		RequestID:  req.RequestID,
		Query:      req.Query,
		Filters:    res.Applied,
		Mode:       string(mode),
		Page:       res.Page,
		Size:       res.Size,
		Total:      res.Total,
		FromDB:     res.FromDB,
		FromLive:   res.FromLive,
		LiveFetch:  live,
		Sources:    res.Sources,
		DurationMS: res.Duration.Milliseconds(),
	})
}

func (c Config) pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = c.DefaultSize
	}
	if size > c.MaxSize {
		size = c.MaxSize
	}
	return page, size
}

func (c Config) pageCap(requested int) int {
	if requested <= 0 || requested > c.PageCap {
		return c.PageCap
	}
	return requested
}

// paginate returns the 1-based page of size items. Out of range pages are
// empty, never nil.
func paginate(items []listing.Listing, page, size int) []listing.Listing {
	from := (page - 1) * size
	if from >= len(items) {
		return []listing.Listing{}
	}
	to := min(from+size, len(items))
	return items[from:to]
}
