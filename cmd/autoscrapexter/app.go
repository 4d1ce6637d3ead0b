// cmd/autoscrapexter/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/browser"
	"github.com/valpere/AutoScrapexter/internal/cache"
	"github.com/valpere/AutoScrapexter/internal/catalog"
	"github.com/valpere/AutoScrapexter/internal/config"
	"github.com/valpere/AutoScrapexter/internal/history"
	"github.com/valpere/AutoScrapexter/internal/monitoring"
	"github.com/valpere/AutoScrapexter/internal/scheduler"
	"github.com/valpere/AutoScrapexter/internal/scraper"
	"github.com/valpere/AutoScrapexter/internal/search"
	"github.com/valpere/AutoScrapexter/internal/sources"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

const (
	healthTimeout = 5 * time.Second
	maxGoroutines = 10000
	closeTimeout  = 10 * time.Second
)

// app holds the wired components shared by the commands.
type app struct {
	cfg     *config.Config
	logger  utils.Logger
	metrics *monitoring.Metrics
	health  *monitoring.HealthManager

	store     catalog.Store
	httpPool  *browser.SessionPool
	chrome    *browser.SessionPool
	profiles  []sources.SiteProfile
	agg       *aggregator.Aggregator
	liveCache *cache.LiveCache
	recorder  *history.Recorder
	reader    history.Reader
	search    *search.Orchestrator
	scheduler *scheduler.Scheduler
}

// buildApp connects storage and assembles the search pipeline. On error
// everything opened so far is closed.
func buildApp(ctx context.Context, cfg *config.Config, logger utils.Logger) (a *app, err error) {
	a = &app{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(cfg.Metrics),
		health:  monitoring.NewHealthManager(version, healthTimeout),
	}
	defer func() {
		if err != nil {
			a.close()
			a = nil
		}
	}()

	store, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	a.store = monitoring.InstrumentStore(store, a.metrics)

	a.httpPool = browser.NewSessionPool(browser.HTTPFactory(scraper.NewHTTPClient(cfg.HTTP.ClientConfig())), cfg.HTTP.MaxSessions, logger)
	pools := sources.Pools{HTTP: a.httpPool}
	if cfg.Browser.Enabled {
		a.chrome = browser.NewChromePool(&cfg.Browser, logger)
		pools.Browser = a.chrome
	}

	if a.profiles, err = sources.ResolveProfiles(cfg.Sources); err != nil {
		return nil, err
	}
	registry, err := sources.BuildRegistry(a.profiles, pools, logger, sources.WithObserver(a.metrics))
	if err != nil {
		return nil, err
	}

	aggOpts := []aggregator.Option{aggregator.WithObserver(a.metrics)}
	if cfg.Aggregator.Persist {
		aggOpts = append(aggOpts, aggregator.WithPersister(a.store))
	}
	a.agg = aggregator.New(cfg.Aggregator, registry, logger, aggOpts...)

	var live search.LiveFetcher = a.agg
	if cfg.Cache.Enabled {
		a.liveCache = cache.NewLiveCache(cfg.Cache)
		live = cache.NewCachedFetcher(a.agg, a.liveCache, logger)
	}

	var searchOpts []search.Option
	searchOpts = append(searchOpts, search.WithObserver(a.metrics), search.WithQueryParser(search.NewRuleParser()))
	if cfg.History.Enabled {
		sink, err := openHistorySink(ctx, cfg.History)
		if err != nil {
			return nil, err
		}
		a.reader = sink
		a.recorder = history.NewRecorder(sink, cfg.History.Buffer, logger)
		searchOpts = append(searchOpts, search.WithHistory(a.recorder))
	}
	a.search = search.NewOrchestrator(cfg.Search, a.store, live, logger, searchOpts...)

	// Scheduled refreshes go straight to the aggregator so they always
	// reach the sites and persist.
	a.scheduler = scheduler.New(a.agg, logger)
	for _, job := range cfg.Scheduler.Jobs {
		if err := a.scheduler.Add(job); err != nil {
			return nil, err
		}
	}

	a.registerHealth()
	a.registerGauges()
	return a, nil
}

// historySink is a Sink that can also list entries.
type historySink interface {
	history.Sink
	history.Reader
}

func openHistorySink(ctx context.Context, cfg config.HistoryConfig) (historySink, error) {
	if cfg.Mongo.URI == "" {
		return history.NewMemorySink(cfg.MemoryCapacity), nil
	}
	sink, err := history.NewMongoSink(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to open search history: %w", err)
	}
	return sink, nil
}

func (a *app) registerHealth() {
	a.health.RegisterCheck(monitoring.PingCheck("catalog", true, a.store.Ping))
	if a.liveCache != nil {
		a.health.RegisterCheck(monitoring.PingCheck("cache", false, a.liveCache.Ping))
	}
	a.health.RegisterCheck(monitoring.PoolCheck("http_sessions", poolStats(a.httpPool)))
	if a.chrome != nil {
		a.health.RegisterCheck(monitoring.PoolCheck("browser_sessions", poolStats(a.chrome)))
	}
	a.health.RegisterCheck(monitoring.PoolCheck("workers", func() (int, int) {
		pool := a.agg.Pool()
		return pool.Busy(), pool.Size()
	}))
	a.health.RegisterCheck(monitoring.GoroutineHealthCheck(maxGoroutines))
}

func poolStats(p *browser.SessionPool) func() (int, int) {
	return func() (int, int) {
		s := p.Stats()
		return s.InUse, s.MaxSessions
	}
}

func (a *app) registerGauges() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	a.metrics.RegisterGauge("aggregator", "workers_busy", "Workers currently running a source fetch.", func() float64 {
		return float64(a.agg.Pool().Busy())
	})
	a.metrics.RegisterCounter("aggregator", "tasks_processed_total", "Source fetch tasks completed by the worker pool.", func() float64 {
		return float64(a.agg.Pool().Processed())
	})
	a.metrics.RegisterGauge("sessions", "http_in_use", "Static fetch sessions in use.", func() float64 {
		return float64(a.httpPool.Stats().InUse)
	})
	if a.chrome != nil {
		a.metrics.RegisterGauge("sessions", "browser_in_use", "Browser sessions in use.", func() float64 {
			return float64(a.chrome.Stats().InUse)
		})
	}
	if a.recorder != nil {
		a.metrics.RegisterCounter("history", "dropped_total", "Search history entries dropped on a full buffer.", func() float64 {
			return float64(a.recorder.Stats().Dropped)
		})
		a.metrics.RegisterCounter("history", "failed_total", "Search history entries the sink rejected.", func() float64 {
			return float64(a.recorder.Stats().Failed)
		})
	}
	if a.liveCache != nil {
		a.metrics.RegisterCounter("cache", "hits_total", "Live result cache hits.", func() float64 {
			return float64(a.liveCache.Stats().Hits)
		})
		a.metrics.RegisterCounter("cache", "misses_total", "Live result cache misses.", func() float64 {
			return float64(a.liveCache.Stats().Misses)
		})
	}
}

// close releases everything in reverse order of creation.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close(ctx))
	}
	if a.agg != nil {
		a.agg.Close()
	}
	if a.liveCache != nil {
		errs = append(errs, a.liveCache.Close())
	}
	if a.chrome != nil {
		errs = append(errs, a.chrome.Close())
	}
	if a.httpPool != nil {
		errs = append(errs, a.httpPool.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
