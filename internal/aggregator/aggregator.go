// internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/AutoScrapexter/internal/catalog"
	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
	"github.com/valpere/AutoScrapexter/internal/sources"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Phase is the progress of one aggregation call.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDispatched
	PhaseCollecting
	PhaseMerged
	PhasePersisting
	PhaseDone
)

func (p Phase) String() string {
	return [...]string{"idle", "dispatched", "collecting", "merged", "persisting", "done"}[p]
}

// Reason strings reported in SourceStats.Error for failures that carry no
// fetch kind.
const (
	ReasonPanic    = "panic"
	ReasonRejected = "rejected"
)

// Config controls fan-out, deadlines and retries.
type Config struct {
	MaxConcurrency  int                   `yaml:"max_concurrency" json:"max_concurrency"`
	QueueSize       int                   `yaml:"queue_size" json:"queue_size"`
	TaskTimeout     time.Duration         `yaml:"task_timeout" json:"task_timeout"`
	RequestDeadline time.Duration         `yaml:"request_deadline" json:"request_deadline"`
	Retry           apperrors.RetryConfig `yaml:"retry" json:"retry"`
	Persist         bool                  `yaml:"persist" json:"persist"`
}

// DefaultConfig returns the default aggregation settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  4,
		QueueSize:       32,
		TaskTimeout:     60 * time.Second,
		RequestDeadline: 90 * time.Second,
		Retry:           apperrors.DefaultRetryConfig(),
		Persist:         true,
	}
}

// Request is one fan-out over the configured sources.
type Request struct {
	Query   string
	Filters listing.Filters
	// Sources restricts the fan-out. Empty means every registered source.
	Sources  []string
	MaxPages int
}

// Result is the merged output of one aggregation call.
type Result struct {
	Total    int                            `json:"total"`
	Results  []listing.Listing              `json:"results"`
	Sources  map[string]listing.SourceStats `json:"sources"`
	Dropped  int                            `json:"dropped"`
	Inserted int                            `json:"inserted"`
	Duration time.Duration                  `json:"-"`
}

// Persister stores newly discovered listings. Query supplies the rows a
// batch is deduplicated against before it is written.
type Persister interface {
	Upsert(ctx context.Context, listings []listing.Listing) (int, error)
	Query(ctx context.Context, q catalog.Query) ([]listing.Listing, error)
}

// Observer receives per-source and per-call outcomes.
type Observer interface {
	ObserveSource(source string, d time.Duration, stats listing.SourceStats)
	ObserveAggregate(d time.Duration, total int)
}

type nopObserver struct{}

func (nopObserver) ObserveSource(string, time.Duration, listing.SourceStats) {}
func (nopObserver) ObserveAggregate(time.Duration, int)                     {}

// Aggregator fans a query out to every source and merges what comes back.
type Aggregator struct {
	config     Config
	registry   *sources.Registry
	normalizer *pipeline.Normalizer
	store      Persister
	pool       *WorkerPool
	observer   Observer
	logger     utils.Logger
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithPersister enables saving merged results.
func WithPersister(store Persister) Option {
	return func(a *Aggregator) { a.store = store }
}

// WithObserver installs a metrics observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *pipeline.Normalizer) Option {
	return func(a *Aggregator) { a.normalizer = n }
}

// New creates an Aggregator and starts its worker pool. Close releases it.
func New(config Config, registry *sources.Registry, logger utils.Logger, opts ...Option) *Aggregator {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = defaults.TaskTimeout
	}
	if config.RequestDeadline <= 0 {
		config.RequestDeadline = defaults.RequestDeadline
	}
	if config.Retry == (apperrors.RetryConfig{}) {
		config.Retry = defaults.Retry
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	a := &Aggregator{
		config:     config,
		registry:   registry,
		normalizer: pipeline.NewNormalizer(logger),
		pool:       NewWorkerPool(config.MaxConcurrency, config.QueueSize, logger),
		observer:   nopObserver{},
		logger:     logger.WithField("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close stops the worker pool.
func (a *Aggregator) Close() {
	a.pool.Close()
}

// Pool exposes the worker pool for health reporting.
func (a *Aggregator) Pool() *WorkerPool {
	return a.pool
}

// Sources returns the registered source names.
func (a *Aggregator) Sources() []string {
	return a.registry.Names()
}

type outcome struct {
	source   string
	records  []listing.RawRecord
	err      error
	reason   string
	state    listing.TaskState
	duration time.Duration
}

// Aggregate runs one fetch task per selected source under the request
// deadline. Source failures never fail the call; they are reported in
// Result.Sources. Only an invalid request returns an error.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	adapters, err := a.registry.Select(req.Sources)
	if err != nil {
		return nil, &apperrors.PolicyViolation{Field: "sources", Value: strings.Join(req.Sources, ",")}
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.config.RequestDeadline)
	defer cancel()

	phase := PhaseIdle
	advance := func(next Phase) {
		a.logger.Debugf("aggregate %q: %s -> %s", req.Query, phase, next)
		phase = next
	}

	// Buffered so late workers never block after the collector has left.
	outcomes := make(chan outcome, len(adapters))
	for _, adapter := range adapters {
		task := &listing.FetchTask{
			Source:   adapter.Name(),
			Query:    req.Query,
			Filters:  req.Filters,
			MaxPages: req.MaxPages,
			Timeout:  a.config.TaskTimeout,
		}
		adapter := adapter
		if err := a.pool.Submit(reqCtx, func() { outcomes <- a.runTask(reqCtx, adapter, task) }); err != nil {
			reason := ReasonRejected
			if reqCtx.Err() != nil {
				reason = apperrors.Timeout.String()
			}
			outcomes <- outcome{source: task.Source, err: err, reason: reason, state: listing.TaskFailed}
		}
	}
	advance(PhaseDispatched)

	advance(PhaseCollecting)
	result := &Result{Sources: make(map[string]listing.SourceStats, len(adapters))}
	var merged []listing.Listing
	received := 0
collect:
	for received < len(adapters) {
		select {
		case o := <-outcomes:
			received++
			stats := listing.SourceStats{Success: o.err == nil}
			if o.err != nil {
				stats.Error = o.reason
				a.logger.WithFields(map[string]interface{}{
					"source": o.source,
					"state":  o.state.String(),
				}).Warnf("source failed: %v", o.err)
			} else {
				listings, dropped := a.normalizer.NormalizeAll(o.records, o.source)
				result.Dropped += dropped
				stats.Count = len(listings)
				merged = append(merged, listings...)
			}
			result.Sources[o.source] = stats
			a.observer.ObserveSource(o.source, o.duration, stats)
		case <-reqCtx.Done():
			break collect
		}
	}

	for _, adapter := range adapters {
		if _, ok := result.Sources[adapter.Name()]; !ok {
			stats := listing.SourceStats{Error: apperrors.Timeout.String()}
			result.Sources[adapter.Name()] = stats
			a.observer.ObserveSource(adapter.Name(), time.Since(start), stats)
		}
	}

	result.Results = pipeline.Dedupe(merged)
	result.Total = len(result.Results)
	advance(PhaseMerged)

	if a.config.Persist && a.store != nil && result.Total > 0 {
		advance(PhasePersisting)
		result.Inserted = a.persist(reqCtx, req.Query, result.Results)
	}

	advance(PhaseDone)
	result.Duration = time.Since(start)
	a.observer.ObserveAggregate(result.Duration, result.Total)
	a.logger.WithFields(map[string]interface{}{
		"query":    req.Query,
		"sources":  len(adapters),
		"total":    result.Total,
		"dropped":  result.Dropped,
		"duration": result.Duration.String(),
	}).Info("aggregation completed")
	return result, nil
}

// runTask executes one FetchTask on a worker. It never panics.
func (a *Aggregator) runTask(ctx context.Context, adapter sources.Adapter, task *listing.FetchTask) (out outcome) {
	start := time.Now()
	out.source = task.Source
	defer func() {
		out.duration = time.Since(start)
		if r := recover(); r != nil {
			out.records = nil
			out.err = fmt.Errorf("adapter panicked: %v", r)
			out.reason = ReasonPanic
			out.state = listing.TaskFailed
		}
	}()

	if ctx.Err() != nil {
		_ = task.Transition(listing.TaskTimedOut)
		return outcome{source: task.Source, err: ctx.Err(), reason: apperrors.Timeout.String(), state: task.State}
	}
	_ = task.Transition(listing.TaskRunning)

	taskCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	var records []listing.RawRecord
	err := apperrors.Retry(taskCtx, a.config.Retry, func(attempt int) error {
		if attempt > 0 {
			a.logger.WithField("source", task.Source).Infof("retrying after network error (attempt %d)", attempt+1)
		}
		recs, err := fetchWithin(taskCtx, adapter, task)
		if err != nil {
			return err
		}
		records = recs
		return nil
	}, apperrors.IsRetryableFetch)

	var panicked *panicError
	switch {
	case errors.As(err, &panicked):
		_ = task.Transition(listing.TaskFailed)
		return outcome{source: task.Source, err: err, reason: ReasonPanic, state: task.State}
	case taskCtx.Err() != nil:
		// Late successes past the task deadline are discarded.
		if err == nil {
			err = apperrors.NewFetchError(task.Source, apperrors.Timeout, taskCtx.Err())
		}
		_ = task.Transition(listing.TaskTimedOut)
		return outcome{source: task.Source, err: err, reason: apperrors.Timeout.String(), state: task.State}
	case err == nil:
		_ = task.Transition(listing.TaskCompleted)
		return outcome{source: task.Source, records: records, state: task.State}
	case apperrors.IsKind(err, apperrors.Timeout):
		_ = task.Transition(listing.TaskTimedOut)
		return outcome{source: task.Source, err: err, reason: apperrors.Timeout.String(), state: task.State}
	default:
		_ = task.Transition(listing.TaskFailed)
		return outcome{source: task.Source, err: err, reason: failureReason(err), state: task.State}
	}
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("adapter panicked: %v", e.value)
}

type fetched struct {
	records []listing.RawRecord
	err     error
}

// fetchWithin runs one adapter call and returns when it finishes or when ctx
// is done, whichever comes first. An adapter that ignores ctx keeps running
// in the background; its result is dropped.
func fetchWithin(ctx context.Context, adapter sources.Adapter, task *listing.FetchTask) ([]listing.RawRecord, error) {
	done := make(chan fetched, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetched{err: &panicError{value: r}}
			}
		}()
		recs, err := adapter.Fetch(ctx, task.Query, task.Filters, task.MaxPages)
		done <- fetched{records: recs, err: err}
	}()

	select {
	case f := <-done:
		return f.records, f.err
	case <-ctx.Done():
		return nil, apperrors.NewFetchError(task.Source, apperrors.Timeout, ctx.Err())
	}
}

func failureReason(err error) string {
	if kind, ok := apperrors.KindOf(err); ok {
		return kind.String()
	}
	return err.Error()
}

// persist saves the listings not already in the catalog. Rows matching query
// are loaded first so a listing seen on another site under a different URL
// is not stored twice. Failures are logged, never returned.
func (a *Aggregator) persist(ctx context.Context, query string, listings []listing.Listing) int {
	if ctx.Err() != nil {
		a.logger.Warn("request deadline reached, skipping persistence")
		return 0
	}
	existing, err := a.store.Query(ctx, catalog.Query{Text: query, Limit: catalog.DefaultLimit})
	if err != nil {
		a.logger.Warnf("failed to load existing listings, relying on url uniqueness: %v", err)
	}
	fresh := pipeline.DedupeAgainstStore(listings, existing)
	if len(fresh) == 0 {
		a.logger.Debugf("all %d listings already catalogued", len(listings))
		return 0
	}
	inserted, err := a.store.Upsert(ctx, fresh)
	if err != nil {
		a.logger.Errorf("failed to persist %d listings: %v", len(fresh), err)
		return inserted
	}
	a.logger.Debugf("persisted %d new of %d listings", inserted, len(listings))
	return inserted
}
