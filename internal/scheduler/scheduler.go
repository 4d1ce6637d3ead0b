// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Job is a saved query that is re-aggregated on a cron schedule so the
// catalog stays warm for common searches.
type Job struct {
	Name     string          `yaml:"name" json:"name"`
	Spec     string          `yaml:"spec" json:"spec"`
	Query    string          `yaml:"query" json:"query"`
	Filters  listing.Filters `yaml:"filters,omitempty" json:"filters,omitempty"`
	Sources  []string        `yaml:"sources,omitempty" json:"sources,omitempty"`
	MaxPages int             `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
}

// Config lists the saved queries.
type Config struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	Jobs    []Job `yaml:"jobs,omitempty" json:"jobs,omitempty"`
}

// Standard five-field specs plus descriptors such as @hourly and @every 30m.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSpec validates a cron expression.
func ParseSpec(spec string) (cron.Schedule, error) {
	s, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

// Validate checks the job can be scheduled.
func (j Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if j.Query == "" && j.Filters.IsZero() {
		return fmt.Errorf("job %s: query or filters are required", j.Name)
	}
	if j.MaxPages < 0 {
		return fmt.Errorf("job %s: max_pages must not be negative", j.Name)
	}
	if _, err := ParseSpec(j.Spec); err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	return nil
}

func (j Job) request() aggregator.Request {
	return aggregator.Request{Query: j.Query, Filters: j.Filters, Sources: j.Sources, MaxPages: j.MaxPages}
}

// Fetcher runs one aggregation. The aggregator persists what it finds.
type Fetcher interface {
	Aggregate(ctx context.Context, req aggregator.Request) (*aggregator.Result, error)
}

// RunStats describes the runs of one job.
type RunStats struct {
	Runs         int64     `json:"runs"`
	Failures     int64     `json:"failures"`
	LastRun      time.Time `json:"last_run,omitempty"`
	LastTotal    int       `json:"last_total"`
	LastInserted int       `json:"last_inserted"`
	LastError    string    `json:"last_error,omitempty"`
}

// JobStatus is a scheduled job with its next run and history.
type JobStatus struct {
	Job
	Next  time.Time `json:"next"`
	Stats RunStats  `json:"stats"`
}

type entry struct {
	job   Job
	id    cron.EntryID
	stats RunStats
}

// Scheduler refreshes saved queries in the background.
type Scheduler struct {
	cron    *cron.Cron
	fetcher Fetcher
	logger  utils.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped scheduler.
func New(fetcher Fetcher, logger utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	logger = logger.WithField("component", "scheduler")

	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(specParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules a job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[job.Name]; exists {
		return fmt.Errorf("job %s already scheduled", job.Name)
	}

	e := &entry{job: job}
	id, err := s.cron.AddFunc(job.Spec, func() { s.run(s.ctx, e) })
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
	}
	e.id = id
	s.entries[job.Name] = e
	s.logger.WithField("job", job.Name).Infof("scheduled %q (%s)", job.Query, job.Spec)
	return nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return true
}

// RunNow runs a job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*aggregator.Result, error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %s", name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) (*aggregator.Result, error) {
	logger := s.logger.WithField("job", e.job.Name)
	start := time.Now()

	res, err := s.fetcher.Aggregate(ctx, e.job.request())

	s.mu.Lock()
	e.stats.Runs++
	e.stats.LastRun = start
	if err != nil {
		e.stats.Failures++
		e.stats.LastError = err.Error()
	} else {
		e.stats.LastError = ""
		e.stats.LastTotal = res.Total
		e.stats.LastInserted = res.Inserted
	}
	s.mu.Unlock()

	if err != nil {
		logger.Errorf("refresh failed: %v", err)
		return nil, err
	}
	logger.Infof("refreshed: %d listings, %d new, took %v", res.Total, res.Inserted, time.Since(start))
	return res, nil
}

// Jobs returns the scheduled jobs sorted by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, JobStatus{Job: e.job, Next: s.cron.Entry(e.id).Next, Stats: e.stats})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run starts the schedule and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Infof("scheduler started with %d jobs", len(s.Jobs()))

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger routes cron's own logging through ours.
type cronLogger struct {
	logger utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(pairs(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(pairs(keysAndValues)).WithField("error", err).Error(msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
