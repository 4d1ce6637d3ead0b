// internal/history/history.go
package history

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("history recorder is closed")

// Entry is one logged search.
type Entry struct {
	ID         string                         `bson:"_id" json:"id"`
	RequestID  string                         `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Query      string                         `bson:"query" json:"query"`
	Filters    []string                       `bson:"filters_applied,omitempty" json:"filters_applied,omitempty"`
	Mode       string                         `bson:"mode" json:"mode"`
	Page       int                            `bson:"page" json:"page"`
	Size       int                            `bson:"size" json:"size"`
	Total      int                            `bson:"total" json:"total"`
	FromDB     int                            `bson:"from_db" json:"from_db"`
	FromLive   int                            `bson:"from_live" json:"from_live"`
	LiveFetch  bool                           `bson:"live_fetch" json:"live_fetch"`
	Sources    map[string]listing.SourceStats `bson:"sources,omitempty" json:"sources,omitempty"`
	DurationMS int64                          `bson:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time                      `bson:"created_at" json:"created_at"`
}

// Sink persists entries.
type Sink interface {
	Record(ctx context.Context, e Entry) error
	Close(ctx context.Context) error
}

// Reader lists recent entries, newest first.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Stats counts recorder outcomes.
type Stats struct {
	Recorded int64 `json:"recorded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
}

// Recorder writes entries to a Sink in the background. Record never blocks
// and never fails the caller: when the buffer is full the entry is dropped.
type Recorder struct {
	sink    Sink
	entries chan Entry
	timeout time.Duration
	logger  utils.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	recorded atomic.Int64
	failed   atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder starts the background writer.
func NewRecorder(sink Sink, buffer int, logger utils.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	r := &Recorder{
		sink:    sink,
		entries: make(chan Entry, buffer),
		timeout: 5 * time.Second,
		logger:  logger.WithField("component", "history"),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Recorder) loop() {
	defer close(r.done)
	for e := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		err := r.sink.Record(ctx, e)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.logger.Warnf("failed to record search %q: %v", e.Query, err)
			continue
		}
		r.recorded.Add(1)
	}
}

// Record queues e. It fills in the ID and timestamp when missing.
func (r *Recorder) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.entries <- e:
	default:
		r.dropped.Add(1)
		r.logger.Warn("history buffer full, dropping entry")
	}
}

// Stats returns recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{Recorded: r.recorded.Load(), Failed: r.failed.Load(), Dropped: r.dropped.Load()}
}

// Sink returns the underlying sink.
func (r *Recorder) Sink() Sink {
	return r.sink
}

// Close flushes queued entries and closes the sink.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.entries)
	r.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.sink.Close(ctx)
}

// DefaultMemoryCapacity is the number of entries a MemorySink keeps when no
// capacity is given. It matches the largest /history page.
const DefaultMemoryCapacity = 1000

// MemorySink keeps the most recent entries in a fixed-size ring. Once full,
// each new entry evicts the oldest one.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// NewMemorySink creates an empty sink holding up to capacity entries.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemorySink{entries: make([]Entry, capacity)}
}

// Record stores e, evicting the oldest entry when the ring is full.
func (m *MemorySink) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = e
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Len returns the number of entries held.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size()
}

func (m *MemorySink) size() int {
	if m.full {
		return len(m.entries)
	}
	return m.next
}

// Recent returns up to limit entries, newest first.
func (m *MemorySink) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.size()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, m.entries[(m.next-i+len(m.entries))%len(m.entries)])
	}
	return out, nil
}

// Close is a no-op.
func (m *MemorySink) Close(context.Context) error { return nil }
