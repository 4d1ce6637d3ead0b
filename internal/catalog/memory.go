// internal/catalog/memory.go
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

type memoryEntry struct {
	listing listing.Listing
	key     string
	seq     int
}

// MemoryStore keeps the catalog in process. It backs tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	seq     int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

// Upsert inserts listings whose source URL is new.
func (m *MemoryStore) Upsert(ctx context.Context, listings []listing.Listing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prepared := prepare(listings)

	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, l := range prepared {
		if _, exists := m.entries[l.SourceURL]; exists {
			continue
		}
		m.seq++
		m.entries[l.SourceURL] = &memoryEntry{listing: l, key: searchKey(&l), seq: m.seq}
		inserted++
	}
	return inserted, nil
}

// Query returns matching listings, newest first.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	hits := make([]*memoryEntry, 0)
	for _, e := range m.entries {
		if matches(&e.listing, e.key, q) {
			hits = append(hits, e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.listing.CreatedAt.Equal(b.listing.CreatedAt) {
			return a.listing.CreatedAt.After(b.listing.CreatedAt)
		}
		return a.seq > b.seq
	})

	if n := q.limit(); len(hits) > n {
		hits = hits[:n]
	}
	out := make([]listing.Listing, len(hits))
	for i, e := range hits {
		out[i] = e.listing
	}
	return out, nil
}

// Count returns the number of stored listings.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
