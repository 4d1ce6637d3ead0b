// internal/catalog/memory_test.go
package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

func car(title string, price int64, url string) listing.Listing {
	return listing.Listing{
		Title:     title,
		Price:     listing.Int64(price),
		Source:    "leboncoin",
		SourceURL: url,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStore_UpsertIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	l := car("Peugeot 308", 15000, "https://x/1")

	n, err := store.Upsert(ctx, []listing.Listing{l})
	if err != nil || n != 1 {
		t.Fatalf("first upsert: n=%d err=%v", n, err)
	}
	l.Title = "Peugeot 308 (edited)"
	n, err = store.Upsert(ctx, []listing.Listing{l})
	if err != nil || n != 0 {
		t.Fatalf("second upsert should be a no-op: n=%d err=%v", n, err)
	}

	if count, _ := store.Count(ctx); count != 1 {
		t.Errorf("expected exactly one stored row, got %d", count)
	}
	rows, _ := store.Query(ctx, Query{})
	if rows[0].Title != "Peugeot 308" {
		t.Errorf("expected first write to be kept, got %q", rows[0].Title)
	}
	if rows[0].ID == "" {
		t.Error("expected an ID to be assigned")
	}
}

func TestMemoryStore_SkipsListingsWithoutURL(t *testing.T) {
	store := NewMemoryStore()
	n, _ := store.Upsert(context.Background(), []listing.Listing{car("No URL", 1, " ")})
	if n != 0 {
		t.Errorf("expected listing without source URL to be skipped, inserted %d", n)
	}
}

func TestMemoryStore_ConcurrentWriters(t *testing.T) {
	store := NewMemoryStore()
	batch := make([]listing.Listing, 50)
	for i := range batch {
		batch[i] = car(fmt.Sprintf("Car %d", i), int64(i), fmt.Sprintf("https://x/%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Upsert(context.Background(), batch)
			if err != nil {
				t.Error(err)
			}
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if count, _ := store.Count(context.Background()); count != 50 {
		t.Errorf("expected 50 rows, got %d", count)
	}
	if total != 50 {
		t.Errorf("expected inserts to sum to 50 across writers, got %d", total)
	}
}

func TestMemoryStore_Query(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	noPrice := car("Citroën C3 Shine", 0, "https://x/3")
	noPrice.Price = nil
	newer := car("Peugeot 308 GT", 21000, "https://x/2")
	newer.CreatedAt = newer.CreatedAt.Add(time.Hour)

	_, err := store.Upsert(ctx, []listing.Listing{
		car("Peugeot 308 Active", 14000, "https://x/1"),
		newer,
		noPrice,
		car("Renault Clio", 9000, "https://x/4"),
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"tokens anded newest first", Query{Text: "peugeot 308"}, []string{"https://x/2", "https://x/1"}},
		{"accent insensitive", Query{Text: "citroen"}, []string{"https://x/3"}},
		{"token order free", Query{Text: "308 PEUGEOT gt"}, []string{"https://x/2"}},
		{"price max passes missing", Query{Filters: listing.Filters{PriceMax: listing.Int64(10000)}}, []string{"https://x/4", "https://x/3"}},
		{"limit", Query{Text: "peugeot", Limit: 1}, []string{"https://x/2"}},
		{"no match", Query{Text: "tesla"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := store.Query(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(rows))
			for i, r := range rows {
				got[i] = r.SourceURL
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestMemoryStore_DefaultLimit(t *testing.T) {
	store := NewMemoryStore()
	batch := make([]listing.Listing, 150)
	for i := range batch {
		batch[i] = car(fmt.Sprintf("Fiat 500 #%d", i), 7000, fmt.Sprintf("https://x/%d", i))
	}
	_, _ = store.Upsert(context.Background(), batch)

	rows, _ := store.Query(context.Background(), Query{Text: "fiat", Limit: 1000})
	if len(rows) != DefaultLimit {
		t.Errorf("expected rows capped at %d, got %d", DefaultLimit, len(rows))
	}
}

func TestOpen_Drivers(t *testing.T) {
	store, err := Open(context.Background(), Config{Driver: DriverMemory}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected memory store, got %T", store)
	}

	if _, err := Open(context.Background(), Config{Driver: "oracle"}, nil); err == nil {
		t.Error("expected unknown driver to fail")
	}
	if _, err := Open(context.Background(), Config{Driver: DriverPostgres}, nil); err == nil {
		t.Error("expected postgres without dsn to fail")
	}
}
