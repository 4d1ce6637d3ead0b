// internal/search/search_test.go
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/valpere/AutoScrapexter/internal/aggregator"
	"github.com/valpere/AutoScrapexter/internal/catalog"
	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/history"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/sources"
)

type fakeCatalog struct {
	rows []listing.Listing
	err  error
	last catalog.Query
}

func (f *fakeCatalog) Query(_ context.Context, q catalog.Query) ([]listing.Listing, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	out := make([]listing.Listing, len(f.rows))
	copy(out, f.rows)
	return out, nil
}

// spyFetcher counts live fetches.
type spyFetcher struct {
	mu     sync.Mutex
	calls  int
	last   aggregator.Request
	result *aggregator.Result
	err    error
}

func (s *spyFetcher) Aggregate(_ context.Context, req aggregator.Request) (*aggregator.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &aggregator.Result{Sources: map[string]listing.SourceStats{}}, nil
	}
	return s.result, nil
}

type spyHistory struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (s *spyHistory) Record(e history.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func car(title string, price int64, source, url string) listing.Listing {
	return listing.Listing{Title: title, Price: listing.Int64(price), Source: source, SourceURL: url}
}

func catalogRows(n int) []listing.Listing {
	out := make([]listing.Listing, n)
	for i := range out {
		out[i] = car(fmt.Sprintf("Peugeot 308 db%d", i), int64(12000+i), "leboncoin", fmt.Sprintf("https://db.example/%d", i))
	}
	return out
}

func TestSearch_DBFirstSpy(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		wantCalls int
	}{
		{"catalog has rows", 3, 0},
		{"catalog empty", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyFetcher{}
			o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: catalogRows(tt.rows)}, spy, nil)

			_, err := o.Search(context.Background(), listing.SearchRequest{Query: "peugeot 308", Mode: "db_first", EnableScraping: true})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if spy.calls != tt.wantCalls {
				t.Errorf("expected %d live calls, got %d", tt.wantCalls, spy.calls)
			}
		})
	}
}

func TestSearch_ModeMatrix(t *testing.T) {
	tests := []struct {
		mode    string
		rows    int
		enabled bool
		want    int
	}{
		{"never", 0, true, 0},
		{"always", 50, true, 1},
		{"auto", 4, true, 1},
		{"auto", 5, true, 0},
		{"", 0, true, 1},
		{"always", 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d/%v", tt.mode, tt.rows, tt.enabled), func(t *testing.T) {
			spy := &spyFetcher{}
			o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: catalogRows(tt.rows)}, spy, nil)
			if _, err := o.Search(context.Background(), listing.SearchRequest{Mode: tt.mode, EnableScraping: tt.enabled}); err != nil {
				t.Fatal(err)
			}
			if spy.calls != tt.want {
				t.Errorf("expected %d live calls, got %d", tt.want, spy.calls)
			}
		})
	}
}

func TestSearch_InvalidMode(t *testing.T) {
	spy := &spyFetcher{}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{}, spy, nil)

	_, err := o.Search(context.Background(), listing.SearchRequest{Mode: "sometimes", EnableScraping: true})
	var pv *apperrors.PolicyViolation
	if !errors.As(err, &pv) {
		t.Fatalf("expected PolicyViolation, got %v", err)
	}
	if apperrors.HTTPStatus(err) != 400 {
		t.Errorf("expected 400, got %d", apperrors.HTTPStatus(err))
	}
	if spy.calls != 0 {
		t.Error("invalid request must not reach live fetching")
	}
}

type rawAdapter struct {
	name    string
	records []listing.RawRecord
}

func (a *rawAdapter) Name() string { return a.name }

func (a *rawAdapter) Fetch(context.Context, string, listing.Filters, int) ([]listing.RawRecord, error) {
	return a.records, nil
}

func rawCar(title string, price int, url string) listing.RawRecord {
	var r listing.RawRecord
	r.Title.Set(title)
	r.Price.Set(fmt.Sprintf("%d €", price))
	r.URL.Set(url)
	return r
}

func TestSearch_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore()
	if _, err := store.Upsert(ctx, []listing.Listing{
		car("Peugeot 308 SW Allure", 17900, "lacentrale", "https://lacentrale.example/a"),
		car("Peugeot 308 GT", 21500, "leboncoin", "https://leboncoin.example/b"),
		car("Renault Clio", 9000, "leboncoin", "https://leboncoin.example/c"),
	}); err != nil {
		t.Fatal(err)
	}

	siteA := &rawAdapter{name: "siteA", records: []listing.RawRecord{
		rawCar("Peugeot 308 Active", 11000, "https://a.example/1"),
		rawCar("Peugeot 308 Style", 12500, "https://a.example/2"),
		rawCar("Peugeot 308 Feline", 13000, "https://a.example/3"),
		rawCar("Peugeot 308 Business", 14000, "https://a.example/4"),
	}}
	siteB := &rawAdapter{name: "siteB", records: []listing.RawRecord{
		rawCar("peugeot 308 style", 12500, "https://b.example/1"),
		rawCar("Peugeot 308 Access", 8000, "https://b.example/2"),
		rawCar("Peugeot 308 Premium", 9500, "https://b.example/3"),
	}}
	reg, err := sources.NewRegistry(siteA, siteB)
	if err != nil {
		t.Fatal(err)
	}
	aggCfg := aggregator.DefaultConfig()
	aggCfg.Persist = true
	agg := aggregator.New(aggCfg, reg, nil, aggregator.WithPersister(store))
	defer agg.Close()

	hist := &spyHistory{}
	o := NewOrchestrator(DefaultConfig(), store, agg, nil, WithHistory(hist))

	res, err := o.Search(ctx, listing.SearchRequest{Query: "peugeot 308", Mode: "auto", EnableScraping: true, Size: 20})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if res.Total != 8 {
		t.Fatalf("expected total=8, got %d", res.Total)
	}
	if res.FromDB != 2 || res.FromLive != 6 {
		t.Errorf("expected 2 from db and 6 live, got %d/%d", res.FromDB, res.FromLive)
	}
	if len(res.Results) != 8 {
		t.Errorf("expected all 8 on the first page, got %d", len(res.Results))
	}
	for _, name := range []string{"siteA", "siteB"} {
		if s := res.Sources[name]; !s.Success {
			t.Errorf("expected %s to succeed, got %+v", name, s)
		}
	}
	if res.Sources["siteA"].Count != 4 || res.Sources["siteB"].Count != 3 {
		t.Errorf("unexpected per-source counts %+v", res.Sources)
	}
	for _, l := range res.Results[:2] {
		if l.Source != listing.SourceDB {
			t.Errorf("expected catalog rows first and marked db, got %q", l.Source)
		}
	}

	if n, _ := store.Count(ctx); n != 9 {
		t.Errorf("expected 6 live listings persisted next to 3 catalog rows, got %d", n)
	}
	if len(hist.entries) != 1 || hist.entries[0].Total != 8 || !hist.entries[0].LiveFetch {
		t.Errorf("unexpected history %+v", hist.entries)
	}
}

func TestSearch_CatalogWinsOnConflict(t *testing.T) {
	db := car("Peugeot 308", 15000, "lacentrale", "https://db/1")
	db.Location = "Lyon"
	spy := &spyFetcher{result: &aggregator.Result{
		Results: []listing.Listing{car("peugeot 308", 15000, "leboncoin", "https://live/1")},
		Sources: map[string]listing.SourceStats{"leboncoin": {Count: 1, Success: true}},
	}}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: []listing.Listing{db}}, spy, nil)

	res, err := o.Search(context.Background(), listing.SearchRequest{Mode: "always", EnableScraping: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Fatalf("expected duplicate to collapse, got %d", res.Total)
	}
	if got := res.Results[0]; got.Source != listing.SourceDB || got.Location != "Lyon" {
		t.Errorf("expected catalog entry to win, got %+v", got)
	}
	if res.FromDB != 1 || res.FromLive != 0 {
		t.Errorf("unexpected provenance %d/%d", res.FromDB, res.FromLive)
	}
}

func TestSearch_Pagination(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: catalogRows(25)}, nil, nil)

	tests := []struct {
		page, size int
		wantLen    int
		wantFirst  string
	}{
		{1, 10, 10, "https://db.example/0"},
		{3, 10, 5, "https://db.example/20"},
		{4, 10, 0, ""},
		{0, 0, 20, "https://db.example/0"},
		{1, 1000, 25, "https://db.example/0"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page%d_size%d", tt.page, tt.size), func(t *testing.T) {
			res, err := o.Search(context.Background(), listing.SearchRequest{Page: tt.page, Size: tt.size, Mode: "never"})
			if err != nil {
				t.Fatal(err)
			}
			if res.Total != 25 {
				t.Errorf("expected total 25, got %d", res.Total)
			}
			if res.Results == nil || len(res.Results) != tt.wantLen {
				t.Fatalf("expected %d results, got %v", tt.wantLen, len(res.Results))
			}
			if tt.wantLen > 0 && res.Results[0].SourceURL != tt.wantFirst {
				t.Errorf("expected first %s, got %s", tt.wantFirst, res.Results[0].SourceURL)
			}
		})
	}
}

func TestSearch_CapsCatalogAndPages(t *testing.T) {
	cat := &fakeCatalog{}
	spy := &spyFetcher{}
	cfg := DefaultConfig()
	cfg.DBCap = 500
	o := NewOrchestrator(cfg, cat, spy, nil)

	if _, err := o.Search(context.Background(), listing.SearchRequest{Mode: "always", EnableScraping: true, MaxPages: 50}); err != nil {
		t.Fatal(err)
	}
	if cat.last.Limit != catalog.DefaultLimit {
		t.Errorf("expected catalog limit %d, got %d", catalog.DefaultLimit, cat.last.Limit)
	}
	if spy.last.MaxPages != 2 {
		t.Errorf("expected page cap 2, got %d", spy.last.MaxPages)
	}
}

func TestOrchestrator_SetConfig(t *testing.T) {
	spy := &spyFetcher{}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: catalogRows(3)}, spy, nil)

	cfg := DefaultConfig()
	cfg.DefaultMode = ModeNever
	cfg.Threshold = 0
	o.SetConfig(cfg)

	if got := o.Config(); got.DefaultMode != ModeNever || got.Threshold != DefaultThreshold {
		t.Fatalf("unexpected effective config %+v", got)
	}
	if _, err := o.Search(context.Background(), listing.SearchRequest{EnableScraping: true}); err != nil {
		t.Fatal(err)
	}
	if spy.calls != 0 {
		t.Errorf("expected no live fetch after switching to never, got %d", spy.calls)
	}
}

func TestSearch_DegradesOnCollaboratorErrors(t *testing.T) {
	spy := &spyFetcher{err: errors.New("pool closed")}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{err: errors.New("connection refused")}, spy, nil)

	res, err := o.Search(context.Background(), listing.SearchRequest{Query: "clio", EnableScraping: true})
	if err != nil {
		t.Fatalf("expected degraded success, got %v", err)
	}
	if res.Total != 0 || res.Results == nil {
		t.Errorf("expected empty result, got %+v", res)
	}
	if spy.calls != 1 {
		t.Errorf("expected catalog failure to count as 0 rows and trigger live, got %d calls", spy.calls)
	}
}

func TestSearch_AllSourcesFail(t *testing.T) {
	spy := &spyFetcher{result: &aggregator.Result{Sources: map[string]listing.SourceStats{
		"siteA": {Error: "network_error"},
		"siteB": {Error: "blocked_by_target"},
	}}}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{}, spy, nil)

	res, err := o.Search(context.Background(), listing.SearchRequest{EnableScraping: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || len(res.Sources) != 2 || res.Sources["siteB"].Error != "blocked_by_target" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestSearch_UnknownSourceIsClientError(t *testing.T) {
	spy := &spyFetcher{err: &apperrors.PolicyViolation{Field: "sources", Value: "nope"}}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{}, spy, nil)

	_, err := o.Search(context.Background(), listing.SearchRequest{EnableScraping: true, Sources: []string{"nope"}})
	if !apperrors.IsClientError(err) {
		t.Errorf("expected client error, got %v", err)
	}
}

func TestSearch_AppliesFiltersAfterMerge(t *testing.T) {
	rows := catalogRows(3)
	rows[0].Year = listing.Int(2012)
	rows[1].Year = listing.Int(2019)
	spy := &spyFetcher{result: &aggregator.Result{
		Results: []listing.Listing{
			func() listing.Listing { l := car("Peugeot 308 live", 9000, "siteA", "https://live/1"); l.Year = listing.Int(2020); return l }(),
		},
		Sources: map[string]listing.SourceStats{"siteA": {Count: 1, Success: true}},
	}}
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: rows}, spy, nil)

	res, err := o.Search(context.Background(), listing.SearchRequest{
		Mode:           "always",
		EnableScraping: true,
		Filters:        listing.Filters{YearMin: listing.Int(2015)},
	})
	if err != nil {
		t.Fatal(err)
	}
	// rows[2] has no year and passes the one-sided bound.
	if res.Total != 3 || res.FromDB != 2 || res.FromLive != 1 {
		t.Errorf("unexpected totals %d (%d db, %d live)", res.Total, res.FromDB, res.FromLive)
	}
}

type stubParser struct {
	filters listing.Filters
	err     error
}

func (p stubParser) Parse(_ context.Context, text string) (ParsedQuery, error) {
	return ParsedQuery{Filters: p.filters, Keywords: "peugeot"}, p.err
}

func TestSearch_QueryParser(t *testing.T) {
	rows := catalogRows(2)
	rows[0].Price = listing.Int64(30000)
	cat := &fakeCatalog{rows: rows}

	o := NewOrchestrator(DefaultConfig(), cat, nil, nil,
		WithQueryParser(stubParser{filters: listing.Filters{PriceMax: listing.Int64(20000)}}))
	res, err := o.Search(context.Background(), listing.SearchRequest{Query: "peugeot under 20k", Mode: "never"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 {
		t.Errorf("expected parsed price filter to apply, got %d", res.Total)
	}
	if cat.last.Filters.PriceMax == nil {
		t.Error("expected parsed filters to reach the catalog")
	}
	if cat.last.Text != "peugeot" {
		t.Errorf("expected the parsed keywords as catalog text, got %q", cat.last.Text)
	}

	cfg := DefaultConfig()
	cfg.ParseQuery = false
	o = NewOrchestrator(cfg, cat, nil, nil,
		WithQueryParser(stubParser{filters: listing.Filters{PriceMax: listing.Int64(20000)}}))
	if res, err := o.Search(context.Background(), listing.SearchRequest{Query: "peugeot under 20k", Mode: "never"}); err != nil || res.Total != 2 {
		t.Errorf("expected parsing to be switched off, got %v / %+v", err, res)
	}
	if cat.last.Text != "peugeot under 20k" {
		t.Errorf("expected raw text when parsing is off, got %q", cat.last.Text)
	}

	o = NewOrchestrator(DefaultConfig(), cat, nil, nil, WithQueryParser(stubParser{err: errors.New("llm down")}))
	if res, err := o.Search(context.Background(), listing.SearchRequest{Query: "x", Mode: "never"}); err != nil || res.Total != 2 {
		t.Errorf("expected parser failure to be ignored, got %v / %+v", err, res)
	}
}

func TestSearch_RuleParserFeedsCatalogAndLive(t *testing.T) {
	rows := catalogRows(2)
	cat := &fakeCatalog{rows: rows}
	live := &spyFetcher{}
	o := NewOrchestrator(DefaultConfig(), cat, live, nil, WithQueryParser(NewRuleParser()))

	_, err := o.Search(context.Background(), listing.SearchRequest{
		Query:          "Golf diesel moins de 12 000 €",
		Mode:           "always",
		EnableScraping: true,
		Filters:        listing.Filters{PriceMax: listing.Int64(9000)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cat.last.Text != "golf" {
		t.Errorf("expected keywords only in the catalog text, got %q", cat.last.Text)
	}
	if live.last.Query != "golf" || live.last.Filters.FuelType != listing.FuelDiesel {
		t.Errorf("unexpected live request %+v", live.last)
	}
	if p := live.last.Filters.PriceMax; p == nil || *p != 9000 {
		t.Errorf("explicit filters must win over parsed ones, got %v", p)
	}
}

func TestSearch_HistoryRecorderIntegration(t *testing.T) {
	sink := history.NewMemorySink(0)
	rec := history.NewRecorder(sink, 4, nil)
	o := NewOrchestrator(DefaultConfig(), &fakeCatalog{rows: catalogRows(1)}, nil, nil, WithHistory(rec))

	if _, err := o.Search(context.Background(), listing.SearchRequest{Query: "308", Mode: "never", Filters: listing.Filters{Make: "Peugeot"}}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Close(ctx); err != nil {
		t.Fatal(err)
	}
	got, _ := sink.Recent(ctx, 1)
	if len(got) != 1 || got[0].Query != "308" || got[0].Mode != "never" || len(got[0].Filters) != 1 {
		t.Errorf("unexpected history %+v", got)
	}
}
