// internal/pipeline/dedup_test.go
package pipeline

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

func mk(title string, price int64, source, url string) listing.Listing {
	return listing.Listing{Title: title, Price: listing.Int64(price), Source: source, SourceURL: url}
}

func fingerprints(ls []listing.Listing) []string {
	out := make([]string, len(ls))
	for i := range ls {
		out[i] = ls[i].Fingerprint().String()
	}
	sort.Strings(out)
	return out
}

func randomListings(r *rand.Rand, n int) []listing.Listing {
	titles := []string{"Peugeot 308", "peugeot 308 ", "Renault Clio", "RENAULT CLIO", "Fiat 500"}
	prices := []int64{9000, 9500, 12000}
	out := make([]listing.Listing, n)
	for i := range out {
		out[i] = mk(titles[r.Intn(len(titles))], prices[r.Intn(len(prices))], "s", fmt.Sprintf("u%d", i))
		if r.Intn(5) == 0 {
			out[i].Price = nil
		}
	}
	return out
}

func TestDedupe_FirstSeenWins(t *testing.T) {
	in := []listing.Listing{
		mk("Peugeot 308", 15000, "leboncoin", "a"),
		mk("  PEUGEOT 308 ", 15000, "lacentrale", "b"),
		mk("Peugeot 308", 15500, "lacentrale", "c"),
		mk("Renault Clio", 9000, "autoscout24", "d"),
	}

	out := Dedupe(in)

	if len(out) != 3 {
		t.Fatalf("expected 3 unique listings, got %d", len(out))
	}
	if out[0].SourceURL != "a" {
		t.Errorf("expected first occurrence to win, got %s", out[0].SourceURL)
	}
	if out[1].SourceURL != "c" || out[2].SourceURL != "d" {
		t.Errorf("expected stable order, got %s,%s", out[1].SourceURL, out[2].SourceURL)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		l := randomListings(r, r.Intn(30))
		once := Dedupe(l)
		twice := Dedupe(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("Dedupe not idempotent for %v", fingerprints(l))
		}
	}
}

func TestDedupe_Commutative(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		a := randomListings(r, r.Intn(15))
		b := randomListings(r, r.Intn(15))

		ab := Dedupe(append(append([]listing.Listing{}, a...), b...))
		ba := Dedupe(append(append([]listing.Listing{}, b...), a...))

		if !reflect.DeepEqual(fingerprints(ab), fingerprints(ba)) {
			t.Fatalf("Dedupe(A+B) and Dedupe(B+A) differ: %v vs %v", fingerprints(ab), fingerprints(ba))
		}
	}
}

func TestDedupe_CollapsesAcrossSources(t *testing.T) {
	n := newTestNormalizer()

	fromA, err := n.Normalize(raw(map[string]string{listing.FieldTitle: "Audi A3 Sportback", listing.FieldPrice: "21 900 €"}), "leboncoin")
	if err != nil {
		t.Fatal(err)
	}
	fromB, err := n.Normalize(raw(map[string]string{listing.FieldTitle: "audi a3 sportback", listing.FieldPrice: "21900"}), "autoscout24")
	if err != nil {
		t.Fatal(err)
	}

	if out := Dedupe([]listing.Listing{fromA, fromB}); len(out) != 1 {
		t.Errorf("expected cross-source duplicates to collapse, got %d", len(out))
	}
}

func TestDedupeAgainstStore(t *testing.T) {
	existing := []listing.Listing{
		mk("Peugeot 308", 15000, listing.SourceDB, "https://x/1"),
		mk("Fiat 500", 7000, listing.SourceDB, "https://x/2"),
	}
	batch := []listing.Listing{
		mk("peugeot 308", 15000, "leboncoin", "https://y/9"),   // fingerprint match
		mk("Fiat 500 Lounge", 7200, "lacentrale", "https://x/2"), // url match
		mk("Renault Clio", 9000, "leboncoin", "https://y/3"),
		mk("renault clio", 9000, "autoscout24", "https://z/3"), // batch duplicate
	}

	out := DedupeAgainstStore(batch, existing)
	if len(out) != 1 || out[0].SourceURL != "https://y/3" {
		t.Errorf("expected only the new Clio, got %v", fingerprints(out))
	}

	if got := DedupeAgainstStore(batch, nil); len(got) != 3 {
		t.Errorf("with empty store expected 3, got %d", len(got))
	}
}

func TestMerge_PrimaryWins(t *testing.T) {
	db := []listing.Listing{mk("Peugeot 308", 15000, listing.SourceDB, "db-url")}
	live := []listing.Listing{
		mk("peugeot 308", 15000, "leboncoin", "live-url"),
		mk("Fiat 500", 7000, "leboncoin", "live-2"),
	}

	out := Merge(db, live)
	if len(out) != 2 {
		t.Fatalf("expected 2 merged listings, got %d", len(out))
	}
	if out[0].Source != listing.SourceDB {
		t.Errorf("expected catalog entry to win, got source %s", out[0].Source)
	}
}
