// internal/pipeline/dedup.go
package pipeline

import (
	"strings"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

// Dedupe collapses listings sharing a fingerprint. The first occurrence wins
// and relative order is kept, so Dedupe(Dedupe(l)) equals Dedupe(l).
func Dedupe(listings []listing.Listing) []listing.Listing {
	seen := make(map[listing.Fingerprint]struct{}, len(listings))
	out := make([]listing.Listing, 0, len(listings))
	for i := range listings {
		fp := listings[i].Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, listings[i])
	}
	return out
}

// DedupeAgainstStore dedupes batch and then drops every entry already present
// in existing, matched by fingerprint or by source URL.
func DedupeAgainstStore(batch, existing []listing.Listing) []listing.Listing {
	known := make(map[listing.Fingerprint]struct{}, len(existing))
	knownURLs := make(map[string]struct{}, len(existing))
	for i := range existing {
		known[existing[i].Fingerprint()] = struct{}{}
		if u := strings.TrimSpace(existing[i].SourceURL); u != "" {
			knownURLs[u] = struct{}{}
		}
	}

	unique := Dedupe(batch)
	out := make([]listing.Listing, 0, len(unique))
	for i := range unique {
		if _, dup := known[unique[i].Fingerprint()]; dup {
			continue
		}
		if _, dup := knownURLs[strings.TrimSpace(unique[i].SourceURL)]; dup {
			continue
		}
		out = append(out, unique[i])
	}
	return out
}

// Merge concatenates primary and secondary and dedupes the result, so
// primary entries win every fingerprint conflict.
func Merge(primary, secondary []listing.Listing) []listing.Listing {
	all := make([]listing.Listing, 0, len(primary)+len(secondary))
	all = append(all, primary...)
	all = append(all, secondary...)
	return Dedupe(all)
}
