// internal/sources/profile_test.go
package sources

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

type stubAdapter string

func (s stubAdapter) Name() string { return string(s) }
func (s stubAdapter) Fetch(context.Context, string, listing.Filters, int) ([]listing.RawRecord, error) {
	return nil, nil
}

func TestSiteProfile_PageURL(t *testing.T) {
	p := testProfile("https://cars.example.com")
	p.SearchPath = "/search?q={query}&make={make}&pmin={price_min}&pmax={price_max}&y={year_min}&page={page}"

	got, err := p.PageURL("clio 5 é", listing.Filters{Make: "Renault", PriceMax: listing.Int64(15000)}, 3)
	if err != nil {
		t.Fatalf("PageURL failed: %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("q") != "clio 5 é" || q.Get("make") != "Renault" || q.Get("pmax") != "15000" || q.Get("page") != "3" {
		t.Errorf("unexpected query values in %s", got)
	}
	if q.Has("pmin") || q.Has("y") {
		t.Errorf("expected unset filters to be dropped, got %s", got)
	}
	if u.Host != "cars.example.com" || u.Path != "/search" {
		t.Errorf("unexpected URL %s", got)
	}
}

func TestSiteProfile_PageURLUnresolved(t *testing.T) {
	p := testProfile("https://cars.example.com")
	p.SearchPath = "/search?page={page}&color={colour}"
	if _, err := p.PageURL("x", listing.Filters{}, 1); err == nil {
		t.Error("expected error for unknown placeholder")
	}
}

func TestSiteProfile_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SiteProfile)
		errSub string
	}{
		{"valid", func(*SiteProfile) {}, ""},
		{"no name", func(p *SiteProfile) { p.Name = "" }, "name"},
		{"reserved name", func(p *SiteProfile) { p.Name = listing.SourceDB }, "reserved"},
		{"relative base", func(p *SiteProfile) { p.BaseURL = "/cars" }, "base_url"},
		{"no page placeholder", func(p *SiteProfile) { p.SearchPath = "/search?q={query}" }, "{page}"},
		{"no item selectors", func(p *SiteProfile) { p.ItemSelectors = nil }, "item selector"},
		{"bad renderer", func(p *SiteProfile) { p.Renderer = "curl" }, "renderer"},
		{"no title rule", func(p *SiteProfile) { p.Fields = p.Fields[1:] }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile("https://cars.example.com")
			tt.mutate(&p)
			err := p.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("expected error containing %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestBuiltinProfiles(t *testing.T) {
	profiles, err := BuiltinProfiles()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"lacentrale": true, "leboncoin": true, "autoscout24": true}
	if len(profiles) != len(want) {
		t.Fatalf("expected %d built-in profiles, got %d", len(want), len(profiles))
	}
	for _, p := range profiles {
		if !want[p.Name] {
			t.Errorf("unexpected profile %q", p.Name)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("built-in profile %s invalid: %v", p.Name, err)
		}
		if _, err := p.PageURL("peugeot 308", listing.Filters{}, 1); err != nil {
			t.Errorf("built-in profile %s: %v", p.Name, err)
		}
	}
}

func TestResolveProfiles(t *testing.T) {
	extra := testProfile("https://cars.example.com")
	overrides := []SiteProfile{
		{Name: "lacentrale", MaxPages: 4},
		{Name: "leboncoin", Disabled: true},
		extra,
	}

	profiles, err := ResolveProfiles(overrides)
	if err != nil {
		t.Fatalf("ResolveProfiles failed: %v", err)
	}

	byName := make(map[string]SiteProfile)
	for _, p := range profiles {
		byName[p.Name] = p
	}
	if _, ok := byName["leboncoin"]; ok {
		t.Error("expected disabled profile to be omitted")
	}
	if byName["lacentrale"].MaxPages != 4 {
		t.Errorf("expected override to apply, got max_pages %d", byName["lacentrale"].MaxPages)
	}
	if len(byName["lacentrale"].Fields) == 0 {
		t.Error("override must keep built-in field rules")
	}
	if _, ok := byName["testsite"]; !ok {
		t.Error("expected extra profile to be added")
	}
	if len(profiles) != 3 {
		t.Errorf("expected 3 enabled profiles, got %d", len(profiles))
	}
}

func TestResolveProfiles_InvalidOverride(t *testing.T) {
	_, err := ResolveProfiles([]SiteProfile{{Name: "autoscout24", BaseURL: "ftp://nope"}})
	if err == nil {
		t.Error("expected invalid override to be rejected")
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(stubAdapter("b"), stubAdapter("a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(stubAdapter("a")); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	if names := reg.Names(); len(names) != 2 || names[0] != "a" {
		t.Errorf("unexpected names %v", names)
	}

	all, err := reg.Select(nil)
	if err != nil || len(all) != 2 {
		t.Errorf("expected all adapters, got %d (%v)", len(all), err)
	}
	some, err := reg.Select([]string{"b", "b"})
	if err != nil || len(some) != 1 || some[0].Name() != "b" {
		t.Errorf("unexpected selection %v (%v)", some, err)
	}
	if _, err := reg.Select([]string{"c"}); err == nil {
		t.Error("expected unknown source to fail")
	}
}
