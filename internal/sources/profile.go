// internal/sources/profile.go
package sources

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/scraper"
)

// Renderer kinds a profile may ask for.
const (
	RendererBrowser = "browser"
	RendererHTTP    = "http"
)

// DelayRange bounds the randomized pause between result pages.
type DelayRange struct {
	Min time.Duration `yaml:"min" json:"min"`
	Max time.Duration `yaml:"max" json:"max"`
}

// SiteProfile describes one classifieds site: where its result pages live and
// how to read a listing card.
type SiteProfile struct {
	Name          string              `yaml:"name" json:"name"`
	Disabled      bool                `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	BaseURL       string              `yaml:"base_url" json:"base_url"`
	SearchPath    string              `yaml:"search_path" json:"search_path"`
	Renderer      string              `yaml:"renderer,omitempty" json:"renderer,omitempty"`
	ItemSelectors []string            `yaml:"item_selectors" json:"item_selectors"`
	Fields        []scraper.FieldRule `yaml:"fields" json:"fields"`
	PageDelay     DelayRange          `yaml:"page_delay" json:"page_delay"`
	MaxPages      int                 `yaml:"max_pages" json:"max_pages"`
	BlockMarkers  []string            `yaml:"block_markers,omitempty" json:"block_markers,omitempty"`
}

// Validate checks the profile is usable.
func (p SiteProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}
	if p.Name == listing.SourceDB {
		return fmt.Errorf("profile name %q is reserved", p.Name)
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("profile %s: base_url must be an absolute http(s) URL", p.Name)
	}
	if !strings.Contains(p.SearchPath, "{page}") {
		return fmt.Errorf("profile %s: search_path must contain {page}", p.Name)
	}
	if len(p.ItemSelectors) == 0 {
		return fmt.Errorf("profile %s: at least one item selector is required", p.Name)
	}
	switch p.Renderer {
	case "", RendererBrowser, RendererHTTP:
	default:
		return fmt.Errorf("profile %s: unknown renderer %q", p.Name, p.Renderer)
	}
	if p.PageDelay.Min < 0 || p.PageDelay.Max < 0 {
		return fmt.Errorf("profile %s: page_delay must not be negative", p.Name)
	}
	if p.MaxPages < 0 {
		return fmt.Errorf("profile %s: max_pages must not be negative", p.Name)
	}
	if _, err := scraper.NewExtractor(p.Fields); err != nil {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return nil
}

// Override returns p with every non-zero field of o applied on top.
func (p SiteProfile) Override(o SiteProfile) SiteProfile {
	if o.BaseURL != "" {
		p.BaseURL = o.BaseURL
	}
	if o.SearchPath != "" {
		p.SearchPath = o.SearchPath
	}
	if o.Renderer != "" {
		p.Renderer = o.Renderer
	}
	if len(o.ItemSelectors) > 0 {
		p.ItemSelectors = o.ItemSelectors
	}
	if len(o.Fields) > 0 {
		p.Fields = o.Fields
	}
	if o.PageDelay != (DelayRange{}) {
		p.PageDelay = o.PageDelay
	}
	if o.MaxPages > 0 {
		p.MaxPages = o.MaxPages
	}
	if len(o.BlockMarkers) > 0 {
		p.BlockMarkers = o.BlockMarkers
	}
	p.Disabled = o.Disabled
	return p
}

// PageURL builds the URL of one result page. Query parameters whose
// placeholder resolved to nothing are dropped.
func (p SiteProfile) PageURL(query string, f listing.Filters, page int) (string, error) {
	values := map[string]string{
		"query":        query,
		"page":         strconv.Itoa(page),
		"make":         f.Make,
		"model":        f.Model,
		"fuel":         f.FuelType,
		"transmission": f.Transmission,
		"price_min":    formatInt64(f.PriceMin),
		"price_max":    formatInt64(f.PriceMax),
		"year_min":     formatInt(f.YearMin),
		"year_max":     formatInt(f.YearMax),
		"mileage_max":  formatInt64(f.MileageMax),
	}

	path := p.SearchPath
	for key, v := range values {
		path = strings.ReplaceAll(path, "{"+key+"}", url.QueryEscape(v))
	}
	if strings.ContainsAny(path, "{}") {
		return "", fmt.Errorf("profile %s: unresolved placeholder in %q", p.Name, path)
	}

	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid search path: %w", err)
	}
	u := base.ResolveReference(ref)

	q := u.Query()
	for key, vs := range q {
		if len(vs) == 0 || vs[0] == "" {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func formatInt64(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
