// internal/scraper/parser.go
package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed results page.
type Page struct {
	Document *goquery.Document
	URL      *url.URL
	HTML     string
}

// ParsePage parses rendered HTML fetched from pageURL.
func ParsePage(html, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	return &Page{Document: doc, URL: u, HTML: html}, nil
}

// Items returns the listing cards matched by the first selector in the chain
// that matches anything.
func (p *Page) Items(selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		if items := p.Document.Find(sel); items.Length() > 0 {
			return items
		}
	}
	return p.Document.Selection.Slice(0, 0)
}

// Text returns the visible text of the page body.
func (p *Page) Text() string {
	return strings.TrimSpace(p.Document.Find("body").Text())
}
