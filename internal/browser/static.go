// internal/browser/static.go
package browser

import (
	"context"

	"github.com/valpere/AutoScrapexter/internal/scraper"
)

// HTTPRenderer serves pages that need no JavaScript straight from the HTTP
// client.
type HTTPRenderer struct {
	client *scraper.HTTPClient
}

// NewHTTPRenderer wraps client.
func NewHTTPRenderer(client *scraper.HTTPClient) *HTTPRenderer {
	return &HTTPRenderer{client: client}
}

// Render fetches url.
func (h *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	return h.client.Get(ctx, url)
}

// Close is a no-op; the underlying client is shared.
func (h *HTTPRenderer) Close() error { return nil }

// HTTPFactory hands out renderers sharing one client.
func HTTPFactory(client *scraper.HTTPClient) Factory {
	r := NewHTTPRenderer(client)
	return func(context.Context) (Renderer, error) { return r, nil }
}
