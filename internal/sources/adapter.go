// internal/sources/adapter.go
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/AutoScrapexter/internal/antidetect"
	"github.com/valpere/AutoScrapexter/internal/browser"
	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/scraper"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

// Adapter fetches raw listing records from one source. Errors are always
// *errors.FetchError.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query string, filters listing.Filters, maxPages int) ([]listing.RawRecord, error)
}

// Sessions hands out rendering sessions with guaranteed release.
type Sessions interface {
	WithSession(ctx context.Context, fn func(browser.Renderer) error) error
}

// Observer receives per-page adapter events.
type Observer interface {
	ObservePage(source string, d time.Duration, err error)
	ObserveDropped(source string, n int)
}

type nopObserver struct{}

func (nopObserver) ObservePage(string, time.Duration, error) {}
func (nopObserver) ObserveDropped(string, int)               {}

// SiteAdapter is the profile-driven Adapter used for every configured site.
type SiteAdapter struct {
	profile   SiteProfile
	extractor *scraper.Extractor
	sessions  Sessions
	captcha   *antidetect.CaptchaDetector
	delay     *antidetect.DelayRandomizer
	observer  Observer
	logger    utils.Logger
}

// AdapterOption customizes a SiteAdapter.
type AdapterOption func(*SiteAdapter)

// WithObserver reports page timings and dropped records.
func WithObserver(o Observer) AdapterOption {
	return func(a *SiteAdapter) {
		if o != nil {
			a.observer = o
		}
	}
}

// NewSiteAdapter builds an adapter for profile rendering through sessions.
func NewSiteAdapter(profile SiteProfile, sessions Sessions, logger utils.Logger, opts ...AdapterOption) (*SiteAdapter, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	extractor, err := scraper.NewExtractor(profile.Fields)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", profile.Name, err)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	a := &SiteAdapter{
		profile:   profile,
		extractor: extractor,
		sessions:  sessions,
		captcha:   antidetect.NewCaptchaDetector(profile.BlockMarkers...),
		delay:     antidetect.NewDelayRandomizer(profile.PageDelay.Min, profile.PageDelay.Max),
		observer:  nopObserver{},
		logger:    logger.WithField("source", profile.Name),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the source name.
func (a *SiteAdapter) Name() string {
	return a.profile.Name
}

// Profile returns the profile the adapter was built from.
func (a *SiteAdapter) Profile() SiteProfile {
	return a.profile
}

// Fetch walks result pages 1..maxPages inside one rendering session and
// stops at the first page without records.
func (a *SiteAdapter) Fetch(ctx context.Context, query string, filters listing.Filters, maxPages int) ([]listing.RawRecord, error) {
	if maxPages <= 0 || (a.profile.MaxPages > 0 && maxPages > a.profile.MaxPages) {
		maxPages = a.profile.MaxPages
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	var records []listing.RawRecord
	err := a.sessions.WithSession(ctx, func(r browser.Renderer) error {
		for page := 1; page <= maxPages; page++ {
			if page > 1 {
				if err := a.delay.Wait(ctx); err != nil {
					return err
				}
			}

			recs, err := a.fetchPage(ctx, r, query, filters, page)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				a.logger.Debugf("page %d empty, stopping", page)
				break
			}
			records = append(records, recs...)
		}
		return nil
	})
	if err != nil {
		return nil, a.classify(ctx, err)
	}

	a.logger.WithFields(map[string]interface{}{
		"query":   query,
		"records": len(records),
	}).Info("fetch completed")
	return records, nil
}

func (a *SiteAdapter) fetchPage(ctx context.Context, r browser.Renderer, query string, filters listing.Filters, page int) ([]listing.RawRecord, error) {
	pageURL, err := a.profile.PageURL(query, filters, page)
	if err != nil {
		return nil, apperrors.NewFetchError(a.Name(), apperrors.ParseFailure, err)
	}

	start := time.Now()
	html, err := r.Render(ctx, pageURL)
	if err == nil {
		var recs []listing.RawRecord
		recs, err = a.extractPage(ctx, html, pageURL)
		a.observer.ObservePage(a.Name(), time.Since(start), err)
		return recs, err
	}
	a.observer.ObservePage(a.Name(), time.Since(start), err)
	return nil, err
}

func (a *SiteAdapter) extractPage(ctx context.Context, html, pageURL string) ([]listing.RawRecord, error) {
	if kind, found := a.captcha.Detect(html); found {
		return nil, apperrors.NewFetchError(a.Name(), apperrors.BlockedByTarget,
			fmt.Errorf("anti-bot page detected (%s) at %s", kind, pageURL))
	}

	page, err := scraper.ParsePage(html, pageURL)
	if err != nil {
		return nil, apperrors.NewFetchError(a.Name(), apperrors.ParseFailure, err)
	}

	items := page.Items(a.profile.ItemSelectors)
	if items.Length() == 0 {
		return nil, nil
	}

	var records []listing.RawRecord
	blank, dropped := 0, 0
	items.Each(func(_ int, item *goquery.Selection) {
		rec, report := a.extractor.Extract(ctx, item, page.URL)
		if rec.IsBlank() {
			blank++
		}
		if !report.Complete() {
			dropped++
			a.logger.Debugf("dropping record missing %v", report.Missing)
			return
		}
		rec.Source = a.Name()
		records = append(records, rec)
	})

	// Cards are present yet nothing in them matched: the site is serving a
	// decoy or degraded page.
	if blank == items.Length() {
		return nil, apperrors.NewFetchError(a.Name(), apperrors.BlockedByTarget,
			fmt.Errorf("%d item nodes at %s but no field extracted", blank, pageURL))
	}
	if dropped > 0 {
		a.logger.Warnf("dropped %d of %d records missing required fields at %s", dropped, items.Length(), pageURL)
		a.observer.ObserveDropped(a.Name(), dropped)
	}
	return records, nil
}

// classify maps any failure onto the fetch error taxonomy.
func (a *SiteAdapter) classify(ctx context.Context, err error) error {
	var fe *apperrors.FetchError
	if errors.As(err, &fe) {
		return err
	}

	var httpErr *scraper.HTTPError
	switch {
	case errors.As(err, &httpErr) && httpErr.IsBlockStatus():
		return apperrors.NewFetchError(a.Name(), apperrors.BlockedByTarget, err)
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewFetchError(a.Name(), apperrors.Timeout, err)
	default:
		return apperrors.NewFetchError(a.Name(), apperrors.NetworkError, err)
	}
}
