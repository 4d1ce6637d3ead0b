// internal/pipeline/normalizer.go
package pipeline

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/utils"
)

var (
	// Grouped thousands ("15 000", "15.000", "15,000", "15'000") or a bare
	// digit run. Separators include NBSP and narrow NBSP.
	amountRe = regexp.MustCompile(`\d{1,3}(?:[ \x{00A0}\x{202F}.,']\d{3})+|\d+`)
	yearRe   = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	sepRe    = regexp.MustCompile(`[ \x{00A0}\x{202F}.,']`)
)

// Normalizer maps raw records onto the canonical listing schema.
type Normalizer struct {
	now    func() time.Time
	newID  func() string
	logger utils.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator overrides listing ID generation.
func WithIDGenerator(gen func() string) NormalizerOption {
	return func(n *Normalizer) { n.newID = gen }
}

// NewNormalizer creates a normalizer.
func NewNormalizer(logger utils.Logger, opts ...NormalizerOption) *Normalizer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	n := &Normalizer{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.WithField("component", "normalizer"),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record. Only a missing title is an error; every
// other field degrades to empty.
func (n *Normalizer) Normalize(raw listing.RawRecord, source string) (listing.Listing, error) {
	title := collapseSpaces(raw.Title.Value)
	if !raw.Title.Ok() || title == "" {
		return listing.Listing{}, &apperrors.NormalizationError{Field: listing.FieldTitle, Reason: "missing title (" + raw.Title.State.String() + ")"}
	}

	now := n.now()
	l := listing.Listing{
		ID:          n.newID(),
		Title:       title,
		Description: collapseSpaces(raw.Description.Value),
		Location:    collapseSpaces(raw.Location.Value),
		Source:      source,
		SourceURL:   strings.TrimSpace(raw.URL.Value),
		CreatedAt:   now,
		UpdatedAt:   now,
		Color:       collapseSpaces(raw.Color.Value),
		BodyType:    collapseSpaces(raw.Body.Value),
		SellerType:  normalizeSeller(raw.Seller.Value),
		Images:      normalizeImages(raw.Images),
		Features:    normalizeFeatures(raw.Features),
	}

	if raw.Price.Ok() {
		l.Price = ParsePrice(raw.Price.Value)
	}
	if raw.Mileage.Ok() {
		l.Mileage = ParsePrice(raw.Mileage.Value)
	}
	l.Year = n.extractYear(raw, now)

	if raw.Fuel.Ok() {
		l.FuelType = MapVocabulary(listing.FuelVocabulary, raw.Fuel.Value)
	}
	if raw.Transmission.Ok() {
		l.Transmission = MapVocabulary(listing.TransmissionVocabulary, raw.Transmission.Value)
	}

	l.Doors = parseSmallInt(raw.Doors)
	l.Seats = parseSmallInt(raw.Seats)
	l.PowerHP = parseSmallInt(raw.Power)

	if raw.Make.Ok() {
		l.Make = CanonicalMake(raw.Make.Value)
	}
	if raw.Model.Ok() {
		l.Model = collapseSpaces(raw.Model.Value)
	}
	if l.Make == "" || l.Model == "" {
		brand, model := InferMakeModel(title)
		if l.Make == "" {
			l.Make = brand
		}
		if l.Model == "" && (brand == "" || strings.EqualFold(brand, l.Make)) {
			l.Model = model
		}
	}

	return l, nil
}

// NormalizeAll normalizes a batch, skipping records that fail. It returns the
// listings and the number dropped.
func (n *Normalizer) NormalizeAll(raws []listing.RawRecord, source string) ([]listing.Listing, int) {
	out := make([]listing.Listing, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		l, err := n.Normalize(raw, source)
		if err != nil {
			dropped++
			n.logger.WithField("source", source).Debugf("dropping record: %v", err)
			continue
		}
		out = append(out, l)
	}
	return out, dropped
}

func (n *Normalizer) extractYear(raw listing.RawRecord, now time.Time) *int {
	candidates := []string{raw.Title.Value, raw.Description.Value}
	if raw.Year.Ok() {
		candidates = []string{raw.Year.Value}
	}
	for _, text := range candidates {
		if y := ExtractYear(text); y != nil {
			if *y < listing.MinYear || *y > listing.MaxYear(now) {
				return nil
			}
			return y
		}
	}
	return nil
}

// ParsePrice extracts the first amount from localized text such as
// "15 000 €", "€15000" or "15.000 EUR". It returns nil when no digits are
// present.
func ParsePrice(text string) *int64 {
	match := amountRe.FindString(text)
	if match == "" {
		return nil
	}
	digits := sepRe.ReplaceAllString(match, "")
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ExtractYear returns the first 4-digit token in [1900, 2099].
func ExtractYear(text string) *int {
	m := yearRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &y
}

// MapVocabulary returns the canonical value whose synonym occurs in raw, or
// the trimmed raw text when nothing matches.
func MapVocabulary(vocab []listing.VocabularyEntry, raw string) string {
	key := FoldKey(raw)
	if key == "" {
		return ""
	}
	for _, entry := range vocab {
		for _, syn := range entry.Synonyms {
			if strings.Contains(key, syn) {
				return entry.Value
			}
		}
	}
	return collapseSpaces(raw)
}

func parseSmallInt(f listing.Field) *int {
	if !f.Ok() {
		return nil
	}
	v := ParsePrice(f.Value)
	if v == nil || *v > 10000 {
		return nil
	}
	i := int(*v)
	return &i
}

func normalizeSeller(raw string) string {
	key := FoldKey(raw)
	switch {
	case key == "":
		return ""
	case strings.Contains(key, "pro"), strings.Contains(key, "dealer"), strings.Contains(key, "garage"):
		return "professional"
	case strings.Contains(key, "particulier"), strings.Contains(key, "private"), strings.Contains(key, "privat"):
		return "private"
	default:
		return collapseSpaces(raw)
	}
}

func normalizeImages(images []string) []string {
	if len(images) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(images))
	out := make([]string, 0, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		u, err := url.Parse(img)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if seen[img] {
			continue
		}
		seen[img] = true
		out = append(out, img)
	}
	return out
}

func normalizeFeatures(features []string) []string {
	var out []string
	for _, f := range features {
		if f = collapseSpaces(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func collapseSpaces(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
