// internal/search/filter.go
package search

import (
	"strings"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
)

// equipmentKeywords maps each presence flag to the folded keywords that
// indicate it in a feature list. French first, since most sources are.
var equipmentKeywords = map[string][]string{
	"air_conditioning": {"climatisation", "clim", "air conditionne", "air conditioning", "a/c", "climatronic"},
	"gps":              {"gps", "navigation", "navi"},
	"leather_seats":    {"cuir", "leather"},
	"sunroof":          {"toit ouvrant", "toit panoramique", "sunroof", "panoramic roof"},
	"parking_sensors":  {"radar de recul", "radars de recul", "aide au stationnement", "capteurs de stationnement", "parking sensor", "park assist"},
	"rear_camera":      {"camera de recul", "rear camera", "reversing camera", "backup camera"},
	"cruise_control":   {"regulateur de vitesse", "cruise control", "limiteur et regulateur"},
	"bluetooth":        {"bluetooth"},
	"heated_seats":     {"sieges chauffants", "heated seats", "sitzheizung"},
	"alloy_wheels":     {"jantes alliage", "jantes alu", "alloy wheels", "alufelgen"},
	"four_wheel_drive": {"4x4", "4wd", "awd", "quattro", "4motion", "transmission integrale", "four wheel drive", "allrad"},
	"tow_hook":         {"attelage", "tow hook", "towbar", "tow bar", "anhangerkupplung"},
	"first_owner":      {"premiere main", "1ere main", "first owner", "one owner"},
	"service_history":  {"carnet d'entretien", "historique d'entretien", "entretien constructeur", "service history"},
	"non_smoker":       {"non fumeur", "non-fumeur", "non smoker", "non-smoker", "nichtraucher"},
}

// EquipmentKeywords returns the keywords recognised for a presence flag.
func EquipmentKeywords(flag string) []string {
	return append([]string(nil), equipmentKeywords[flag]...)
}

// FilterProcessor applies the full filter set to merged results. All
// predicates are ANDed.
type FilterProcessor struct{}

// NewFilterProcessor creates a processor.
func NewFilterProcessor() *FilterProcessor {
	return &FilterProcessor{}
}

// Apply returns the listings matching f, preserving order.
func (p *FilterProcessor) Apply(listings []listing.Listing, f listing.Filters) []listing.Listing {
	if f.IsZero() {
		return listings
	}
	c := compile(f)
	out := make([]listing.Listing, 0, len(listings))
	for i := range listings {
		if c.match(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	return out
}

type textPredicate struct {
	value func(*listing.Listing) string
	want  string
}

type compiled struct {
	f         listing.Filters
	text      []textPredicate
	equipment map[string]bool
}

func compile(f listing.Filters) compiled {
	c := compiled{f: f, equipment: f.Equipment()}
	addText := func(raw string, value func(*listing.Listing) string) {
		if key := pipeline.FoldKey(raw); key != "" {
			c.text = append(c.text, textPredicate{value: value, want: key})
		}
	}

	makeName := f.Make
	if makeName != "" {
		makeName = pipeline.CanonicalMake(makeName)
	}
	addText(makeName, func(l *listing.Listing) string { return l.Make })
	addText(f.Model, func(l *listing.Listing) string { return l.Model })
	addText(vocabularyValue(listing.FuelVocabulary, f.FuelType), func(l *listing.Listing) string { return l.FuelType })
	addText(vocabularyValue(listing.TransmissionVocabulary, f.Transmission), func(l *listing.Listing) string { return l.Transmission })
	addText(f.Color, func(l *listing.Listing) string { return l.Color })
	addText(f.BodyType, func(l *listing.Listing) string { return l.BodyType })
	addText(f.Location, func(l *listing.Listing) string { return l.Location })
	addText(f.SellerType, func(l *listing.Listing) string { return l.SellerType })
	return c
}

func vocabularyValue(vocab []listing.VocabularyEntry, raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return pipeline.MapVocabulary(vocab, raw)
}

func (c compiled) match(l *listing.Listing) bool {
	f := c.f
	if !rangeInt64(l.Price, f.PriceMin, f.PriceMax) ||
		!rangeInt(l.Year, f.YearMin, f.YearMax) ||
		!rangeInt64(l.Mileage, f.MileageMin, f.MileageMax) ||
		!rangeInt(l.PowerHP, f.PowerMin, f.PowerMax) ||
		!rangeInt(l.Doors, f.DoorsMin, f.DoorsMax) ||
		!rangeInt(l.Seats, f.SeatsMin, f.SeatsMax) {
		return false
	}

	for _, t := range c.text {
		have := pipeline.FoldKey(t.value(l))
		if have == "" || !strings.Contains(have, t.want) {
			return false
		}
	}

	if len(c.equipment) == 0 {
		return true
	}
	features := foldFeatures(l.Features)
	for flag, want := range c.equipment {
		if len(features) == 0 {
			if want {
				return false
			}
			continue
		}
		if hasKeyword(features, equipmentKeywords[flag]) != want {
			return false
		}
	}
	return true
}

// rangeInt64 applies [min, max]. With both bounds a missing value fails;
// with one bound it passes.
func rangeInt64(v, min, max *int64) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return min == nil || max == nil
	}
	return (min == nil || *v >= *min) && (max == nil || *v <= *max)
}

func rangeInt(v, min, max *int) bool {
	if min == nil && max == nil {
		return true
	}
	if v == nil {
		return min == nil || max == nil
	}
	return (min == nil || *v >= *min) && (max == nil || *v <= *max)
}

func foldFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		if k := pipeline.FoldKey(f); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func hasKeyword(features, keywords []string) bool {
	for _, f := range features {
		for _, k := range keywords {
			if strings.Contains(f, k) {
				return true
			}
		}
	}
	return false
}
