// internal/search/query.go
package search

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
)

// MergeFilters fills every filter unset in explicit from parsed. Explicit
// values always win.
func MergeFilters(explicit, parsed listing.Filters) listing.Filters {
	out := explicit
	pickInt64(&out.PriceMin, parsed.PriceMin)
	pickInt64(&out.PriceMax, parsed.PriceMax)
	pickInt64(&out.MileageMin, parsed.MileageMin)
	pickInt64(&out.MileageMax, parsed.MileageMax)
	pickInt(&out.YearMin, parsed.YearMin)
	pickInt(&out.YearMax, parsed.YearMax)
	pickInt(&out.PowerMin, parsed.PowerMin)
	pickInt(&out.PowerMax, parsed.PowerMax)
	pickInt(&out.DoorsMin, parsed.DoorsMin)
	pickInt(&out.DoorsMax, parsed.DoorsMax)
	pickInt(&out.SeatsMin, parsed.SeatsMin)
	pickInt(&out.SeatsMax, parsed.SeatsMax)

	pickString(&out.Make, parsed.Make)
	pickString(&out.Model, parsed.Model)
	pickString(&out.FuelType, parsed.FuelType)
	pickString(&out.Transmission, parsed.Transmission)
	pickString(&out.Color, parsed.Color)
	pickString(&out.BodyType, parsed.BodyType)
	pickString(&out.Location, parsed.Location)
	pickString(&out.SellerType, parsed.SellerType)

	for _, p := range []struct{ dst, src **bool }{
		{&out.AirConditioning, &parsed.AirConditioning},
		{&out.GPS, &parsed.GPS},
		{&out.LeatherSeats, &parsed.LeatherSeats},
		{&out.Sunroof, &parsed.Sunroof},
		{&out.ParkingSensors, &parsed.ParkingSensors},
		{&out.RearCamera, &parsed.RearCamera},
		{&out.CruiseControl, &parsed.CruiseControl},
		{&out.Bluetooth, &parsed.Bluetooth},
		{&out.HeatedSeats, &parsed.HeatedSeats},
		{&out.AlloyWheels, &parsed.AlloyWheels},
		{&out.FourWheelDrive, &parsed.FourWheelDrive},
		{&out.TowHook, &parsed.TowHook},
		{&out.FirstOwner, &parsed.FirstOwner},
		{&out.ServiceHistory, &parsed.ServiceHistory},
		{&out.NonSmoker, &parsed.NonSmoker},
	} {
		if *p.dst == nil {
			*p.dst = *p.src
		}
	}
	return out
}

func pickInt64(dst **int64, src *int64) {
	if *dst == nil {
		*dst = src
	}
}

func pickInt(dst **int, src *int) {
	if *dst == nil {
		*dst = src
	}
}

func pickString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

var (
	amountPattern = `(\d{1,3}(?:[ .]\d{3})+|\d+)`
	currency      = `(?:€|eur\b|euros?\b)`

	mileageRe = regexp.MustCompile(`(?:(under|below|max|less than|moins de)\s*|<\s*)?` + amountPattern + `\s*(k)?\s*km\b`)
	priceRe   = regexp.MustCompile(`(?:(under|below|max|less than|moins de|jusqu'a)|(over|above|min|more than|plus de))?\s*` +
		amountPattern + `\s*(?:(k)\b\s*` + currency + `?|` + currency + `)`)
	modelYearRe = regexp.MustCompile(`\b(?:(after|since|from|apres|depuis)|(before|until|avant))?\s*(19[5-9]\d|20\d{2})\b`)
)

// RuleParser extracts filters from free text with fixed patterns: prices
// with a currency or a "k" suffix, mileages in km, model years and the fuel
// and transmission vocabulary. Words it does not recognise are kept as
// keywords. It never fails.
type RuleParser struct{}

// NewRuleParser creates a RuleParser.
func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// Parse implements QueryParser.
func (p *RuleParser) Parse(_ context.Context, text string) (ParsedQuery, error) {
	var f listing.Filters
	rest := pipeline.FoldKey(text)

	if m := mileageRe.FindStringSubmatch(rest); m != nil {
		if v, ok := parseAmount(m[2], m[3] != ""); ok {
			f.MileageMax = listing.Int64(v)
			rest = strings.Replace(rest, m[0], " ", 1)
		}
	}

	if m := priceRe.FindStringSubmatch(rest); m != nil {
		if v, ok := parseAmount(m[3], m[4] != ""); ok {
			if m[2] != "" {
				f.PriceMin = listing.Int64(v)
			} else {
				f.PriceMax = listing.Int64(v)
			}
			rest = strings.Replace(rest, m[0], " ", 1)
		}
	}

	if m := modelYearRe.FindStringSubmatch(rest); m != nil {
		y, _ := strconv.Atoi(m[3])
		switch {
		case m[1] != "":
			f.YearMin = listing.Int(y)
		case m[2] != "":
			f.YearMax = listing.Int(y)
		default:
			f.YearMin, f.YearMax = listing.Int(y), listing.Int(y)
		}
		rest = strings.Replace(rest, m[0], " ", 1)
	}

	f.Transmission, rest = takeVocabulary(rest, listing.TransmissionVocabulary)
	f.FuelType, rest = takeVocabulary(rest, listing.FuelVocabulary)

	return ParsedQuery{Filters: f, Keywords: strings.Join(strings.Fields(rest), " ")}, nil
}

func parseAmount(raw string, thousands bool) (int64, bool) {
	digits := strings.NewReplacer(" ", "", ".", "").Replace(raw)
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	if thousands {
		v *= 1000
	}
	return v, true
}

// takeVocabulary finds the first whole-word synonym in text and returns its
// canonical value with the synonym removed. Entries are tried in order and,
// within an entry, longer synonyms first.
func takeVocabulary(text string, vocab []listing.VocabularyEntry) (string, string) {
	padded := " " + text + " "
	for _, entry := range vocab {
		synonyms := append([]string(nil), entry.Synonyms...)
		sort.Slice(synonyms, func(i, j int) bool { return len(synonyms[i]) > len(synonyms[j]) })
		for _, syn := range synonyms {
			if word := " " + syn + " "; strings.Contains(padded, word) {
				return entry.Value, strings.TrimSpace(strings.Replace(padded, word, " ", 1))
			}
		}
	}
	return "", text
}
