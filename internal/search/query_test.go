// internal/search/query_test.go
package search

import (
	"context"
	"testing"

	"github.com/valpere/AutoScrapexter/internal/listing"
)

func TestRuleParser_Parse(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		keywords     string
		priceMin     int64
		priceMax     int64
		mileageMax   int64
		yearMin      int
		yearMax      int
		fuel         string
		transmission string
	}{
		{
			name:         "french sentence",
			text:         "Peugeot 308 diesel moins de 15 000 € après 2018 boîte auto 100000 km",
			keywords:     "peugeot 308",
			priceMax:     15000,
			mileageMax:   100000,
			yearMin:      2018,
			fuel:         listing.FuelDiesel,
			transmission: listing.TransmissionAutomatic,
		},
		{name: "thousands suffix", text: "clio under 20k", keywords: "clio", priceMax: 20000},
		{
			name:         "lower price bound",
			text:         "golf over 5000 euros avant 2015 manuelle",
			keywords:     "golf",
			priceMin:     5000,
			yearMax:      2015,
			transmission: listing.TransmissionManual,
		},
		{name: "bare year", text: "bmw x5 2019", keywords: "bmw x5", yearMin: 2019, yearMax: 2019},
		{name: "mileage in thousands", text: "Renault Clio 80k km essence", keywords: "renault clio", mileageMax: 80000, fuel: listing.FuelPetrol},
		{name: "model number is not a filter", text: "peugeot 308", keywords: "peugeot 308"},
	}

	p := NewRuleParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got.Keywords != tt.keywords {
				t.Errorf("keywords = %q, want %q", got.Keywords, tt.keywords)
			}
			f := got.Filters
			checkInt64(t, "price_min", f.PriceMin, tt.priceMin)
			checkInt64(t, "price_max", f.PriceMax, tt.priceMax)
			checkInt64(t, "mileage_max", f.MileageMax, tt.mileageMax)
			checkInt(t, "year_min", f.YearMin, tt.yearMin)
			checkInt(t, "year_max", f.YearMax, tt.yearMax)
			if f.FuelType != tt.fuel {
				t.Errorf("fuel = %q, want %q", f.FuelType, tt.fuel)
			}
			if f.Transmission != tt.transmission {
				t.Errorf("transmission = %q, want %q", f.Transmission, tt.transmission)
			}
		})
	}
}

// checkInt64 treats want == 0 as "unset".
func checkInt64(t *testing.T, field string, got *int64, want int64) {
	t.Helper()
	switch {
	case want == 0 && got != nil:
		t.Errorf("%s = %d, want unset", field, *got)
	case want != 0 && (got == nil || *got != want):
		t.Errorf("%s = %v, want %d", field, got, want)
	}
}

func checkInt(t *testing.T, field string, got *int, want int) {
	t.Helper()
	switch {
	case want == 0 && got != nil:
		t.Errorf("%s = %d, want unset", field, *got)
	case want != 0 && (got == nil || *got != want):
		t.Errorf("%s = %v, want %d", field, got, want)
	}
}
