// internal/listing/listing.go
package listing

import (
	"fmt"
	"strings"
	"time"
)

// SourceDB marks listings served from the catalog.
const SourceDB = "db"

// MinYear is the oldest model year accepted on a listing.
const MinYear = 1950

// Listing is the canonical vehicle ad.
type Listing struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Make         string    `json:"make,omitempty" db:"make"`
	Model        string    `json:"model,omitempty" db:"model"`
	Price        *int64    `json:"price" db:"price"`
	Year         *int      `json:"year" db:"year"`
	Mileage      *int64    `json:"mileage,omitempty" db:"mileage"`
	FuelType     string    `json:"fuel_type,omitempty" db:"fuel_type"`
	Transmission string    `json:"transmission,omitempty" db:"transmission"`
	Description  string    `json:"description,omitempty" db:"description"`
	Images       []string  `json:"images,omitempty" db:"-"`
	Location     string    `json:"location,omitempty" db:"location"`
	Source       string    `json:"source" db:"source"`
	SourceURL    string    `json:"source_url" db:"source_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty" db:"updated_at"`

	// Extended attributes used by the filter post-processor.
	Color      string   `json:"color,omitempty" db:"color"`
	Doors      *int     `json:"doors,omitempty" db:"doors"`
	Seats      *int     `json:"seats,omitempty" db:"seats"`
	PowerHP    *int     `json:"power_hp,omitempty" db:"power_hp"`
	BodyType   string   `json:"body_type,omitempty" db:"body_type"`
	SellerType string   `json:"seller_type,omitempty" db:"seller_type"`
	Features   []string `json:"features,omitempty" db:"-"`
}

// MaxYear returns the newest model year accepted at time now.
func MaxYear(now time.Time) int {
	return now.Year() + 1
}

// Validate checks the listing invariants.
func (l *Listing) Validate(now time.Time) error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("listing has no title")
	}
	if l.Price != nil && *l.Price < 0 {
		return fmt.Errorf("listing price %d is negative", *l.Price)
	}
	if l.Year != nil && (*l.Year < MinYear || *l.Year > MaxYear(now)) {
		return fmt.Errorf("listing year %d outside [%d, %d]", *l.Year, MinYear, MaxYear(now))
	}
	return nil
}

// Fingerprint returns the identity key of the listing.
func (l *Listing) Fingerprint() Fingerprint {
	return NewFingerprint(l.Title, l.Price)
}

// HasFeature reports whether any feature contains keyword. Comparison is
// case-insensitive and literal.
func (l *Listing) HasFeature(keyword string) bool {
	keyword = strings.ToLower(keyword)
	for _, f := range l.Features {
		if strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}

// Fingerprint identifies a physical ad across sources.
type Fingerprint struct {
	Title    string
	Price    int64
	HasPrice bool
}

// NewFingerprint builds a fingerprint from title and price.
func NewFingerprint(title string, price *int64) Fingerprint {
	fp := Fingerprint{Title: strings.ToLower(strings.TrimSpace(title))}
	if price != nil {
		fp.Price = *price
		fp.HasPrice = true
	}
	return fp
}

func (f Fingerprint) String() string {
	if !f.HasPrice {
		return f.Title + "|-"
	}
	return fmt.Sprintf("%s|%d", f.Title, f.Price)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
