// internal/search/policy.go
package search

import (
	"strings"

	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
)

// Mode controls when a search falls through to live fetching.
type Mode string

const (
	ModeNever   Mode = "never"
	ModeAlways  Mode = "always"
	ModeDBFirst Mode = "db_first"
	ModeAuto    Mode = "auto"
)

// DefaultThreshold is the auto-mode catalog row count below which live
// fetching triggers.
const DefaultThreshold = 5

// Modes lists the accepted modes.
func Modes() []Mode {
	return []Mode{ModeNever, ModeAlways, ModeDBFirst, ModeAuto}
}

// ParseMode parses s. Empty means auto; anything unknown is a
// *errors.PolicyViolation.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeNever, ModeAlways, ModeDBFirst, ModeAuto:
		return m, nil
	}
	return "", &apperrors.PolicyViolation{Field: "scraping_mode", Value: s}
}

// Policy decides whether to fetch live given the catalog row count.
type Policy struct {
	Mode      Mode
	Threshold int
}

// ShouldFetchLive applies the mode. Disabled scraping always wins.
func (p Policy) ShouldFetchLive(dbRows int, scrapingEnabled bool) bool {
	if !scrapingEnabled {
		return false
	}
	switch p.Mode {
	case ModeAlways:
		return true
	case ModeDBFirst:
		return dbRows == 0
	case ModeAuto:
		threshold := p.Threshold
		if threshold <= 0 {
			threshold = DefaultThreshold
		}
		return dbRows < threshold
	}
	return false
}
