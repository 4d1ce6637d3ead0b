// internal/scraper/types.go
package scraper

import (
	"github.com/valpere/AutoScrapexter/internal/pipeline"
)

// Strategy is one way of locating a field value inside a listing card.
type Strategy struct {
	// Selector is a CSS selector relative to the item. Empty means the item
	// node itself.
	Selector string `yaml:"selector,omitempty" json:"selector,omitempty"`
	// Attr names the attribute to read. Empty means the node text.
	Attr string `yaml:"attr,omitempty" json:"attr,omitempty"`
	// Pattern optionally narrows the value to the first submatch (or whole
	// match when the pattern has no group).
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// FieldRule describes how to extract one raw field through an ordered
// fallback chain of strategies. The first non-empty, length-valid value wins.
type FieldRule struct {
	Name       string                 `yaml:"name" json:"name"`
	Strategies []Strategy             `yaml:"strategies" json:"strategies"`
	MinLength  int                    `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength  int                    `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Required   bool                   `yaml:"required,omitempty" json:"required,omitempty"`
	Multiple   bool                   `yaml:"multiple,omitempty" json:"multiple,omitempty"`
	Transform  pipeline.TransformList `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// ExtractionReport summarizes extraction of one item.
type ExtractionReport struct {
	// Missing lists required fields whose chain was exhausted.
	Missing []string
	// Matched counts fields that produced a value.
	Matched int
}

// Complete reports whether every required field was found.
func (r ExtractionReport) Complete() bool {
	return len(r.Missing) == 0
}
