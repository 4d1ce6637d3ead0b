// internal/scraper/extractor.go
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/AutoScrapexter/internal/listing"
	"github.com/valpere/AutoScrapexter/internal/pipeline"
)

// alwaysRequired are dropped-if-missing regardless of configuration.
var alwaysRequired = map[string]bool{
	listing.FieldTitle: true,
	listing.FieldURL:   true,
}

// urlFields are resolved against the page URL.
var urlFields = map[string]bool{
	listing.FieldURL:    true,
	listing.FieldImages: true,
}

type compiledStrategy struct {
	Strategy
	re *regexp.Regexp
}

type compiledRule struct {
	FieldRule
	strategies []compiledStrategy
}

// Extractor applies field rules to listing cards.
type Extractor struct {
	rules []compiledRule
}

// NewExtractor validates and compiles rules.
func NewExtractor(rules []FieldRule) (*Extractor, error) {
	var sample listing.RawRecord
	compiled := make([]compiledRule, 0, len(rules))
	seen := make(map[string]bool)

	for _, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("field rule without name")
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("duplicate field rule %q", rule.Name)
		}
		seen[rule.Name] = true

		isList := rule.Name == listing.FieldImages || rule.Name == listing.FieldFeatures
		if !isList && sample.Field(rule.Name) == nil {
			return nil, fmt.Errorf("unknown field %q", rule.Name)
		}
		if isList {
			rule.Multiple = true
		}
		if len(rule.Strategies) == 0 {
			return nil, fmt.Errorf("field %q has no strategies", rule.Name)
		}
		if rule.MaxLength > 0 && rule.MinLength > rule.MaxLength {
			return nil, fmt.Errorf("field %q: min_length exceeds max_length", rule.Name)
		}
		if err := pipeline.ValidateTransformRules(rule.Transform); err != nil {
			return nil, fmt.Errorf("field %q: %w", rule.Name, err)
		}
		if alwaysRequired[rule.Name] {
			rule.Required = true
		}

		cr := compiledRule{FieldRule: rule}
		for i, s := range rule.Strategies {
			cs := compiledStrategy{Strategy: s}
			if s.Pattern != "" {
				re, err := regexp.Compile(s.Pattern)
				if err != nil {
					return nil, fmt.Errorf("field %q strategy %d: invalid pattern: %w", rule.Name, i, err)
				}
				cs.re = re
			}
			cr.strategies = append(cr.strategies, cs)
		}
		compiled = append(compiled, cr)
	}

	for name := range alwaysRequired {
		if !seen[name] {
			return nil, fmt.Errorf("required field %q has no rule", name)
		}
	}

	return &Extractor{rules: compiled}, nil
}

// Extract reads one listing card. Fields without a rule stay Unextracted;
// fields whose whole chain came back empty are marked Empty.
func (e *Extractor) Extract(ctx context.Context, item *goquery.Selection, base *url.URL) (listing.RawRecord, ExtractionReport) {
	var rec listing.RawRecord
	var report ExtractionReport

	for _, rule := range e.rules {
		if rule.Multiple {
			values := e.extractList(ctx, rule, item, base)
			switch rule.Name {
			case listing.FieldImages:
				rec.Images = values
			case listing.FieldFeatures:
				rec.Features = values
			default:
				if f := rec.Field(rule.Name); f != nil {
					f.Set(strings.Join(values, ", "))
				}
			}
			if len(values) > 0 {
				report.Matched++
			} else if rule.Required {
				report.Missing = append(report.Missing, rule.Name)
			}
			continue
		}

		value := e.extractScalar(ctx, rule, item, base)
		rec.Field(rule.Name).Set(value)
		if value != "" {
			report.Matched++
		} else if rule.Required {
			report.Missing = append(report.Missing, rule.Name)
		}
	}

	return rec, report
}

func (e *Extractor) extractScalar(ctx context.Context, rule compiledRule, item *goquery.Selection, base *url.URL) string {
	for _, s := range rule.strategies {
		sel := selectNodes(item, s.Selector)
		if sel.Length() == 0 {
			continue
		}
		value, ok := e.finish(ctx, rule, s, readNode(sel.First(), s.Attr), base)
		if ok {
			return value
		}
	}
	return ""
}

func (e *Extractor) extractList(ctx context.Context, rule compiledRule, item *goquery.Selection, base *url.URL) []string {
	for _, s := range rule.strategies {
		sel := selectNodes(item, s.Selector)
		if sel.Length() == 0 {
			continue
		}
		var values []string
		sel.Each(func(_ int, node *goquery.Selection) {
			if value, ok := e.finish(ctx, rule, s, readNode(node, s.Attr), base); ok {
				values = append(values, value)
			}
		})
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

// finish applies pattern, transforms, URL resolution and length checks.
func (e *Extractor) finish(ctx context.Context, rule compiledRule, s compiledStrategy, raw string, base *url.URL) (string, bool) {
	value := strings.TrimSpace(raw)
	if s.re != nil {
		m := s.re.FindStringSubmatch(value)
		switch {
		case m == nil:
			return "", false
		case len(m) > 1:
			value = m[1]
		default:
			value = m[0]
		}
	}

	if len(rule.Transform) > 0 {
		transformed, err := rule.Transform.Apply(ctx, value)
		if err != nil {
			return "", false
		}
		value = transformed
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	if urlFields[rule.Name] {
		resolved, ok := resolveURL(base, value)
		if !ok {
			return "", false
		}
		value = resolved
	}

	n := utf8.RuneCountInString(value)
	min := rule.MinLength
	if min < 1 {
		min = 1
	}
	if n < min || (rule.MaxLength > 0 && n > rule.MaxLength) {
		return "", false
	}
	return value, true
}

func selectNodes(item *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return item
	}
	return item.Find(selector)
}

func readNode(node *goquery.Selection, attr string) string {
	if attr == "" {
		return node.Text()
	}
	v, _ := node.Attr(attr)
	return v
}

func resolveURL(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
