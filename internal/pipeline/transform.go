// internal/pipeline/transform.go
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// TransformRule defines a single transformation rule applied to an extracted
// string before normalization.
type TransformRule struct {
	Type        string                 `yaml:"type" json:"type"`
	Pattern     string                 `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string                 `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Params      map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// TransformList represents a list of transformation rules that can be applied sequentially
type TransformList []TransformRule

// Apply applies all transformation rules in sequence to the input string
func (tl TransformList) Apply(ctx context.Context, input string) (string, error) {
	result := input
	for i, rule := range tl {
		var err error
		result, err = rule.Apply(ctx, result)
		if err != nil {
			return "", fmt.Errorf("transform rule %d failed: %w", i, err)
		}
	}
	return result, nil
}

// Apply applies a single transformation rule to the input string
func (tr TransformRule) Apply(ctx context.Context, input string) (string, error) {
	switch tr.Type {
	case "trim":
		return strings.TrimSpace(input), nil

	case "normalize_spaces":
		return whitespaceRe.ReplaceAllString(strings.TrimSpace(input), " "), nil

	case "lowercase":
		return strings.ToLower(input), nil

	case "uppercase":
		return strings.ToUpper(input), nil

	case "fold_accents":
		return FoldAccents(input), nil

	case "remove_html":
		return htmlTagRe.ReplaceAllString(input, ""), nil

	case "extract_number":
		// Empty rather than "0": a missing number must stay missing.
		return numberRe.FindString(input), nil

	case "regex":
		if tr.Pattern == "" {
			return "", fmt.Errorf("regex pattern is required")
		}
		re, err := regexp.Compile(tr.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.ReplaceAllString(input, tr.Replacement), nil

	case "prefix":
		if tr.Params == nil || tr.Params["value"] == nil {
			return "", fmt.Errorf("prefix requires value parameter")
		}
		return fmt.Sprintf("%v", tr.Params["value"]) + input, nil

	case "suffix":
		if tr.Params == nil || tr.Params["value"] == nil {
			return "", fmt.Errorf("suffix requires value parameter")
		}
		return input + fmt.Sprintf("%v", tr.Params["value"]), nil

	case "replace":
		if tr.Params == nil || tr.Params["old"] == nil || tr.Params["new"] == nil {
			return "", fmt.Errorf("replace requires old and new parameters")
		}
		old := fmt.Sprintf("%v", tr.Params["old"])
		replacement := fmt.Sprintf("%v", tr.Params["new"])
		return strings.ReplaceAll(input, old, replacement), nil

	default:
		return "", fmt.Errorf("unknown transform type: %s", tr.Type)
	}
}

// ValidateTransformRules validates transformation rule configuration
func ValidateTransformRules(rules TransformList) error {
	for i, rule := range rules {
		switch rule.Type {
		case "trim", "normalize_spaces", "lowercase", "uppercase", "fold_accents", "remove_html", "extract_number":
		case "regex":
			if rule.Pattern == "" {
				return fmt.Errorf("rule %d: regex pattern is required", i)
			}
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				return fmt.Errorf("rule %d: invalid regex pattern: %w", i, err)
			}
		case "prefix", "suffix":
			if rule.Params == nil || rule.Params["value"] == nil {
				return fmt.Errorf("rule %d: %s requires value parameter", i, rule.Type)
			}
		case "replace":
			if rule.Params == nil || rule.Params["old"] == nil || rule.Params["new"] == nil {
				return fmt.Errorf("rule %d: replace requires old and new parameters", i)
			}
		default:
			return fmt.Errorf("rule %d: unknown transform type: %s", i, rule.Type)
		}
	}
	return nil
}
