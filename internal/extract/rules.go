package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MultiDelimiter joins the values of multi-valued fields.
const MultiDelimiter = "; "

// Scope selects the text a rule scans.
type Scope string

const (
	ScopeDocument  Scope = "document"
	ScopeFirstPage Scope = "first_page"
	ScopeSection   Scope = "section"
)

// ExtractKind selects how a match becomes a field value.
type ExtractKind string

const (
	// ExtractFlag emits Value when the rule matches.
	ExtractFlag ExtractKind = "flag"
	// ExtractCapture emits the first non-empty capture group, or the whole
	// match when the pattern has no groups. Groups that are all blank are no
	// match.
	ExtractCapture ExtractKind = "capture"
	// ExtractLine emits the whole matching line.
	ExtractLine ExtractKind = "line"
	// ExtractFixed emits Value, like flag, for rules that name a constant
	// such as a known compound.
	ExtractFixed ExtractKind = "fixed"
)

// Rule declares how one output field is extracted.
type Rule struct {
	Field       string      `yaml:"field" json:"field"`
	Scope       Scope       `yaml:"scope" json:"scope"`
	Contains    []string    `yaml:"contains,omitempty" json:"contains,omitempty"`
	Pattern     string      `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Extract     ExtractKind `yaml:"extract" json:"extract"`
	Value       string      `yaml:"value,omitempty" json:"value,omitempty"`
	Multi       bool        `yaml:"multi,omitempty" json:"multi,omitempty"`
	Default     string      `yaml:"default" json:"default"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
}

// SectionMarkers bound the section window.
type SectionMarkers struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// RuleSet is an ordered rule table plus the section it refers to. Rule
// order is output column order.
type RuleSet struct {
	Section SectionMarkers `yaml:"section" json:"section"`
	Rules   []Rule         `yaml:"rules" json:"rules"`
}

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("invalid extraction rule")

// Validate checks a single rule in isolation.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Field) == "" {
		return fmt.Errorf("%w: field name is required", ErrInvalidRule)
	}
	switch r.Scope {
	case ScopeDocument, ScopeFirstPage, ScopeSection:
	default:
		return fmt.Errorf("%w: %s: unknown scope %q", ErrInvalidRule, r.Field, r.Scope)
	}
	if r.Pattern == "" && len(r.Contains) == 0 {
		return fmt.Errorf("%w: %s: needs a pattern or contains terms", ErrInvalidRule, r.Field)
	}
	switch r.Extract {
	case ExtractFlag, ExtractFixed:
		if r.Value == "" {
			return fmt.Errorf("%w: %s: %s extraction needs a value", ErrInvalidRule, r.Field, r.Extract)
		}
	case ExtractCapture:
		if r.Pattern == "" {
			return fmt.Errorf("%w: %s: capture extraction needs a pattern", ErrInvalidRule, r.Field)
		}
	case ExtractLine:
	default:
		return fmt.Errorf("%w: %s: unknown extract kind %q", ErrInvalidRule, r.Field, r.Extract)
	}
	if r.Pattern != "" {
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Field, err)
		}
	}
	return nil
}

// Validate checks every rule and that field names are unique.
func (rs RuleSet) Validate() error {
	if len(rs.Rules) == 0 {
		return fmt.Errorf("%w: rule set is empty", ErrInvalidRule)
	}
	seen := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if r.Field == IDColumn {
			return fmt.Errorf("%w: field name %q is reserved", ErrInvalidRule, IDColumn)
		}
		if seen[r.Field] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidRule, r.Field)
		}
		seen[r.Field] = true
	}
	return nil
}

type compiledRule struct {
	Rule
	re       *regexp.Regexp
	contains []string
}

func compileRule(r Rule) (compiledRule, error) {
	if err := r.Validate(); err != nil {
		return compiledRule{}, err
	}
	c := compiledRule{Rule: r}
	if r.Pattern != "" {
		c.re = regexp.MustCompile(`(?i)` + r.Pattern)
	}
	for _, term := range r.Contains {
		c.contains = append(c.contains, strings.ToLower(term))
	}
	return c, nil
}

// values returns what the rule extracts from one segment: at most one value
// for single-valued rules, every match for multi-valued ones.
func (c compiledRule) values(text string) []string {
	if len(c.contains) > 0 {
		lower := strings.ToLower(text)
		for _, term := range c.contains {
			if !strings.Contains(lower, term) {
				return nil
			}
		}
	}

	if c.re == nil {
		if v := c.emit(text, nil); v != "" {
			return []string{v}
		}
		return nil
	}

	limit := 1
	if c.Multi && c.Extract != ExtractLine {
		limit = -1
	}
	var out []string
	for _, m := range c.re.FindAllStringSubmatch(text, limit) {
		if v := c.emit(text, m); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c compiledRule) emit(text string, match []string) string {
	switch c.Extract {
	case ExtractFlag, ExtractFixed:
		return c.Value
	case ExtractLine:
		return strings.TrimSpace(text)
	case ExtractCapture:
		if match == nil {
			return ""
		}
		for _, g := range match[1:] {
			if v := strings.TrimSpace(g); v != "" {
				return v
			}
		}
		if len(match) == 1 {
			return strings.TrimSpace(match[0])
		}
		return ""
	}
	return ""
}
