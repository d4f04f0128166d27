package extract

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Engine evaluates a validated rule set against grouped page text.
type Engine struct {
	section SectionMarkers
	rules   []compiledRule
	logger  *zap.Logger
}

// NewEngine compiles rs. A nil logger discards rule failures.
func NewEngine(rs RuleSet, logger *zap.Logger) (*Engine, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{section: rs.Section, logger: logger}
	for _, r := range rs.Rules {
		c, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, c)
	}
	return e, nil
}

// Fields returns the rule field names in table order.
func (e *Engine) Fields() []string {
	out := make([]string, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Field
	}
	return out
}

// Section returns the markers used for section-scoped rules.
func (e *Engine) Section() SectionMarkers {
	return e.section
}

// Evaluate runs every rule over pt and returns one value per field. Fields
// with no match carry their rule default.
func (e *Engine) Evaluate(pt PageText) map[string]string {
	scopes := map[Scope][]Segment{
		ScopeDocument:  pt.Lines(),
		ScopeFirstPage: firstPage(pt),
		ScopeSection:   LocateSection(pt, e.section.Start, e.section.End).Segments,
	}

	values := make(map[string]string, len(e.rules))
	for _, r := range e.rules {
		v, err := evaluateRule(r, scopes[r.Scope])
		if err != nil {
			e.logger.Warn("rule evaluation failed",
				zap.String("field", r.Field),
				zap.Error(err))
			v = r.Default
		}
		values[r.Field] = v
	}
	return values
}

// evaluateRule scans segments in order.
func evaluateRule(r compiledRule, segments []Segment) (string, error) {
	return guard(r.Field, func() string {
		var found []string
		for _, seg := range segments {
			vals := r.values(seg.Text)
			if len(vals) == 0 {
				continue
			}
			if !r.Multi {
				return vals[0]
			}
			found = append(found, vals...)
		}
		if len(found) == 0 {
			return r.Default
		}
		return JoinMulti(found)
	})
}

// guard turns a panic in fn into an error so the remaining rules still run.
func guard(field string, fn func() string) (value string, err error) {
	defer func() {
		if p := recover(); p != nil {
			value = ""
			err = fmt.Errorf("rule %q panicked: %v", field, p)
		}
	}()
	return fn(), nil
}

func firstPage(pt PageText) []Segment {
	pages := pt.Pages()
	if len(pages) == 0 {
		return nil
	}
	var out []Segment
	for _, text := range pt.Page(pages[0]) {
		out = append(out, Segment{Page: pages[0], Text: text})
	}
	return out
}

// JoinMulti joins the values of a multi-valued field.
func JoinMulti(values []string) string {
	return strings.Join(values, MultiDelimiter)
}

// SplitMulti reverses JoinMulti.
func SplitMulti(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, MultiDelimiter)
}
