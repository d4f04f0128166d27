package extract

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/analysis"
)

// IDColumn is the name of the source identifier column.
const IDColumn = "PDF Key"

// Schema is the ordered column list of every record: the id column first,
// then the rule fields in table order.
type Schema []string

// Fields returns the columns after the id column.
func (s Schema) Fields() []string {
	if len(s) == 0 {
		return nil
	}
	return s[1:]
}

// Record is the complete set of field values for one document.
type Record struct {
	schema Schema
	source string
	values map[string]string
}

// Source is the document identifier.
func (r Record) Source() string {
	return r.source
}

// Get returns the value of field and whether the field is in the schema.
func (r Record) Get(field string) (string, bool) {
	if field == IDColumn {
		return r.source, true
	}
	v, ok := r.values[field]
	return v, ok
}

// Schema returns the record's column order.
func (r Record) Schema() Schema {
	return r.schema
}

// Row returns the cells in schema order.
func (r Record) Row() []string {
	row := make([]string, len(r.schema))
	for i, col := range r.schema {
		row[i], _ = r.Get(col)
	}
	return row
}

// Map returns the record as a column to value map.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.schema))
	for _, col := range r.schema {
		out[col], _ = r.Get(col)
	}
	return out
}

// MarshalJSON encodes the record as an object keyed by column name.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Extractor turns a block list into a record.
type Extractor struct {
	engine *Engine
	schema Schema
}

// NewExtractor builds an extractor for rs.
func NewExtractor(rs RuleSet, logger *zap.Logger) (*Extractor, error) {
	engine, err := NewEngine(rs, logger)
	if err != nil {
		return nil, err
	}
	schema := append(Schema{IDColumn}, engine.Fields()...)
	return &Extractor{engine: engine, schema: schema}, nil
}

// NewDefaultExtractor builds an extractor for DefaultRuleSet.
func NewDefaultExtractor(logger *zap.Logger) *Extractor {
	x, err := NewExtractor(DefaultRuleSet(), logger)
	if err != nil {
		panic("extract: default rule set is invalid: " + err.Error())
	}
	return x
}

// Schema returns the column order shared by every record of this extractor.
func (x *Extractor) Schema() Schema {
	out := make(Schema, len(x.schema))
	copy(out, x.schema)
	return out
}

// Section returns the section markers of the underlying rule set.
func (x *Extractor) Section() SectionMarkers {
	return x.engine.Section()
}

// Extract groups the LINE blocks by page, evaluates every rule and assembles
// a complete record. It never fails: unmatched fields hold their defaults.
func (x *Extractor) Extract(source string, blocks []analysis.Block) Record {
	values := x.engine.Evaluate(GroupPages(blocks))
	return Record{schema: x.schema, source: source, values: values}
}
