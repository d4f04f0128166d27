// Package sink writes extracted records as rows of a CSV file or a
// spreadsheet.
package sink

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/a3tai/label-extractor/internal/extract"
)

// Sink receives one row per record. The header is written once, from the
// schema given at open time.
type Sink interface {
	Write(rec extract.Record) error
	Close() error
}

var (
	// ErrUnsupportedFormat is returned by Open for unknown extensions.
	ErrUnsupportedFormat = errors.New("unsupported output format")
	// ErrSchemaMismatch is returned when a record's columns differ from the
	// sink header.
	ErrSchemaMismatch = errors.New("record schema does not match output header")
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("sink is closed")
)

// Open creates the output file at path, choosing the format by extension.
func Open(path string, schema extract.Schema) (Sink, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("output schema is empty")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return NewCSV(path, schema)
	case ".xlsx":
		return NewXLSX(path, schema)
	default:
		return nil, fmt.Errorf("%w: %q (expected .csv or .xlsx)", ErrUnsupportedFormat, ext)
	}
}

func rowFor(schema extract.Schema, rec extract.Record) ([]string, error) {
	if !slices.Equal(schema, rec.Schema()) {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMismatch, rec.Source())
	}
	return rec.Row(), nil
}
