package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/a3tai/label-extractor/internal/extract"
)

// CSV writes records to a comma-separated file, flushing after every row so
// that completed rows survive an interrupted batch.
type CSV struct {
	file   *os.File
	w      *csv.Writer
	schema extract.Schema
	closed bool
}

// NewCSV creates path and writes the header row.
func NewCSV(path string, schema extract.Schema) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	s := &CSV{file: f, w: csv.NewWriter(f), schema: schema}
	if err := s.writeRow(schema); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

func (s *CSV) Write(rec extract.Record) error {
	if s.closed {
		return ErrClosed
	}
	row, err := rowFor(s.schema, rec)
	if err != nil {
		return err
	}
	if err := s.writeRow(row); err != nil {
		return fmt.Errorf("write row %s: %w", rec.Source(), err)
	}
	return nil
}

func (s *CSV) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSV) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return s.file.Close()
}
