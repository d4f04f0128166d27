package sink

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/label-extractor/internal/extract"
)

const sheetName = "Sheet1"

// XLSX collects records in a workbook and saves it on Close.
type XLSX struct {
	path   string
	file   *excelize.File
	schema extract.Schema
	next   int
	closed bool
}

// NewXLSX starts a workbook with the header in row 1. Nothing is written to
// path until Close.
func NewXLSX(path string, schema extract.Schema) (*XLSX, error) {
	f := excelize.NewFile()
	s := &XLSX{path: path, file: f, schema: schema, next: 1}
	if err := s.writeRow(schema); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}
	return s, nil
}

func (s *XLSX) Write(rec extract.Record) error {
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

func (s *XLSX) writeRow(row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err != nil {
		return err
	}
	if err := s.file.SetSheetRow(sheetName, cell, &row); err != nil {
		return err
	}
	s.next++
	return nil
}

// Close saves the workbook to path.
func (s *XLSX) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.SaveAs(s.path); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("save output: %w", err)
	}
	return s.file.Close()
}
