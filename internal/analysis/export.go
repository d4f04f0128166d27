package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteWordsCSV writes the text of every WORD block, one per row, under a
// single "Words" header.
func WriteWordsCSV(w io.Writer, resp *Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Words"}); err != nil {
		return fmt.Errorf("write words header: %w", err)
	}
	for _, b := range resp.BlocksOfType(BlockTypeWord) {
		if err := cw.Write([]string{b.Text}); err != nil {
			return fmt.Errorf("write word row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLinesCSV writes every LINE block as a Text,Confidence row.
func WriteLinesCSV(w io.Writer, resp *Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Text", "Confidence"}); err != nil {
		return fmt.Errorf("write lines header: %w", err)
	}
	for _, b := range resp.BlocksOfType(BlockTypeLine) {
		conf := strconv.FormatFloat(b.Confidence, 'f', -1, 64)
		if err := cw.Write([]string{b.Text, conf}); err != nil {
			return fmt.Errorf("write line row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
