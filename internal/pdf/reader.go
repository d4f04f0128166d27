// Package pdf reads, inspects and sanitizes label PDFs.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxFileSize bounds the PDFs the reader and inspector will open.
const DefaultMaxFileSize int64 = 100 * 1024 * 1024

// Page is the plain text of one PDF page.
type Page struct {
	Number int
	Text   string
}

// Lines returns the non-blank lines of the page, trimmed.
func (p Page) Lines() []string {
	var out []string
	for _, l := range strings.Split(p.Text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Reader extracts the embedded text layer of a PDF page by page.
type Reader struct {
	maxFileSize int64
}

// NewReader creates a reader that refuses documents above maxFileSize bytes.
func NewReader(maxFileSize int64) *Reader {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Reader{maxFileSize: maxFileSize}
}

// Pages parses data and returns the text of every page in order. Pages whose
// text cannot be decoded are returned empty.
func (r *Reader) Pages(data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("document is empty")
	}
	if int64(len(data)) > r.maxFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", len(data), r.maxFileSize)
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := make([]Page, 0, pdfReader.NumPage())
	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		pages = append(pages, Page{Number: pageNum, Text: pageText(pdfReader, pageNum)})
	}
	return pages, nil
}

// ReadFile reads the PDF at path and returns its pages.
func (r *Reader) ReadFile(path string) ([]Page, error) {
	if err := checkFile(path, r.maxFileSize); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}
	return r.Pages(data)
}

func pageText(pdfReader *pdf.Reader, pageNum int) (text string) {
	defer func() {
		// Malformed content streams can panic inside the parser
		if recover() != nil {
			text = ""
		}
	}()

	page := pdfReader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

// checkFile performs the checks that need no parsing.
func checkFile(filePath string, maxFileSize int64) error {
	if filePath == "" {
		return fmt.Errorf("path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if fileInfo.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filePath)
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", filePath)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("file is empty: %s", filePath)
	}
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)",
			fileInfo.Size(), maxFileSize)
	}
	return nil
}
