package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/pdf"
	"github.com/a3tai/label-extractor/internal/pdf/pdftest"
)

func TestRunValidPDF(t *testing.T) {
	path := pdftest.Write(t, "label.pdf", []string{"Compound: Aspirin"}, []string{"Section 14"})

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{path}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "is a valid PDF")
	assert.Contains(t, stdout.String(), "Pages: 2")
}

func TestRunJSON(t *testing.T) {
	path := pdftest.Write(t, "label.pdf", []string{"page one"})

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"--format", "json", path}, &stdout, &stderr))

	var report pdf.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.PageCount)
}

func TestRunSanitize(t *testing.T) {
	in := pdftest.Write(t, "in.pdf", []string{"Compound: Aspirin"})
	out := filepath.Join(t.TempDir(), "out.pdf")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{in, out}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Sanitized copy written to "+out)
	assert.FileExists(t, out)
}

func TestRunInvalidPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o600))

	var stdout, stderr bytes.Buffer
	err := run([]string{path}, &stdout, &stderr)
	assert.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, stdout.String(), "failed the check")
}

func TestRunArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer

	err := run(nil, &stdout, &stderr)
	assert.EqualError(t, err, "PDF file path required")
	assert.Contains(t, stderr.String(), "USAGE:")

	err = run([]string{"--format", "xml", "a.pdf"}, &stdout, &stderr)
	assert.EqualError(t, err, "unsupported output format: xml")
}
