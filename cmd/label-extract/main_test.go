package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/pdf/pdftest"
	"github.com/a3tai/label-extractor/internal/pipeline"
)

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	response := filepath.Join(dir, "aspirin.json")
	require.NoError(t, os.WriteFile(response, []byte(`{"Blocks":[
		{"BlockType":"LINE","Text":"BLACK BOX WARNING: may cause X","Page":1},
		{"BlockType":"LINE","Text":"Compound Name: Aspirin","Page":1}
	]}`), 0o600))
	output := filepath.Join(dir, "out.csv")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{"--output", output, response}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Processed 1 of 1 documents (0 failed)")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"aspirin.json", "Y", "BLACK BOX WARNING: may cause X", "Aspirin"}, rows[1][:4])
}

func TestRunLocalBatch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "labels", "pdf")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ibuprofen.pdf"),
		pdftest.Build([]string{"Compound: Ibuprofen"}), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o600))
	output := filepath.Join(t.TempDir(), "out.csv")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"--store", "local",
		"--local-root", root,
		"--analyzer", "local",
		"--bucket", "labels",
		"--output", output,
	}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Processed 1 of 2 documents (1 failed)")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "pdf/ibuprofen.pdf", rows[1][0])
	assert.Equal(t, "Ibuprofen", rows[1][3])
}

func TestRunLocalBatchWithoutDocuments(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "labels", "pdf"), 0o755))
	output := filepath.Join(t.TempDir(), "out.xlsx")

	var stdout bytes.Buffer
	err := run(context.Background(), []string{
		"--store", "local",
		"--local-root", root,
		"--analyzer", "local",
		"--bucket", "labels",
		"--output", output,
	}, &stdout)
	assert.ErrorIs(t, err, pipeline.ErrNoDocuments)
	assert.Empty(t, stdout.String())
	assert.NoFileExists(t, output)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      int
		wantOut   string
		wantError string
	}{
		{"success", nil, 0, "", ""},
		{"version", config.ErrVersionRequested, 0, "Version: dev", ""},
		{"no documents", pipeline.ErrNoDocuments, 1, "", "nothing was written"},
		{"failure", errors.New("boom"), 1, "", "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &stdout, &stderr))
			if tt.wantOut != "" {
				assert.Contains(t, stdout.String(), tt.wantOut)
			}
			if tt.wantError != "" {
				assert.True(t, strings.Contains(stderr.String(), tt.wantError), stderr.String())
			}
		})
	}
}
