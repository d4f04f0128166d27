package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/extract"
	"github.com/a3tai/label-extractor/internal/sink"
	"github.com/a3tai/label-extractor/internal/storage"
)

const bucket = "labels"

// fakeAnalyzer returns canned blocks per key.
type fakeAnalyzer struct {
	blocks map[string][]analysis.Block
	fail   map[string]error
	calls  []string
	after  func(key string)
}

func (f *fakeAnalyzer) Analyze(_ context.Context, ref analysis.DocumentRef) (*analysis.Response, error) {
	f.calls = append(f.calls, ref.Key)
	if f.after != nil {
		defer f.after(ref.Key)
	}
	if err := f.fail[ref.Key]; err != nil {
		return nil, &analysis.Error{Op: "analyze", Key: ref.Key, Err: err}
	}
	return &analysis.Response{Blocks: f.blocks[ref.Key]}, nil
}

func lines(page int, texts ...string) []analysis.Block {
	blocks := make([]analysis.Block, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, analysis.Block{Type: analysis.BlockTypeLine, Page: page, Text: text})
	}
	return blocks
}

func newStore(t *testing.T, keys ...string) *storage.LocalStore {
	t.Helper()
	ctx := context.Background()
	s, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.CreateBucket(ctx, bucket))
	for _, key := range keys {
		require.NoError(t, s.Put(ctx, bucket, key, []byte("%PDF-1.4")))
	}
	return s
}

func newPipeline(t *testing.T, store storage.ObjectStore, a analysis.Analyzer, output string) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Store:     store,
		Analyzer:  a,
		Extractor: extract.NewDefaultExtractor(nil),
		Bucket:    bucket,
		Prefix:    "pdf/",
		Output:    output,
	})
	require.NoError(t, err)
	return p
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRun(t *testing.T) {
	store := newStore(t, "pdf/a.pdf", "pdf/b.pdf", "pdf/c.PDF", "pdf/readme.txt", "other/d.pdf")
	a := &fakeAnalyzer{
		blocks: map[string][]analysis.Block{
			"pdf/a.pdf": lines(1, "BLACK BOX WARNING: may cause X", "Compound Name: Aspirin"),
		},
		fail: map[string]error{"pdf/b.pdf": errors.New("throttled")},
	}
	output := filepath.Join(t.TempDir(), "out.csv")

	summary, err := newPipeline(t, store, a, output).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 3, Processed: 2, Failed: 1, Output: output}, summary)
	assert.Equal(t, []string{"pdf/a.pdf", "pdf/b.pdf", "pdf/c.PDF"}, a.calls)

	rows := readCSV(t, output)
	require.Len(t, rows, 3)
	assert.Equal(t, extract.IDColumn, rows[0][0])
	assert.Equal(t, []string{"pdf/a.pdf", "Y", "BLACK BOX WARNING: may cause X", "Aspirin"}, rows[1][:4])
	assert.Equal(t, "pdf/c.PDF", rows[2][0])
	assert.Equal(t, "N", rows[2][1])
	for _, v := range rows[2][2:] {
		assert.Equal(t, extract.NotAvailable, v)
	}
}

func TestRunNoDocuments(t *testing.T) {
	store := newStore(t, "pdf/readme.txt")
	output := filepath.Join(t.TempDir(), "extracted_fields.xlsx")

	summary, err := newPipeline(t, store, &fakeAnalyzer{}, output).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Equal(t, Summary{}, summary)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "no output file for an empty batch")
}

func TestRunListFailure(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	output := filepath.Join(t.TempDir(), "out.csv")

	_, err = newPipeline(t, store, &fakeAnalyzer{}, output).Run(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunCancelled(t *testing.T) {
	store := newStore(t, "pdf/a.pdf", "pdf/b.pdf", "pdf/c.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &fakeAnalyzer{after: func(string) { cancel() }}
	output := filepath.Join(t.TempDir(), "out.csv")

	summary, err := newPipeline(t, store, a, output).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, []string{"pdf/a.pdf"}, a.calls)

	rows := readCSV(t, output)
	require.Len(t, rows, 2, "rows written before cancellation are kept")
	assert.Equal(t, "pdf/a.pdf", rows[1][0])
}

func TestRunCancelledDuringAnalysis(t *testing.T) {
	store := newStore(t, "pdf/a.pdf", "pdf/b.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &fakeAnalyzer{fail: map[string]error{"pdf/a.pdf": context.Canceled}}
	a.after = func(string) { cancel() }

	summary, err := newPipeline(t, store, a, filepath.Join(t.TempDir(), "out.csv")).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Failed, "an interrupted document is not a failure")
	assert.Zero(t, summary.Processed)
}

type failingSink struct{ closed bool }

func (s *failingSink) Write(extract.Record) error { return errors.New("disk full") }
func (s *failingSink) Close() error               { s.closed = true; return nil }

func TestRunSinkFailureStopsBatch(t *testing.T) {
	store := newStore(t, "pdf/a.pdf", "pdf/b.pdf")
	out := &failingSink{}
	p, err := New(Options{
		Store:     store,
		Analyzer:  &fakeAnalyzer{},
		Extractor: extract.NewDefaultExtractor(nil),
		Bucket:    bucket,
		Prefix:    "pdf/",
		Output:    "ignored.csv",
		Open:      func(string, extract.Schema) (sink.Sink, error) { return out, nil },
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, out.closed)
}

func TestRunOpenFailure(t *testing.T) {
	store := newStore(t, "pdf/a.pdf")
	output := filepath.Join(t.TempDir(), "out.json")

	_, err := newPipeline(t, store, &fakeAnalyzer{}, output).Run(context.Background())
	assert.ErrorIs(t, err, sink.ErrUnsupportedFormat)
}

func TestRunResponses(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "label-a.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"Blocks":[
		{"BlockType":"PAGE","Page":1},
		{"BlockType":"LINE","Text":"Compound: Ibuprofen","Page":1},
		{"BlockType":"LINE","Text":"Section 14 Clinical Studies","Page":2},
		{"BlockType":"LINE","Text":"Study Number: S-1; N = 120; Dose: 10 mg","Page":2},
		{"BlockType":"LINE","Text":"Section 15 References","Page":3}
	]}`), 0o600))
	output := filepath.Join(dir, "out.csv")

	p, err := New(Options{Extractor: extract.NewDefaultExtractor(nil), Output: output})
	require.NoError(t, err)
	summary, err := p.RunResponses(context.Background(), []string{good, filepath.Join(dir, "missing.json")})
	require.NoError(t, err)
	assert.Equal(t, Summary{Listed: 2, Processed: 1, Failed: 1, Output: output}, summary)

	rows := readCSV(t, output)
	require.Len(t, rows, 2)
	rec := map[string]string{}
	for i, field := range rows[0] {
		rec[field] = rows[1][i]
	}
	assert.Equal(t, "label-a.json", rec[extract.IDColumn])
	assert.Equal(t, "Ibuprofen", rec["Compound"])
	assert.Equal(t, "S-1", rec["Study"])
	assert.Equal(t, "120", rec["N for each study"])
	assert.Equal(t, "10 mg", rec["Dose for each study"])

	_, err = p.RunResponses(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestListDocumentsWithoutStore(t *testing.T) {
	p := newPipeline(t, nil, &fakeAnalyzer{}, "out.csv")
	_, err := p.ListDocuments(context.Background())
	assert.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{Analyzer: &fakeAnalyzer{}})
	assert.Error(t, err)

	p, err := New(Options{Extractor: extract.NewDefaultExtractor(nil)})
	require.NoError(t, err)
	_, err = p.ExtractDocument(context.Background(), analysis.DocumentRef{Bucket: bucket, Key: "pdf/a.pdf"})
	assert.Error(t, err)
}

func TestExtractDocument(t *testing.T) {
	a := &fakeAnalyzer{blocks: map[string][]analysis.Block{
		"old/b.pdf": lines(1, "Compound: Heparin"),
	}}
	p := newPipeline(t, nil, a, "out.csv")

	rec, err := p.ExtractDocument(context.Background(), analysis.DocumentRef{Bucket: "archive", Key: "old/b.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "old/b.pdf", rec.Source())
	v, ok := rec.Get("Compound")
	assert.True(t, ok)
	assert.Equal(t, "Heparin", v)
	assert.Equal(t, bucket, p.Bucket())
}
