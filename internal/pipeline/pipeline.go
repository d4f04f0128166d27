// Package pipeline runs a batch of label PDFs through analysis and field
// extraction into a single output file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/extract"
	"github.com/a3tai/label-extractor/internal/sink"
	"github.com/a3tai/label-extractor/internal/storage"
)

// ErrNoDocuments is returned when the batch has nothing to process. No output
// file is created in that case.
var ErrNoDocuments = errors.New("no PDF documents found")

// OpenFunc opens the output sink. It is called at most once per run.
type OpenFunc func(path string, schema extract.Schema) (sink.Sink, error)

// Options wires the collaborators of a Pipeline.
type Options struct {
	Store     storage.ObjectStore
	Analyzer  analysis.Analyzer
	Extractor *extract.Extractor
	Bucket    string
	Prefix    string
	Output    string
	Open      OpenFunc // defaults to sink.Open
	Logger    *zap.Logger
}

// Summary reports the outcome of a run.
type Summary struct {
	Listed    int    `json:"listed"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Output    string `json:"output,omitempty"`
}

// Pipeline processes documents one at a time. A failure on one document is
// logged and counted; the batch carries on with the next.
type Pipeline struct {
	store     storage.ObjectStore
	analyzer  analysis.Analyzer
	extractor *extract.Extractor
	bucket    string
	prefix    string
	output    string
	open      OpenFunc
	logger    *zap.Logger
}

// New validates opts and returns a Pipeline. Store and Analyzer may be left
// nil for a pipeline that only runs saved responses.
func New(opts Options) (*Pipeline, error) {
	if opts.Extractor == nil {
		return nil, errors.New("extractor cannot be nil")
	}
	if opts.Open == nil {
		opts.Open = sink.Open
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		store:     opts.Store,
		analyzer:  opts.Analyzer,
		extractor: opts.Extractor,
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		output:    opts.Output,
		open:      opts.Open,
		logger:    opts.Logger,
	}, nil
}

// ListDocuments returns the PDF objects under the configured bucket and
// prefix, ordered by key.
func (p *Pipeline) ListDocuments(ctx context.Context) ([]storage.ObjectInfo, error) {
	if p.store == nil {
		return nil, errors.New("no object store configured")
	}
	objects, err := p.store.List(ctx, p.bucket, p.prefix)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return storage.FilterPDF(objects), nil
}

// ExtractDocument analyzes a single stored PDF and returns its record. The
// object key is the record source.
func (p *Pipeline) ExtractDocument(ctx context.Context, ref analysis.DocumentRef) (extract.Record, error) {
	if p.analyzer == nil {
		return extract.Record{}, errors.New("no analyzer configured")
	}
	resp, err := p.analyzer.Analyze(ctx, ref)
	if err != nil {
		return extract.Record{}, err
	}
	return p.extractor.Extract(ref.Key, resp.Blocks), nil
}

// Bucket returns the configured source bucket.
func (p *Pipeline) Bucket() string {
	return p.bucket
}

// Extractor returns the record assembler used for every document.
func (p *Pipeline) Extractor() *extract.Extractor {
	return p.extractor
}

// Run lists the configured prefix and writes one row per successfully
// analyzed document. Cancelling ctx stops the batch after the current
// document; rows already written are kept.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	docs, err := p.ListDocuments(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Listed: len(docs)}
	if len(docs) == 0 {
		p.logger.Warn("No PDF documents found",
			zap.String("bucket", p.bucket),
			zap.String("prefix", p.prefix))
		return summary, ErrNoDocuments
	}

	p.logger.Info("Processing documents",
		zap.String("bucket", p.bucket),
		zap.String("prefix", p.prefix),
		zap.Int("count", len(docs)))

	return p.runBatch(ctx, summary, len(docs), func(i int) (extract.Record, error) {
		return p.ExtractDocument(ctx, analysis.DocumentRef{Bucket: p.bucket, Key: docs[i].Key, Size: docs[i].Size})
	}, func(i int) string { return docs[i].Key })
}

// RunResponses extracts from saved analysis responses instead of calling the
// analyzer. The file name of each path is used as the record source.
func (p *Pipeline) RunResponses(ctx context.Context, paths []string) (Summary, error) {
	summary := Summary{Listed: len(paths)}
	if len(paths) == 0 {
		p.logger.Warn("No analysis responses given")
		return summary, ErrNoDocuments
	}

	return p.runBatch(ctx, summary, len(paths), func(i int) (extract.Record, error) {
		resp, err := analysis.ReadResponseFile(paths[i])
		if err != nil {
			return extract.Record{}, err
		}
		return p.extractor.Extract(filepath.Base(paths[i]), resp.Blocks), nil
	}, func(i int) string { return paths[i] })
}

func (p *Pipeline) runBatch(ctx context.Context, summary Summary, n int,
	process func(i int) (extract.Record, error), name func(i int) string) (result Summary, err error) {

	out, err := p.open(p.output, p.extractor.Schema())
	if err != nil {
		return summary, fmt.Errorf("open output: %w", err)
	}
	summary.Output = p.output
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
		result = summary
		p.logger.Info("Batch finished",
			zap.Int("processed", summary.Processed),
			zap.Int("failed", summary.Failed),
			zap.String("output", summary.Output))
	}()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("Batch interrupted", zap.Int("remaining", n-i), zap.Error(err))
			return summary, err
		}

		source := name(i)
		p.logger.Debug("Processing document", zap.String("source", source), zap.Int("index", i+1), zap.Int("total", n))

		rec, err := process(i)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Warn("Batch interrupted", zap.String("source", source), zap.Error(err))
				return summary, ctx.Err()
			}
			summary.Failed++
			p.logger.Error("Skipping document", zap.String("source", source), zap.Error(err))
			continue
		}
		if err := out.Write(rec); err != nil {
			return summary, fmt.Errorf("write %s: %w", source, err)
		}
		summary.Processed++
	}
	return summary, nil
}
