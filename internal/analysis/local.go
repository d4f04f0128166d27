package analysis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/pdf"
	"github.com/a3tai/label-extractor/internal/storage"
)

// PageReader extracts per-page text from PDF bytes.
type PageReader interface {
	Pages(data []byte) ([]pdf.Page, error)
}

// LocalAnalyzer produces LINE blocks from the embedded text layer of a PDF.
// It needs no remote service and only works for PDFs that carry text.
type LocalAnalyzer struct {
	store  storage.ObjectStore
	reader PageReader
	logger *zap.Logger
}

// NewLocalAnalyzer reads documents from store and parses them with reader.
func NewLocalAnalyzer(store storage.ObjectStore, reader PageReader, logger *zap.Logger) *LocalAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalAnalyzer{store: store, reader: reader, logger: logger}
}

func (a *LocalAnalyzer) Analyze(ctx context.Context, ref DocumentRef) (*Response, error) {
	data, err := a.store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, &Error{Op: "download", Key: ref.Key, Err: err}
	}
	pages, err := a.reader.Pages(data)
	if err != nil {
		return nil, &Error{Op: "read text layer", Key: ref.Key, Err: err}
	}

	resp := &Response{DocumentMetadata: DocumentMetadata{Pages: len(pages)}}
	for _, p := range pages {
		resp.Blocks = append(resp.Blocks, Block{
			ID:   fmt.Sprintf("page-%d", p.Number),
			Type: BlockTypePage,
			Page: p.Number,
		})
		for i, text := range p.Lines() {
			resp.Blocks = append(resp.Blocks, Block{
				ID:         fmt.Sprintf("line-%d-%d", p.Number, i+1),
				Type:       BlockTypeLine,
				Text:       text,
				Page:       p.Number,
				Confidence: 100,
			})
		}
	}
	if len(resp.BlocksOfType(BlockTypeLine)) == 0 {
		a.logger.Warn("document has no text layer", zap.String("key", ref.Key))
	}
	return resp, nil
}
