package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/storage"
)

// SyncSizeLimit is the largest document AnalyzeDocument accepts inline.
const SyncSizeLimit int64 = 5 * 1024 * 1024

const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 30 * time.Minute
)

// Mode selects between the synchronous and asynchronous Textract APIs.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
	ModeAuto  Mode = "auto"
)

// ParseMode accepts sync, async and auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSync, ModeAsync, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown analysis mode %q (expected sync, async or auto)", s)
}

// TextractAPI is the subset of the Textract client used by TextractAnalyzer.
type TextractAPI interface {
	AnalyzeDocument(ctx context.Context, in *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
	StartDocumentAnalysis(ctx context.Context, in *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, in *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

// TextractOptions configures TextractAnalyzer.
type TextractOptions struct {
	Mode         Mode
	PollInterval time.Duration
	MaxWait      time.Duration
	// OutputBucket, when set, makes async jobs write their results to
	// OutputBucket/OutputPrefix/<job id>/ where they are read back.
	OutputBucket string
	OutputPrefix string
}

// TextractAnalyzer runs table and form analysis on documents stored in S3.
type TextractAnalyzer struct {
	client TextractAPI
	store  storage.ObjectStore
	opts   TextractOptions
	logger *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTextractAnalyzer wires client and store. store is used to download
// documents for synchronous analysis and to read async output locations.
func NewTextractAnalyzer(client TextractAPI, store storage.ObjectStore, opts TextractOptions, logger *zap.Logger) *TextractAnalyzer {
	if opts.Mode == "" {
		opts.Mode = ModeSync
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextractAnalyzer{
		client: client,
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// NewTextractAnalyzerFromConfig builds the Textract client from an AWS
// configuration.
func NewTextractAnalyzerFromConfig(cfg aws.Config, store storage.ObjectStore, opts TextractOptions, logger *zap.Logger) *TextractAnalyzer {
	return NewTextractAnalyzer(textract.NewFromConfig(cfg), store, opts, logger)
}

// Analyze runs the configured mode. In auto mode documents up to
// SyncSizeLimit go through the synchronous API.
func (a *TextractAnalyzer) Analyze(ctx context.Context, ref DocumentRef) (*Response, error) {
	switch a.opts.Mode {
	case ModeAsync:
		return a.analyzeAsync(ctx, ref)
	case ModeAuto:
		if ref.Size > SyncSizeLimit {
			return a.analyzeAsync(ctx, ref)
		}
		resp, err := a.analyzeSync(ctx, ref)
		if errors.Is(err, ErrDocumentTooLarge) {
			return a.analyzeAsync(ctx, ref)
		}
		return resp, err
	default:
		resp, err := a.analyzeSync(ctx, ref)
		if errors.Is(err, ErrDocumentTooLarge) {
			return nil, &Error{Op: "analyze", Key: ref.Key, Err: err}
		}
		return resp, err
	}
}

func (a *TextractAnalyzer) analyzeSync(ctx context.Context, ref DocumentRef) (*Response, error) {
	if ref.Size > SyncSizeLimit {
		return nil, ErrDocumentTooLarge
	}
	data, err := a.store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, &Error{Op: "download", Key: ref.Key, Err: err}
	}
	if int64(len(data)) > SyncSizeLimit {
		return nil, ErrDocumentTooLarge
	}

	a.logger.Debug("analyzing document",
		zap.String("key", ref.Key),
		zap.Int("bytes", len(data)),
		zap.String("mode", string(ModeSync)))

	out, err := a.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
	})
	if err != nil {
		return nil, &Error{Op: "analyze document", Key: ref.Key, Err: err}
	}
	return &Response{
		DocumentMetadata: metadataFrom(out.DocumentMetadata),
		Blocks:           convertBlocks(out.Blocks),
	}, nil
}

func (a *TextractAnalyzer) analyzeAsync(ctx context.Context, ref DocumentRef) (*Response, error) {
	input := &textract.StartDocumentAnalysisInput{
		DocumentLocation: &types.DocumentLocation{
			S3Object: &types.S3Object{Bucket: aws.String(ref.Bucket), Name: aws.String(ref.Key)},
		},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
	}
	if a.opts.OutputBucket != "" {
		input.OutputConfig = &types.OutputConfig{
			S3Bucket: aws.String(a.opts.OutputBucket),
			S3Prefix: aws.String(strings.TrimSuffix(a.opts.OutputPrefix, "/")),
		}
	}

	started, err := a.client.StartDocumentAnalysis(ctx, input)
	if err != nil {
		return nil, &Error{Op: "start analysis", Key: ref.Key, Err: err}
	}
	jobID := aws.ToString(started.JobId)
	a.logger.Info("analysis job started", zap.String("key", ref.Key), zap.String("job_id", jobID))

	first, err := a.waitForJob(ctx, ref, jobID)
	if err != nil {
		return nil, err
	}

	if a.opts.OutputBucket != "" {
		resp, err := a.readOutputLocation(ctx, jobID)
		if err != nil {
			return nil, &Error{Op: "read job output", Key: ref.Key, Err: err}
		}
		resp.JobStatus = string(first.JobStatus)
		return resp, nil
	}
	return a.collectPages(ctx, ref, jobID, first)
}

// waitForJob polls until the job reaches a terminal status or MaxWait
// elapses.
func (a *TextractAnalyzer) waitForJob(ctx context.Context, ref DocumentRef, jobID string) (*textract.GetDocumentAnalysisOutput, error) {
	deadline := a.now().Add(a.opts.MaxWait)
	for {
		out, err := a.client.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{JobId: aws.String(jobID)})
		if err != nil {
			return nil, &Error{Op: "get analysis", Key: ref.Key, Err: err}
		}

		switch out.JobStatus {
		case types.JobStatusSucceeded, types.JobStatusPartialSuccess:
			a.logger.Info("analysis job finished",
				zap.String("key", ref.Key),
				zap.String("job_id", jobID),
				zap.String("status", string(out.JobStatus)))
			return out, nil
		case types.JobStatusFailed:
			return nil, &Error{Op: "analysis job", Key: ref.Key,
				Err: fmt.Errorf("%w: %s", ErrJobFailed, aws.ToString(out.StatusMessage))}
		}

		if !a.now().Add(a.opts.PollInterval).Before(deadline) {
			return nil, &Error{Op: "analysis job", Key: ref.Key,
				Err: fmt.Errorf("%w: job %s still %s after %s", ErrJobTimeout, jobID, out.JobStatus, a.opts.MaxWait)}
		}
		a.logger.Debug("analysis job in progress", zap.String("job_id", jobID))
		if err := a.sleep(ctx, a.opts.PollInterval); err != nil {
			return nil, &Error{Op: "analysis job", Key: ref.Key, Err: err}
		}
	}
}

// collectPages follows NextToken from the first terminal response.
func (a *TextractAnalyzer) collectPages(ctx context.Context, ref DocumentRef, jobID string, first *textract.GetDocumentAnalysisOutput) (*Response, error) {
	resp := &Response{
		DocumentMetadata: metadataFrom(first.DocumentMetadata),
		JobStatus:        string(first.JobStatus),
		Blocks:           convertBlocks(first.Blocks),
	}
	next := first.NextToken
	for next != nil {
		out, err := a.client.GetDocumentAnalysis(ctx, &textract.GetDocumentAnalysisInput{
			JobId:     aws.String(jobID),
			NextToken: next,
		})
		if err != nil {
			return nil, &Error{Op: "get analysis", Key: ref.Key, Err: err}
		}
		resp.Merge(&Response{
			DocumentMetadata: metadataFrom(out.DocumentMetadata),
			Blocks:           convertBlocks(out.Blocks),
		})
		next = out.NextToken
	}
	return resp, nil
}

// readOutputLocation merges the numbered result objects Textract wrote for
// jobID, in numeric order.
func (a *TextractAnalyzer) readOutputLocation(ctx context.Context, jobID string) (*Response, error) {
	prefix := path.Join(strings.TrimSuffix(a.opts.OutputPrefix, "/"), jobID) + "/"
	objects, err := a.store.List(ctx, a.opts.OutputBucket, prefix)
	if err != nil {
		return nil, err
	}

	type part struct {
		key string
		n   int
	}
	var parts []part
	for _, o := range objects {
		n, err := strconv.Atoi(path.Base(o.Key))
		if err != nil {
			continue
		}
		parts = append(parts, part{key: o.Key, n: n})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no result objects under %s/%s", a.opts.OutputBucket, prefix)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].n < parts[j].n })

	resp := &Response{}
	for _, p := range parts {
		data, err := a.store.Get(ctx, a.opts.OutputBucket, p.key)
		if err != nil {
			return nil, err
		}
		page, err := ReadResponse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.key, err)
		}
		resp.Merge(page)
	}
	return resp, nil
}

func metadataFrom(m *types.DocumentMetadata) DocumentMetadata {
	if m == nil {
		return DocumentMetadata{}
	}
	return DocumentMetadata{Pages: int(aws.ToInt32(m.Pages))}
}

func convertBlocks(in []types.Block) []Block {
	out := make([]Block, 0, len(in))
	for _, b := range in {
		page := int(aws.ToInt32(b.Page))
		if page < 1 {
			page = DefaultPage
		}
		out = append(out, Block{
			ID:         aws.ToString(b.Id),
			Type:       BlockType(b.BlockType),
			Text:       aws.ToString(b.Text),
			Page:       page,
			Confidence: float64(aws.ToFloat32(b.Confidence)),
		})
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
