// Package app wires the configured collaborators for the command binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/extract"
	"github.com/a3tai/label-extractor/internal/pdf"
	"github.com/a3tai/label-extractor/internal/pipeline"
	"github.com/a3tai/label-extractor/internal/storage"
)

// LoadEnv reads .env from the working directory when present. A missing file
// is not an error.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Components holds the collaborators built from a Config.
type Components struct {
	Config    *config.Config
	AWS       *aws.Config // nil unless an AWS-backed collaborator is in use
	Store     storage.ObjectStore
	Analyzer  analysis.Analyzer
	Extractor *extract.Extractor
	Pipeline  *pipeline.Pipeline
}

// Build constructs the store, analyzer, extractor and pipeline selected by
// cfg. The AWS configuration is loaded only when S3 or Textract is used.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg}

	if cfg.Store == config.StoreS3 || cfg.Analyzer == config.AnalyzerTextract {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS configuration: %w", err)
		}
		c.AWS = &awsCfg
	}

	store, err := NewStore(cfg, c.AWS)
	if err != nil {
		return nil, err
	}
	c.Store = store

	analyzer, err := NewAnalyzer(cfg, c.AWS, store, logger)
	if err != nil {
		return nil, err
	}
	c.Analyzer = analyzer

	rules, err := cfg.RuleSet()
	if err != nil {
		return nil, err
	}
	c.Extractor, err = extract.NewExtractor(rules, logger.Named("extract"))
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}

	c.Pipeline, err = pipeline.New(pipeline.Options{
		Store:     c.Store,
		Analyzer:  c.Analyzer,
		Extractor: c.Extractor,
		Bucket:    cfg.Bucket,
		Prefix:    cfg.Prefix,
		Output:    cfg.Output,
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NewStore returns the configured object store. awsCfg is required for S3.
func NewStore(cfg *config.Config, awsCfg *aws.Config) (storage.ObjectStore, error) {
	switch cfg.Store {
	case config.StoreLocal:
		return storage.NewLocalStore(cfg.LocalRoot)
	case config.StoreS3:
		if awsCfg == nil {
			return nil, fmt.Errorf("s3 store needs an AWS configuration")
		}
		return storage.NewS3StoreFromConfig(*awsCfg), nil
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Store)
	}
}

// NewAnalyzer returns the configured document analyzer reading from store.
func NewAnalyzer(cfg *config.Config, awsCfg *aws.Config, store storage.ObjectStore, logger *zap.Logger) (analysis.Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Analyzer {
	case config.AnalyzerLocal:
		return analysis.NewLocalAnalyzer(store, pdf.NewReader(cfg.MaxFileSize), logger.Named("analysis")), nil
	case config.AnalyzerTextract:
		if awsCfg == nil {
			return nil, fmt.Errorf("textract analyzer needs an AWS configuration")
		}
		mode, err := analysis.ParseMode(cfg.AnalysisMode)
		if err != nil {
			return nil, err
		}
		return analysis.NewTextractAnalyzerFromConfig(*awsCfg, store, analysis.TextractOptions{
			Mode:         mode,
			PollInterval: cfg.PollInterval,
			MaxWait:      cfg.MaxWait,
			OutputBucket: cfg.AnalysisOutputBucket,
			OutputPrefix: cfg.AnalysisOutputPrefix,
		}, logger.Named("analysis")), nil
	default:
		return nil, fmt.Errorf("unknown analyzer: %s", cfg.Analyzer)
	}
}
