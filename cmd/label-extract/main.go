package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/app"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/extract"
	"github.com/a3tai/label-extractor/internal/logging"
	"github.com/a3tai/label-extractor/internal/pipeline"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(exitCode(run(ctx, os.Args[1:], os.Stdout), os.Stdout, os.Stderr))
}

func exitCode(err error, stdout, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, pipeline.ErrNoDocuments):
		fmt.Fprintf(stderr, "Error: %v; nothing was written\n", err)
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// run extracts every PDF under the configured prefix. Positional arguments,
// when given, are saved analysis responses to extract from instead.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load("label-extract", args)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("Starting with configuration", zap.Stringer("config", cfg))

	var summary pipeline.Summary
	if len(cfg.Args) > 0 {
		summary, err = runOffline(ctx, cfg, logger)
	} else {
		summary, err = runBatch(ctx, cfg, logger)
	}
	if summary.Output != "" {
		fmt.Fprintf(stdout, "Processed %d of %d documents (%d failed), output: %s\n",
			summary.Processed, summary.Listed, summary.Failed, summary.Output)
	}
	return err
}

func runBatch(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return c.Pipeline.Run(ctx)
}

func runOffline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (pipeline.Summary, error) {
	rules, err := cfg.RuleSet()
	if err != nil {
		return pipeline.Summary{}, err
	}
	x, err := extract.NewExtractor(rules, logger.Named("extract"))
	if err != nil {
		return pipeline.Summary{}, err
	}
	p, err := pipeline.New(pipeline.Options{
		Extractor: x,
		Output:    cfg.Output,
		Logger:    logger.Named("pipeline"),
	})
	if err != nil {
		return pipeline.Summary{}, err
	}
	return p.RunResponses(ctx, cfg.Args)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "Label Extract\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
