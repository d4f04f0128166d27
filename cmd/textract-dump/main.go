package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/app"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/extract"
	"github.com/a3tai/label-extractor/internal/logging"
	"github.com/a3tai/label-extractor/internal/storage"
)

const usage = "usage: textract-dump [flags] <key> [output-dir]"

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) || errors.Is(err, config.ErrVersionRequested) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dumpFiles names the files written for one analyzed document.
type dumpFiles struct {
	Response string
	Words    string
	Lines    string
}

func filesFor(dir, key string) dumpFiles {
	base := strings.TrimSuffix(path.Base(key), path.Ext(key))
	return dumpFiles{
		Response: filepath.Join(dir, base+".json"),
		Words:    filepath.Join(dir, base+"_words.csv"),
		Lines:    filepath.Join(dir, base+"_lines.csv"),
	}
}

// run analyzes one stored PDF, saves the raw response with its WORD and LINE
// exports, and prints the lines grouped by page.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load("textract-dump", args)
	if err != nil {
		return err
	}
	if len(cfg.Args) == 0 || len(cfg.Args) > 2 {
		return errors.New(usage)
	}
	key := cfg.Args[0]
	dir := "."
	if len(cfg.Args) == 2 {
		dir = cfg.Args[1]
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ref, err := locate(ctx, c.Store, cfg.Bucket, key)
	if err != nil {
		return err
	}
	logger.Info("Analyzing document", zap.String("bucket", ref.Bucket), zap.String("key", ref.Key), zap.Int64("size", ref.Size))

	resp, err := c.Analyzer.Analyze(ctx, ref)
	if err != nil {
		return err
	}

	files := filesFor(dir, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := writeFile(files.Response, func(w io.Writer) error { return analysis.WriteResponse(w, resp) }); err != nil {
		return err
	}
	if err := writeFile(files.Words, func(w io.Writer) error { return analysis.WriteWordsCSV(w, resp) }); err != nil {
		return err
	}
	if err := writeFile(files.Lines, func(w io.Writer) error { return analysis.WriteLinesCSV(w, resp) }); err != nil {
		return err
	}

	printLines(stdout, resp)
	fmt.Fprintf(stdout, "\nSaved %s, %s, %s\n", files.Response, files.Words, files.Lines)
	return nil
}

// locate finds the size of key so that auto mode can pick the API.
func locate(ctx context.Context, store storage.ObjectStore, bucket, key string) (analysis.DocumentRef, error) {
	objects, err := store.List(ctx, bucket, key)
	if err != nil {
		return analysis.DocumentRef{}, err
	}
	for _, o := range objects {
		if o.Key == key {
			return analysis.DocumentRef{Bucket: bucket, Key: key, Size: o.Size}, nil
		}
	}
	return analysis.DocumentRef{}, &storage.Error{Op: "locate", Bucket: bucket, Key: key, Err: storage.ErrNotFound}
}

func writeFile(name string, write func(io.Writer) error) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printLines(w io.Writer, resp *analysis.Response) {
	pt := extract.GroupPages(resp.Blocks)
	for _, page := range pt.Pages() {
		fmt.Fprintf(w, "--- page %d ---\n", page)
		for _, line := range pt.Page(page) {
			fmt.Fprintln(w, line)
		}
	}
}
