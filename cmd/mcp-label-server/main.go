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
	"github.com/a3tai/label-extractor/internal/logging"
	"github.com/a3tai/label-extractor/internal/mcp"
	"github.com/a3tai/label-extractor/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// loggerFor keeps stdio sessions quiet unless debug logging was requested.
// Logs always go to stderr, so they never mix with the protocol stream.
func loggerFor(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.LogLevel
	if cfg.IsStdioMode() && !cfg.IsDebug() {
		level = "error"
	}
	return logging.New(level)
}

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	// SIGHUP too: the MCP client may hang up on us
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		switch {
		case errors.Is(err, config.ErrVersionRequested):
			printVersion(os.Stdout)
			return
		case errors.Is(err, pflag.ErrHelp):
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load("mcp-label-server", args)
	if err != nil {
		return err
	}

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := loggerFor(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Debug("Starting with configuration", zap.Stringer("config", cfg))

	c, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	server, err := mcp.NewServer(cfg, mcp.Services{
		Store:     c.Store,
		Pipeline:  c.Pipeline,
		Inspector: pdf.NewInspector(cfg.MaxFileSize),
		Logger:    logger.Named("mcp"),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := server.Run(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP Label Server\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
