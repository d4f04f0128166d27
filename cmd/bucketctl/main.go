package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/label-extractor/internal/app"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/logging"
	"github.com/a3tai/label-extractor/internal/storage"
)

const usage = `usage: bucketctl [flags] <command> [args]

commands:
  create                    create the bucket
  empty                     delete every object in the bucket
  delete                    empty the bucket, then delete it
  checksum <key> [MD5|SHA256|CRC32]
                            print the checksum of an object (default MD5)`

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

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.Load("bucketctl", args)
	if err != nil {
		return err
	}
	if len(cfg.Args) == 0 {
		return errors.New(usage)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	return execute(ctx, store, cfg.Bucket, cfg.Args, stdout, logger)
}

func newStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.Store != config.StoreS3 {
		return app.NewStore(cfg, nil)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return app.NewStore(cfg, &awsCfg)
}

func execute(ctx context.Context, store storage.ObjectStore, bucket string, args []string, stdout io.Writer, logger *zap.Logger) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "create":
		if err := store.CreateBucket(ctx, bucket); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Bucket %s created\n", bucket)

	case "empty":
		n, err := store.EmptyBucket(ctx, bucket)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %d objects from %s\n", n, bucket)

	case "delete":
		n, err := store.EmptyBucket(ctx, bucket)
		if err != nil {
			return err
		}
		logger.Info("Bucket emptied", zap.String("bucket", bucket), zap.Int("objects", n))
		if err := store.DeleteBucket(ctx, bucket); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Bucket %s deleted (%d objects removed)\n", bucket, n)

	case "checksum":
		if len(rest) == 0 || len(rest) > 2 {
			return errors.New(usage)
		}
		alg := storage.ChecksumMD5
		if len(rest) == 2 {
			parsed, err := storage.ParseChecksumAlgorithm(rest[1])
			if err != nil {
				return err
			}
			alg = parsed
		}
		sum, err := store.Checksum(ctx, bucket, rest[0], alg)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s  %s/%s  %s\n", alg, bucket, rest[0], sum)

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}
