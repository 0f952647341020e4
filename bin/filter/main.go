package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image-set-comparator/internal/env"
	"image-set-comparator/internal/filter"
	"image-set-comparator/internal/retry"
	"image-set-comparator/internal/storage"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	var storageBackend string
	var parallel bool
	var concurrency int
	var debug bool
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend holding both directories (file or s3)")
	flag.BoolVar(&parallel, "parallel", env.OrDefault("PARALLEL", false), "Split the rows of every image across GOMAXPROCS workers")
	flag.IntVar(&concurrency, "concurrency", env.OrDefault("CONCURRENCY", 1), "Number of images filtered at once")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <input-dir> <output-dir> <filter-width> [image-count]\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	logger := newLogger(debug)
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) != 3 && len(args) != 4 {
		flag.Usage()
		logger.Error("input directory, output directory and filter width must be specified", "args", args)
		os.Exit(1)
	}

	width, err := strconv.Atoi(args[2])
	if err != nil {
		logger.Error("invalid filter width", "width", args[2], "error", err)
		os.Exit(1)
	}
	limit := 0
	if len(args) == 4 {
		limit, err = strconv.Atoi(args[3])
		if err != nil {
			logger.Error("invalid image count", "count", args[3], "error", err)
			os.Exit(1)
		}
	}

	median, err := filter.NewMedian(width)
	if err != nil {
		logger.Error("invalid filter width", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newStorage(ctx, storageBackend)
	if err != nil {
		logger.Error("failed to create storage backend", "error", err)
		os.Exit(1)
	}

	runner, err := filter.NewRunner(s, median, filter.Config{
		InputDir:    args[0],
		OutputDir:   args[1],
		Limit:       limit,
		Parallel:    parallel,
		Concurrency: concurrency,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(1)
	}

	if _, err := runner.Run(ctx); err != nil {
		logger.Error("filter failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		_ = logLevel.UnmarshalText([]byte(v))
	}

	if debug {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		}))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		// https://opentelemetry.io/docs/specs/otel/logs/data-model/
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severitytext"
			case slog.MessageKey:
				a.Key = "body"
			}
			return a
		},
	}))
}

func newStorage(ctx context.Context, backend string) (storage.Storage, error) {
	switch backend {
	case "file":
		return storage.NewFileStorage(ctx, storage.FileConfig{})
	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:     os.Getenv("S3_BUCKET"),
			HTTPClient: retry.NewClient(30*time.Second, retry.NewExponentialBackOff(50*time.Millisecond, 2*time.Second, 3, nil), retry.NewDefaultRetryOn()),
		})
	}
	return nil, fmt.Errorf("unknown storage backend: %s", backend)
}
