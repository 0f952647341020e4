package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image-set-comparator/internal/compare"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/env"
	"image-set-comparator/internal/report"
	"image-set-comparator/internal/retry"
	"image-set-comparator/internal/storage"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	var storageBackend string
	var onSkip string
	var diffMode string
	var referenceFromWorkingDirectory bool
	var concurrency int
	var format string
	var exitCode bool
	var inventory bool
	var diffDirectory string
	var debug bool
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend holding both directories (file or s3)")
	flag.StringVar(&onSkip, "on-skip", env.OrDefault("ON_SKIP", string(compare.SkipPolicySkip)), "What to do with pairs that cannot be compared (skip or fail)")
	flag.StringVar(&diffMode, "diff-mode", env.OrDefault("DIFF_MODE", string(diffimage.ModeAbsolute)), "Per-channel difference (absolute or subtract)")
	flag.BoolVar(&referenceFromWorkingDirectory, "reference-from-working-directory", env.OrDefault("REFERENCE_FROM_WORKING_DIRECTORY", false), "Read reference images by bare name from the working directory")
	flag.IntVar(&concurrency, "concurrency", env.OrDefault("CONCURRENCY", 1), "Number of image pairs compared at once")
	flag.StringVar(&format, "format", env.OrDefault("FORMAT", report.FormatText), "Output format (text or json)")
	flag.BoolVar(&exitCode, "exit-code", env.OrDefault("EXIT_CODE", false), "Exit with status 1 when output is not correct")
	flag.BoolVar(&inventory, "inventory", env.OrDefault("INVENTORY", false), "Report images present in only one directory")
	flag.StringVar(&diffDirectory, "diff-directory", env.OrDefault("DIFF_DIRECTORY", ""), "Write a diff image of the first mismatch below this directory (a key prefix in S3_BUCKET with -storage-backend=s3)")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Human readable debug logs")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <reference-dir> <candidate-dir>\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	logger, err := newLogger(debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		logger.Error("reference and candidate directories must be specified", "args", args)
		os.Exit(1)
	}

	skipPolicy, err := compare.ParseSkipPolicy(onSkip)
	if err != nil {
		logger.Error("invalid -on-skip", "error", err)
		os.Exit(1)
	}
	mode, err := diffimage.ParseMode(diffMode)
	if err != nil {
		logger.Error("invalid -diff-mode", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newStorage(ctx, storageBackend)
	if err != nil {
		logger.Error("failed to create storage backend", "error", err)
		os.Exit(1)
	}

	comparator, err := compare.NewComparator(s, compare.Config{
		ReferenceDir:            args[0],
		CandidateDir:            args[1],
		ReferenceFromWorkingDir: referenceFromWorkingDirectory,
		SkipPolicy:              skipPolicy,
		DiffMode:                mode,
		Concurrency:             concurrency,
		Logger:                  logger,
	})
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(1)
	}

	result, err := comparator.Run(ctx)
	if err != nil {
		logger.Error("comparison failed", "error", err)
		os.Exit(1)
	}

	r := report.New(result)

	if inventory {
		i, err := comparator.Inventory(ctx)
		if err != nil {
			logger.Error("failed to take inventory", "error", err)
			os.Exit(1)
		}
		if !i.Complete() {
			logger.Warn("directories hold different images", "missing", i.Missing, "extra", i.Extra)
		}
		r.WithInventory(i)
	}

	if diffDirectory != "" && result.Failure != nil {
		diffPath, err := comparator.SaveDiff(ctx, s, diffDirectory, *result.Failure)
		if err != nil {
			logger.Error("failed to save diff image", "error", err)
			os.Exit(1)
		}
		r.DiffPath = diffPath
	}

	if err := r.Write(os.Stdout, format); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}
	if err := r.WriteGitHubOutput(); err != nil {
		logger.Error("failed to write GitHub output", "error", err)
		os.Exit(1)
	}

	if exitCode && !result.AllCorrect {
		os.Exit(1)
	}
}

func newLogger(debug bool) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
	}

	if debug {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.Kitchen,
		})), nil
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
	})), nil
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
