package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image-set-comparator/internal/env"
	"image-set-comparator/internal/retry"
	"image-set-comparator/internal/runnable"
	"image-set-comparator/internal/storage"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	var storageBackend string
	var debug bool
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Storage backend holding the verified directories (file or s3)")
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Enable pprof handlers and text logs")
	flag.Parse()

	runnable.Debug = debug

	ctx := context.Background()

	storageClient, err := newStorage(ctx, storageBackend)
	if err != nil {
		log.Fatalf("Failed to create storage backend: %v", err)
	}

	server := runnable.NewServer(storageClient, storageBackend == "file")
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
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
