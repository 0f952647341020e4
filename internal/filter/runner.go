package filter

import (
	"bytes"
	"context"
	"errors"
	"image-set-comparator/internal/bitmap"
	"image-set-comparator/internal/compare"
	"image-set-comparator/internal/storage"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var ErrMissingArgument = errors.New("missing argument")

type Config struct {
	InputDir  string
	OutputDir string
	// Limit filters only the first Limit images in listing order. Zero
	// filters all of them.
	Limit int
	// Parallel splits the rows of every image across workers.
	Parallel bool
	// Concurrency is the number of images filtered at once.
	Concurrency int
	Logger      *slog.Logger
}

// Runner filters every PNG image of a directory into another directory
// under the same name.
type Runner struct {
	storage storage.Storage
	median  *Median
	config  Config
	logger  *slog.Logger
}

func NewRunner(s storage.Storage, median *Median, config Config) (*Runner, error) {
	if config.InputDir == "" {
		return nil, xerrors.Errorf("input directory: %w", ErrMissingArgument)
	}
	if config.OutputDir == "" {
		return nil, xerrors.Errorf("output directory: %w", ErrMissingArgument)
	}
	if config.Limit < 0 {
		return nil, xerrors.Errorf("negative limit %d", config.Limit)
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		storage: s,
		median:  median,
		config:  config,
		logger:  logger.With(slog.String("input", config.InputDir), slog.String("output", config.OutputDir)),
	}, nil
}

func (r *Runner) Names(ctx context.Context) ([]string, error) {
	entries, err := r.storage.List(ctx, r.config.InputDir)
	if err != nil {
		return nil, xerrors.Errorf("failed to list input directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !strings.HasSuffix(entry, compare.Suffix) {
			continue
		}
		if r.config.Limit > 0 && len(names) >= r.config.Limit {
			break
		}
		names = append(names, entry)
	}
	return names, nil
}

// Run filters the images and returns the URLs written, in listing order.
// The first image that cannot be read, decoded or written aborts the run.
func (r *Runner) Run(ctx context.Context) ([]string, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	urls := make([]string, len(names))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.config.Concurrency)
	for i, name := range names {
		eg.Go(func() error {
			url, err := r.filterImage(ctx, name)
			if err != nil {
				return xerrors.Errorf("failed to filter %s: %w", name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	r.logger.Info("filtered images",
		slog.Int("count", len(names)),
		slog.Int("width", r.median.Width()),
		slog.Bool("parallel", r.config.Parallel),
		slog.Duration("elapsed", time.Since(start)),
	)
	return urls, nil
}

func (r *Runner) filterImage(ctx context.Context, name string) (string, error) {
	data, err := r.storage.Get(ctx, r.storage.Join(r.config.InputDir, name))
	if err != nil {
		return "", err
	}
	src, err := bitmap.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var dst *bitmap.Bitmap
	if r.config.Parallel {
		dst = r.median.ApplyParallel(src)
	} else {
		dst = r.median.Apply(src)
	}

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, dst.Image()); err != nil {
		return "", xerrors.Errorf("failed to encode image: %w", err)
	}

	url, err := r.storage.Put(ctx, r.storage.Join(r.config.OutputDir, name), buffer.Bytes())
	if err != nil {
		return "", err
	}
	r.logger.Debug("filtered image", slog.String("name", name), slog.String("shape", src.Shape.String()))
	return url, nil
}
