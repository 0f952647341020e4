// Package compare checks a directory of candidate PNG images against a
// directory of reference images, pair by pair, and stops at the first pair
// that differs.
package compare

import (
	"bytes"
	"context"
	"errors"
	"image-set-comparator/internal/bitmap"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/storage"
	"iter"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Suffix selects the entries of the reference directory that are compared.
const Suffix = ".png"

var ErrMissingArgument = errors.New("missing argument")

type Config struct {
	ReferenceDir string
	CandidateDir string
	// ReferenceFromWorkingDir reads each reference image by its bare name
	// relative to the working directory instead of from ReferenceDir.
	ReferenceFromWorkingDir bool
	SkipPolicy              SkipPolicy
	DiffMode                diffimage.Mode
	// Concurrency is the number of pairs compared at once. Outcomes are
	// still reported in listing order.
	Concurrency int
	Logger      *slog.Logger
}

type Comparator struct {
	storage storage.Storage
	differ  diffimage.Differ
	config  Config
	logger  *slog.Logger
}

type Result struct {
	AllCorrect bool
	// Mismatch is the name of the first failing pair, empty when AllCorrect.
	Mismatch string
	Failure  *Outcome
	Compared int
	Skipped  []Outcome
}

func NewComparator(s storage.Storage, config Config) (*Comparator, error) {
	if config.ReferenceDir == "" {
		return nil, xerrors.Errorf("reference directory: %w", ErrMissingArgument)
	}
	if config.CandidateDir == "" {
		return nil, xerrors.Errorf("candidate directory: %w", ErrMissingArgument)
	}
	if config.SkipPolicy == "" {
		config.SkipPolicy = SkipPolicySkip
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Comparator{
		storage: s,
		differ:  diffimage.NewSubtractDiff(config.DiffMode),
		config:  config,
		logger:  logger.With(slog.String("reference", config.ReferenceDir), slog.String("candidate", config.CandidateDir)),
	}, nil
}

// Names lists the reference directory and keeps the entries ending in
// Suffix, in listing order. Both directories must be listable.
func (c *Comparator) Names(ctx context.Context) ([]string, error) {
	entries, err := c.storage.List(ctx, c.config.ReferenceDir)
	if err != nil {
		return nil, xerrors.Errorf("failed to list reference directory: %w", err)
	}
	if _, err := c.storage.List(ctx, c.config.CandidateDir); err != nil {
		return nil, xerrors.Errorf("failed to list candidate directory: %w", err)
	}

	return filterImages(entries), nil
}

func filterImages(entries []string) []string {
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry, Suffix) {
			names = append(names, entry)
		}
	}
	return names
}

// Outcomes lazily compares the pairs for names. The sequence yields a
// non-nil error only when ctx is done; consumers stop pulling at the first
// outcome they consider failed, so later pairs are never reported.
func (c *Comparator) Outcomes(ctx context.Context, names []string) iter.Seq2[Outcome, error] {
	return func(yield func(Outcome, error) bool) {
		window := c.config.Concurrency
		for start := 0; start < len(names); start += window {
			batch := names[start:min(start+window, len(names))]
			outcomes := make([]Outcome, len(batch))

			eg, egCtx := errgroup.WithContext(ctx)
			for i, name := range batch {
				eg.Go(func() error {
					o, err := c.ComparePair(egCtx, name)
					if err != nil {
						return err
					}
					outcomes[i] = o
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				yield(Outcome{}, err)
				return
			}

			for _, o := range outcomes {
				if !yield(o, nil) {
					return
				}
			}
		}
	}
}

// ComparePair compares the reference and candidate image called name. Read,
// decode and shape problems become skipped outcomes; the error is reserved
// for cancellation.
func (c *Comparator) ComparePair(ctx context.Context, name string) (Outcome, error) {
	referencePath := c.storage.Join(c.config.ReferenceDir, name)
	if c.config.ReferenceFromWorkingDir {
		referencePath = name
	}
	candidatePath := c.storage.Join(c.config.CandidateDir, name)

	reference, err := c.storage.Get(ctx, referencePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return skipped(name, ReasonReferenceUnreadable, err), nil
	}

	candidate, err := c.storage.Get(ctx, candidatePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, ctxErr
		}
		return skipped(name, ReasonCandidateUnreadable, err), nil
	}

	return compareData(c.differ, name, reference, candidate), nil
}

// CompareData compares two encoded images held in memory.
func CompareData(name string, reference []byte, candidate []byte, mode diffimage.Mode) Outcome {
	return compareData(diffimage.NewSubtractDiff(mode), name, reference, candidate)
}

func compareData(differ diffimage.Differ, name string, referenceData []byte, candidateData []byte) Outcome {
	reference, err := bitmap.Decode(bytes.NewReader(referenceData))
	if err != nil {
		return skipped(name, ReasonReferenceUnreadable, err)
	}
	candidate, err := bitmap.Decode(bytes.NewReader(candidateData))
	if err != nil {
		return skipped(name, ReasonCandidateUnreadable, err)
	}

	// Calculate only fails when the shapes differ.
	diff, err := differ.Calculate(reference, candidate)
	if err != nil {
		return skipped(name, ReasonShapeMismatch, err)
	}

	if diff.Identical() {
		return matched(name)
	}
	return mismatched(name, reference, diff)
}

// Run scans every pair until the first failing outcome.
func (c *Comparator) Run(ctx context.Context) (*Result, error) {
	names, err := c.Names(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{AllCorrect: true}
	for o, err := range c.Outcomes(ctx, names) {
		if err != nil {
			return nil, xerrors.Errorf("comparison interrupted: %w", err)
		}

		switch o.Kind {
		case KindMatch:
			result.Compared++
			c.logger.Debug("output matches", slog.String("name", o.Name))
		case KindMismatch:
			result.Compared++
			c.logger.Info("output differs",
				slog.String("name", o.Name),
				slog.Any("channels", o.Diff.Channels),
				slog.Float64("diffAmount", o.Diff.DiffAmount),
			)
		case KindSkipped:
			result.Skipped = append(result.Skipped, o)
			c.logger.Warn("pair skipped",
				slog.String("name", o.Name),
				slog.String("reason", string(o.Reason)),
				slog.String("error", errorString(o.Err)),
			)
		}

		if o.Failed(c.config.SkipPolicy) {
			result.AllCorrect = false
			result.Mismatch = o.Name
			result.Failure = &o
			break
		}
	}

	return result, nil
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
