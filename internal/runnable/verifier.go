package runnable

import (
	"context"
	"image-set-comparator/internal/compare"
	"image-set-comparator/internal/storage"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/xerrors"
)

const (
	resultCorrect   = "correct"
	resultIncorrect = "incorrect"
	resultError     = "error"
)

// Verifier runs the set comparison for a fixed pair of directories and
// exports the outcome of every run.
type Verifier struct {
	storageClient storage.Storage
	config        compare.Config
	logger        *slog.Logger

	runs        *prometheus.CounterVec
	lastSuccess prometheus.Gauge
}

func NewVerifier(registerer prometheus.Registerer, storageClient storage.Storage, config compare.Config) (*Verifier, error) {
	if _, err := compare.NewComparator(storageClient, config); err != nil {
		return nil, xerrors.Errorf("invalid verification: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := &Verifier{
		storageClient: storageClient,
		config:        config,
		logger:        logger,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_runs_total",
			Help: "Number of scheduled verifications by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "verification_last_success",
			Help: "Unix time of the last verification that found all output correct.",
		}),
	}
	if err := registerer.Register(v.runs); err != nil {
		return nil, xerrors.Errorf("failed to register runs counter: %w", err)
	}
	if err := registerer.Register(v.lastSuccess); err != nil {
		return nil, xerrors.Errorf("failed to register last success gauge: %w", err)
	}

	return v, nil
}

func (v *Verifier) Verify(ctx context.Context) (*compare.Result, error) {
	comparator, err := compare.NewComparator(v.storageClient, v.config)
	if err != nil {
		v.runs.WithLabelValues(resultError).Inc()
		return nil, xerrors.Errorf("failed to create comparator: %w", err)
	}

	result, err := comparator.Run(ctx)
	if err != nil {
		v.runs.WithLabelValues(resultError).Inc()
		return nil, xerrors.Errorf("failed to verify: %w", err)
	}

	if result.AllCorrect {
		v.runs.WithLabelValues(resultCorrect).Inc()
		v.lastSuccess.SetToCurrentTime()
	} else {
		v.runs.WithLabelValues(resultIncorrect).Inc()
	}
	return result, nil
}

// Schedule registers Verify on a standard five field cron expression. Runs
// that overlap a previous one are skipped. The returned cron is not started.
func (v *Verifier) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if _, err := c.AddFunc(spec, func() {
		result, err := v.Verify(ctx)
		if err != nil {
			v.logger.Error("scheduled verification failed", "error", err)
			return
		}
		if !result.AllCorrect {
			v.logger.Warn("scheduled verification found incorrect output", "name", result.Mismatch)
			return
		}
		v.logger.Info("scheduled verification passed", "compared", result.Compared)
	}); err != nil {
		return nil, xerrors.Errorf("failed to parse schedule %q: %w", spec, err)
	}

	return c, nil
}
