package runnable

import (
	"context"
	"errors"
	"image-set-comparator/internal/compare"
	diffimage "image-set-comparator/internal/diff/image"
	"image-set-comparator/internal/env"
	"image-set-comparator/internal/myhttp"
	"image-set-comparator/internal/routes"
	"image-set-comparator/internal/storage"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	pyroscopepprof "github.com/grafana/pyroscope-go/http/pprof"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/net/netutil"
	"golang.org/x/xerrors"
)

const applicationName = "image-set-comparator"

type Server struct {
	address                string
	terminationGracePeriod time.Duration
	lameduck               time.Duration
	keepAlive              bool
	maxConnections         int
	maxVerifyConcurrency   int
	schedule               string
	referenceDir           string
	candidateDir           string
	onSkip                 string
	diffMode               string
	storageClient          storage.Storage
	localPaths             bool
}

// NewServer reads its settings from the environment. localPaths restricts
// the directories accepted by /verify to paths below the working directory.
func NewServer(storageClient storage.Storage, localPaths bool) *Server {
	return &Server{
		address:                env.OrDefault("ADDRESS", "0.0.0.0:8383"),
		terminationGracePeriod: env.OrDefault("TERMINATION_GRACE_PERIOD", 10*time.Second),
		lameduck:               env.OrDefault("LAMEDUCK", 1*time.Second),
		keepAlive:              env.OrDefault("HTTP_KEEPALIVE", true),
		maxConnections:         env.OrDefault("MAX_CONNECTIONS", 65532),
		maxVerifyConcurrency:   env.OrDefault("MAX_VERIFY_CONCURRENCY", runtime.GOMAXPROCS(0)),
		schedule:               env.OrDefault("SCHEDULE", ""),
		referenceDir:           env.OrDefault("REFERENCE_DIR", ""),
		candidateDir:           env.OrDefault("CANDIDATE_DIR", ""),
		onSkip:                 env.OrDefault("ON_SKIP", string(compare.SkipPolicySkip)),
		diffMode:               env.OrDefault("DIFF_MODE", string(diffimage.ModeAbsolute)),
		storageClient:          storageClient,
		localPaths:             localPaths,
	}
}

var Debug = false

func NewLogger() (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if v, ok := os.LookupEnv("GO_LOG"); ok {
		if err := logLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, xerrors.Errorf("failed to parse log level: %w", err)
		}
	}
	handlerOpts := &slog.HandlerOptions{
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
	}
	if Debug {
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
}

// verificationConfig validates the scheduled verification settings.
func (s *Server) verificationConfig() (compare.Config, error) {
	skipPolicy, err := compare.ParseSkipPolicy(s.onSkip)
	if err != nil {
		return compare.Config{}, xerrors.Errorf("failed to parse ON_SKIP: %w", err)
	}
	mode, err := diffimage.ParseMode(s.diffMode)
	if err != nil {
		return compare.Config{}, xerrors.Errorf("failed to parse DIFF_MODE: %w", err)
	}
	if s.schedule != "" && (s.referenceDir == "" || s.candidateDir == "") {
		return compare.Config{}, xerrors.Errorf("SCHEDULE requires REFERENCE_DIR and CANDIDATE_DIR: %w", compare.ErrMissingArgument)
	}

	return compare.Config{
		ReferenceDir: s.referenceDir,
		CandidateDir: s.candidateDir,
		SkipPolicy:   skipPolicy,
		DiffMode:     mode,
	}, nil
}

func (s *Server) Start(ctx context.Context) error {
	verification, err := s.verificationConfig()
	if err != nil {
		return err
	}

	runtime.SetMutexProfileFraction(1)
	runtime.SetBlockProfileRate(1)

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: applicationName,
		ServerAddress:   os.Getenv("PYROSCOPE_ENDPOINT"),
		UploadRate:      60 * time.Second,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	})
	if err != nil {
		return xerrors.Errorf("failed to create profiler: %w", err)
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	r, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(applicationName)),
	)
	if err != nil {
		return xerrors.Errorf("failed to create resource: %w", err)
	}
	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return xerrors.Errorf("failed to create trace exporter: %w", err)
	}
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))

	exporter, err := otelprometheus.New()
	if err != nil {
		return xerrors.Errorf("failed to create exporter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	// https://github.com/prometheus/client_golang/blob/v1.20.4/prometheus/metric.go#L200
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter(applicationName)
	httpRequestsDurationMicroSeconds, err := meter.Int64Histogram("http_requests_duration_micro_seconds")
	if err != nil {
		return xerrors.Errorf("failed to create histogram: %w", err)
	}
	compareOutcomes, err := meter.Int64Counter("compare_outcomes")
	if err != nil {
		return xerrors.Errorf("failed to create counter: %w", err)
	}

	logger, err := NewLogger()
	if err != nil {
		return err
	}

	var scheduler *cron.Cron
	if s.schedule != "" {
		verification.Logger = logger
		verifier, err := NewVerifier(prometheus.DefaultRegisterer, s.storageClient, verification)
		if err != nil {
			return xerrors.Errorf("failed to create verifier: %w", err)
		}
		scheduler, err = verifier.Schedule(ctx, s.schedule)
		if err != nil {
			return xerrors.Errorf("failed to schedule verification: %w", err)
		}
		scheduler.Start()
		logger.Info("scheduled verification", "schedule", s.schedule, "reference", s.referenceDir, "candidate", s.candidateDir)
	}

	mux := myhttp.NewServerMux(logger, httpRequestsDurationMicroSeconds)

	mux.HandleFuncWithMiddleware("POST /compare", routes.Compare(compareOutcomes))
	mux.HandleFuncWithMiddleware("POST /verify", routes.Verify(s.storageClient, s.localPaths, s.maxVerifyConcurrency))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(http.StatusText(http.StatusOK)))
	})

	mux.Handle("GET /metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}),
	))

	if Debug {
		mux.HandleFunc("GET /debug/pprof/", pprof.Index)
		mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
		mux.HandleFunc("GET /debug/pprof/profile", pyroscopepprof.Profile)
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return xerrors.Errorf("failed to listen on address %s: %w", s.address, err)
	}

	server := &http.Server{
		Handler: mux,
	}
	server.SetKeepAlivesEnabled(s.keepAlive)

	go func() {
		if err := server.Serve(netutil.LimitListener(listener, s.maxConnections)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve HTTP", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	time.Sleep(s.lameduck)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.terminationGracePeriod)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown server: %w", err)
	}

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-ctx.Done():
			logger.Warn("scheduled verification still running at shutdown")
		}
	}

	if err := traceProvider.Shutdown(ctx); err != nil {
		return xerrors.Errorf("failed to shutdown trace provider: %w", err)
	}

	if err := profiler.Stop(); err != nil {
		return xerrors.Errorf("failed to shutdown profiler: %w", err)
	}

	return nil
}
