// Command bandkeeper serves the band collection over HTTP.
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bandkeeper/internal/adapters/protocol"
	"bandkeeper/internal/blob"
	"bandkeeper/internal/config"
	"bandkeeper/internal/core"
	"bandkeeper/internal/events"
	"bandkeeper/internal/loader"
	"bandkeeper/internal/platform/metrics"
	platformotel "bandkeeper/internal/platform/otel"
	"bandkeeper/pkg/domain"
)

const serviceName = "bandkeeper"

var (
	exitFunc  = os.Exit
	notifyCtx = func(parent context.Context) (context.Context, context.CancelFunc) {
		return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	}
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bandkeeper", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address (overrides BANDKEEPER_LISTEN_ADDR)")
	storage := fs.String("storage", "", "storage driver: memory, sqlite or postgres")
	seed := fs.String("seed", "", "YAML seed file used when storage is empty")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: bandkeeper [flags]\n\nConfiguration is read from BANDKEEPER_* variables; flags override them.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *storage != "" {
		cfg.Storage.Driver = *storage
	}
	if *seed != "" {
		cfg.Storage.SeedFile = *seed
	}
	if *logLevel != "" {
		cfg.Telemetry.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	logger, err := newLogger(stdout, cfg.Telemetry)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger: %v\n", err)
		return 1
	}

	ctx, stop := notifyCtx(context.Background())
	defer stop()

	srv, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	if err := srv.run(ctx, cfg.ListenAddr, cfg.ShutdownTimeout); err != nil {
		logger.Error("server stopped", "error", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, cfg config.Telemetry) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
}

// server owns every collaborator opened at startup.
type server struct {
	logger     *slog.Logger
	dispatcher *core.Dispatcher
	handler    http.Handler
	closers    []func(context.Context) error
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (s *server, err error) {
	s = &server{logger: logger}
	defer func() {
		if err != nil {
			_ = s.close(context.Background())
		}
	}()

	backend, err := core.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return s, err
	}
	s.closers = append(s.closers, func(context.Context) error { return backend.Close() })

	var seed domain.Loader
	if cfg.Storage.SeedFile != "" {
		seed = loader.NewFile(cfg.Storage.SeedFile)
	}
	store := core.NewMemoryStore()
	source, err := core.Bootstrap(ctx, store, backend, seed)
	if err != nil {
		return s, err
	}
	logger.Info("collection loaded", "source", string(source), "bands", store.Len(), "storage", cfg.Storage.Driver)

	archive, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return s, err
	}

	publisher := events.Open(cfg.Events)
	s.closers = append(s.closers, func(context.Context) error { return publisher.Close() })

	shutdownTracing, err := platformotel.Setup(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return s, fmt.Errorf("setup tracing: %w", err)
	}
	s.closers = append(s.closers, shutdownTracing)

	var tracer core.Tracer
	switch {
	case cfg.Telemetry.OTLPEndpoint != "":
		tracer = platformotel.NewTracer(nil)
	case cfg.Telemetry.TraceFile != "":
		f, err := os.OpenFile(cfg.Telemetry.TraceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return s, fmt.Errorf("open trace file: %w", err)
		}
		s.closers = append(s.closers, func(context.Context) error { return f.Close() })
		tracer = core.NewJSONTracer(f)
	}

	prom := metrics.NewRecorder(store.Len)
	opts := []core.Option{
		core.WithPersister(backend),
		core.WithPublisher(publisher),
		core.WithArchive(archive),
		core.WithLogger(logger),
		core.WithMetrics(core.MultiMetricsRecorder{prom, core.NewExpvarMetricsRecorder("")}),
		core.WithTracer(tracer),
	}
	if len(cfg.ExtendedCommands) > 0 {
		opts = append(opts, core.WithExtendedCommands(cfg.ExtendedCommands...))
	}
	s.dispatcher = core.NewDispatcher(store, opts...)

	api := protocol.NewHandler(s.dispatcher, logger)
	api.Metrics = prom.Handler()
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", api)
	s.handler = mux
	return s, nil
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (s *server) run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		s.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown: %w", err)
	}
	if err := s.close(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// close releases collaborators in reverse order of opening.
func (s *server) close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
