// Package main implements the road telemetry service entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/o-litvinchuk-dev/lab3/internal/api"
	"github.com/o-litvinchuk-dev/lab3/internal/audit"
	"github.com/o-litvinchuk-dev/lab3/internal/config"
	"github.com/o-litvinchuk-dev/lab3/internal/ingest"
	"github.com/o-litvinchuk-dev/lab3/internal/logging"
	"github.com/o-litvinchuk-dev/lab3/internal/observability"
	"github.com/o-litvinchuk-dev/lab3/internal/query"
	"github.com/o-litvinchuk-dev/lab3/internal/storage"
	"github.com/o-litvinchuk-dev/lab3/internal/telemetry"
)

// Version is reported at startup.
const Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "roadwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Step 1: Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, logCloser := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info(ctx, "starting roadwatch", logging.String("version", Version))

	// Step 2: Tracing
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	// Step 3: Metrics
	var collector *observability.Collector
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector, err = observability.NewCollector(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		metricsHandler = collector.Handler()
	}

	// Step 4: Storage
	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	log.Info(ctx, "storage ready", logging.String("driver", cfg.Storage.Driver))

	// Step 5: Subscriber registry
	hubOpts := telemetry.Options{
		QueueSize:    cfg.Subscriptions.QueueSize,
		WriteTimeout: cfg.Subscriptions.WriteTimeout,
		Logger:       log,
	}
	if collector != nil {
		hubOpts.Observer = collector
	}
	hub := telemetry.NewHub(hubOpts)

	// Step 6: Ingestion and query services
	ingestService := ingest.NewService(store, hub, log)
	if collector != nil {
		ingestService.SetMetrics(collector)
	}
	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		auditLogger, err = audit.NewLogger(cfg.Audit)
		if err != nil {
			return fmt.Errorf("init audit logger: %w", err)
		}
		defer auditLogger.Close()
		ingestService.SetAuditLogger(auditLogger)
		log.Info(ctx, "audit trail enabled", logging.String("file", auditLogger.GetFilePath()))
	}
	queryService := query.NewService(store, log)

	// Step 7: API server
	server := api.NewServer(ingestService, queryService, hub, store, api.Options{
		Server:         cfg.Server,
		OriginPatterns: cfg.Subscriptions.OriginPatterns,
		Metrics:        metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	if auditLogger != nil {
		hangup := make(chan os.Signal, 1)
		signal.Notify(hangup, syscall.SIGHUP)
		defer signal.Stop(hangup)
		g.Go(func() error {
			rotateOnSignal(gctx, hangup, auditLogger, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")

		// Shutdown does not track upgraded connections; close them first.
		hub.Stop()
		return server.Stop(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info(context.Background(), "roadwatch stopped")
	return nil
}

// rotator is implemented by *audit.Logger.
type rotator interface {
	Rotate() error
}

// rotateOnSignal rotates r each time sig fires, until ctx ends.
func rotateOnSignal(ctx context.Context, sig <-chan os.Signal, r rotator, log logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := r.Rotate(); err != nil {
				log.Warn(ctx, "audit rotation failed", logging.Err(err))
				continue
			}
			log.Info(ctx, "audit file rotated")
		}
	}
}
