package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"guild-metrics/internal/config"
	"guild-metrics/internal/endpoints"
	"guild-metrics/internal/ingest"
	"guild-metrics/internal/observability"
	"guild-metrics/internal/platform"
	"guild-metrics/internal/query"
	"guild-metrics/internal/report"
	"guild-metrics/internal/repository"
	"guild-metrics/internal/router"
	"guild-metrics/internal/sampler"
	"guild-metrics/internal/util"
)

func LoggerInitialize(cfg config.LogConfig) (*util.MetricsLogger, error) {
	var metricsLogger util.MetricsLogger

	if err := metricsLogger.Init(util.LoggerOptions{
		Dir:      cfg.Dir,
		FileName: cfg.File,
		Level:    util.ParseLevel(cfg.Level),
		Console:  cfg.Console,
	}); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		return nil, err
	}

	metricsLogger.LogEvent(util.LOG_LEVEL_INFO, "Service started")

	currentTime := time.Now().Format(time.RFC3339)

	fmt.Fprintf(os.Stderr, "\n%s: GuildMetrics service started \n", currentTime)

	return &metricsLogger, nil
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error while loading configuration:", err)
		os.Exit(1)
	}

	logger, err := LoggerInitialize(cfg.Log)
	if err != nil {
		fmt.Println("Error while initializing the logger..", err)
		os.Exit(1)
	}
	defer logger.DeInit()

	if err := run(cfg, logger); err != nil {
		logger.LogEvent(util.LOG_LEVEL_ERROR, "Service stopped with error:", err)
		logger.DeInit()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *util.MetricsLogger) error {
	if cfg.Store.Driver == repository.DriverSQLite3 || cfg.Store.Driver == repository.DriverSQLite {
		if err := util.CheckAndCreateLogFolder(filepath.Dir(cfg.Store.DSN)); err != nil {
			return err
		}
	}

	metricStore, err := repository.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	if err := metricStore.Init(); err != nil {
		return fmt.Errorf("failed to initialize metric store: %w", err)
	}
	defer metricStore.Close()
	logger.LogEvent(util.LOG_LEVEL_INFO, "Metric store ready, driver", cfg.Store.Driver)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	connector := platform.NewHTTPConnector(cfg.Platform.URL, cfg.Platform.Timeout)
	memberSampler := sampler.New(connector, metricStore, cfg.SamplePeriod,
		sampler.WithMetrics(metrics), sampler.WithLogger(logger))
	ingestor := ingest.New(metricStore, ingest.WithMetrics(metrics), ingest.WithLogger(logger))
	engine := query.NewEngine(metricStore, query.WithMetrics(metrics), query.WithLogger(logger))
	builder := report.NewBuilder(cfg.DefaultLocale)

	charts := &endpoints.Charts{}
	charts.Init(report.NewService(engine, builder, report.NewTextRenderer(), metrics), builder, logger)
	events := &endpoints.Events{}
	events.Init(memberSampler, ingestor, logger)

	appRouter := router.NewRouter(router.Handlers{
		Charts:   charts,
		Events:   events,
		Metrics:  metrics,
		Gatherer: registry,
	}, logger)
	server := router.NewServer(cfg.ListenAddr, appRouter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memberSampler.Start()
	memberSampler.OnReady(cfg.Guilds)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return router.Run(gctx, server, cfg.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		memberSampler.Stop()
		return nil
	})
	return g.Wait()
}
