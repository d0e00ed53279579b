package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/storm-claims-risk/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-claims-risk/internal/adapter/kafka"
	"github.com/couchcryptid/storm-claims-risk/internal/adapter/sheldus"
	"github.com/couchcryptid/storm-claims-risk/internal/adapter/workbook"
	"github.com/couchcryptid/storm-claims-risk/internal/config"
	"github.com/couchcryptid/storm-claims-risk/internal/observability"
	"github.com/couchcryptid/storm-claims-risk/internal/pipeline"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	model, err := cfg.Model()
	if err != nil {
		logger.Error("invalid model configuration", "error", err)
		os.Exit(1)
	}

	var extractor pipeline.Extractor
	switch cfg.Source {
	case config.SourceKafka:
		extractor = kafkaadapter.NewReader(cfg, logger)
		logger.Info("reading claims from kafka", "topic", cfg.KafkaSourceTopic, "brokers", cfg.KafkaBrokers)
	default:
		extractor = sheldus.NewSource(cfg.ClaimsPath, cfg.ClaimsSheet, logger)
		logger.Info("reading claims from file", "path", cfg.ClaimsPath)
	}

	var (
		sinks   []pipeline.Sink
		closers []io.Closer
	)
	if cfg.KafkaSinkEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
		closers = append(closers, writer)
		logger.Info("kafka report sink enabled", "topic", cfg.KafkaSinkTopic)
	}
	if cfg.WorkbookPath != "" {
		sinks = append(sinks, pipeline.Sink{Name: "workbook", Loader: workbook.NewWriter(cfg.WorkbookPath, logger)})
		logger.Info("workbook report sink enabled", "path", cfg.WorkbookPath)
	}
	if len(sinks) == 0 {
		logger.Info("no report sinks configured, reports served over http only")
	}
	loader := pipeline.NewMultiLoader(metrics, sinks...)

	analyzer := pipeline.NewAnalyzer(pipeline.Settings{
		Model:        model,
		Filter:       cfg.ClaimFilter(),
		Metric:       cfg.LossMetric,
		ExcludeYears: cfg.ExcludeYears,
		SplitYear:    cfg.EpochSplitYear,
		TopEvents:    cfg.TopEvents,
		MaxParallel:  3,
	}, logger, metrics)

	p := pipeline.New(extractor, analyzer, loader, logger, metrics, pipeline.Options{Interval: cfg.RunInterval})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the pipeline. A one-shot run (RUN_INTERVAL=0) shuts the service
	// down once its report is published.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
		if cfg.RunInterval == 0 {
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
