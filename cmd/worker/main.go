// Command worker runs the TaskRunner (C9): it consumes IngestJob messages
// from the broker and drives each document through the IngestPipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ragforge/internal/config"
	"ragforge/internal/observability"
	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/analytics"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/obs"
	"ragforge/internal/rag/parser"
	"ragforge/internal/rag/service"
	"ragforge/internal/rag/taskrunner"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("worker")
	}
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func run() error {
	cfg, err := config.LoadFromEnv(os.Getenv("RAGFORGE_CONFIG"), "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Log.Path, cfg.Log.Level)

	parser.Configure(cfg.Parser.WhisperModelPath)

	baseCtx := context.Background()

	if cfg.Obs.OTLP != "" {
		shutdownOTel, err := observability.InitOTel(baseCtx, cfg.Obs)
		if err != nil {
			return fmt.Errorf("init otel: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownOTel(ctx)
		}()
		observability.EnableOTelLogging(cfg.Obs.ServiceName)
	}

	logger := &obs.JSONLogger{}
	metrics := obs.NewOtelMetrics()

	mgr, err := databases.NewManager(baseCtx, cfg)
	if err != nil {
		return fmt.Errorf("init databases: %w", err)
	}
	defer mgr.Close()

	blobs, err := blobstore.New(baseCtx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}

	hosts, err := modelhost.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init model hosts: %w", err)
	}

	auditSink, err := analytics.NewClickHouseSink(baseCtx, cfg.Analytics)
	if err != nil {
		return fmt.Errorf("init analytics sink: %w", err)
	}
	svcOpts := []service.Option{service.WithLogger(logger), service.WithMetrics(metrics)}
	if auditSink != nil {
		svcOpts = append(svcOpts, service.WithAnalytics(auditSink))
	}

	svc := service.New(cfg, mgr, blobs, hosts, svcOpts...)
	defer svc.Close()

	runner := taskrunner.New(taskrunner.Config{
		Brokers:     []string{cfg.Broker.URL},
		GroupID:     cfg.Broker.Group,
		Topic:       cfg.Broker.Topic,
		WorkerCount: getenvInt("RAGFORGE_WORKER_COUNT", 4),
	}, svc, logger)

	ctx, cancel := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("topic", cfg.Broker.Topic).Str("group", cfg.Broker.Group).Msg("worker: starting task runner")
	if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("task runner terminated: %w", err)
	}
	log.Info().Msg("worker: stopped")
	return nil
}
