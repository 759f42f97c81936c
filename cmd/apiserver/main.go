// Command apiserver exposes the HTTP surface from §6: document upload,
// listing, retrieval, download, and the query endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ragforge/internal/config"
	"ragforge/internal/httpapi"
	"ragforge/internal/observability"
	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/analytics"
	"ragforge/internal/rag/authn"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/broker"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/obs"
	"ragforge/internal/rag/service"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("apiserver")
	}
}

func run() error {
	cfg, err := config.LoadFromEnv(os.Getenv("RAGFORGE_CONFIG"), "")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.Log.Path, cfg.Log.Level)

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

	producer := broker.NewProducer(cfg.Broker.URL, cfg.Broker.Topic)
	defer producer.Close()

	authenticator, err := authn.New(baseCtx, cfg.Auth)
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewServer(svc, producer, authenticator)}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("apiserver: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("apiserver: listen failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("apiserver: shutdown error")
	} else {
		log.Info().Msg("apiserver: stopped")
	}
	return nil
}
