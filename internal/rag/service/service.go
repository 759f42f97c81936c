// Package service wires ModelHosts, persistence, and blob storage into the
// ingest and retrieval pipelines, and owns the cross-cutting logger/metrics/
// clock dependencies both share.
package service

import (
	"context"
	"sync/atomic"

	"ragforge/internal/config"
	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/analytics"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/chunker"
	"ragforge/internal/rag/ingest"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/retrieve"
	"ragforge/internal/ragdomain"
)

// Service bundles the ingest and retrieval pipelines and the backends they
// share, assembled once at process startup.
type Service struct {
	cfg    config.Config
	stores databases.Manager
	blobs  blobstore.BlobStore
	hosts  *modelhost.ModelHosts

	log     Logger
	metrics Metrics
	clock   Clock

	ingestPipeline   *ingest.Pipeline
	retrievePipeline *retrieve.Pipeline

	analytics analytics.AuditSink

	closed atomic.Bool
}

// New constructs a Service from already-resolved backends.
func New(cfg config.Config, stores databases.Manager, blobs blobstore.BlobStore, hosts *modelhost.ModelHosts, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		stores:  stores,
		blobs:   blobs,
		hosts:   hosts,
		log:     defaultLogger{},
		metrics: NoopMetrics{},
		clock:   SystemClock{},
	}
	for _, o := range opts {
		o(s)
	}

	s.ingestPipeline = ingest.New(stores, blobs, chunker.RecursiveChunker{}, hosts, cfg.Chunk.Size, cfg.Chunk.Overlap)
	s.ingestPipeline.Logger = ingestLoggerAdapter{s.log}
	s.ingestPipeline.Metrics = s.metrics
	s.ingestPipeline.Clock = s.clock

	s.retrievePipeline = retrieve.New(stores, hosts, cfg.Retrieval.KRecall, cfg.Retrieval.KFinal)
	s.retrievePipeline.Logger = retrieveLoggerAdapter{s.log}
	if cfg.Cache.RedisAddr != "" {
		if cache, err := retrieve.NewRedisAnswerCache(cfg.Cache.RedisAddr); err == nil {
			s.retrievePipeline.Cache = cache
		} else {
			s.log.Error("answer cache disabled: redis unreachable", map[string]any{"error": err.Error()})
		}
	}

	return s
}

// Ingest drives IngestPipeline (C7) for one document to completion.
func (s *Service) Ingest(ctx context.Context, documentID int64) error {
	if s.closed.Load() {
		return ErrShuttingDown
	}
	err := s.ingestPipeline.Run(ctx, documentID)
	s.recordIngest(ctx, documentID, err)
	return err
}

// RetrieveChunks runs RetrievalPipeline (C8) steps 1-4 only: no generation.
func (s *Service) RetrieveChunks(ctx context.Context, query string, topKFinal int) ([]ragdomain.SupportingChunk, error) {
	if s.closed.Load() {
		return nil, ErrShuttingDown
	}
	return s.retrievePipeline.RetrieveChunks(ctx, query, topKFinal)
}

// Ask runs the full RetrievalPipeline (C8), including generation.
func (s *Service) Ask(ctx context.Context, query string) (ragdomain.QueryResult, error) {
	if s.closed.Load() {
		return ragdomain.QueryResult{}, ErrShuttingDown
	}
	opts := ragdomain.GenerateOptions{
		MaxNewTokens: s.cfg.Generator.MaxNewTokens,
		Temperature:  s.cfg.Generator.Temperature,
		TopP:         s.cfg.Generator.TopP,
		Stop:         s.cfg.Generator.Stop,
	}
	start := s.clock.Now()
	result, err := s.retrievePipeline.Answer(ctx, query, opts)
	if err == nil && s.analytics != nil {
		latency := s.clock.Now().Sub(start).Milliseconds()
		if aerr := s.analytics.RecordQuery(ctx, query, len(result.SupportingChunks), latency); aerr != nil {
			s.log.Error("analytics: record query failed", map[string]any{"error": aerr.Error()})
		}
	}
	return result, err
}

// recordIngest best-effort appends the terminal ingest outcome to the
// analytics sink, when one is configured.
func (s *Service) recordIngest(ctx context.Context, documentID int64, ingestErr error) {
	if s.analytics == nil {
		return
	}
	status := "ready"
	if ingestErr != nil {
		status = "error"
	}
	doc, err := s.stores.Chunks.GetDocument(context.WithoutCancel(ctx), documentID)
	numberOfChunks := 0
	if err == nil && doc.NumberOfChunks != nil {
		numberOfChunks = *doc.NumberOfChunks
	}
	if aerr := s.analytics.RecordIngest(context.WithoutCancel(ctx), documentID, status, numberOfChunks); aerr != nil {
		s.log.Error("analytics: record ingest failed", map[string]any{"error": aerr.Error()})
	}
}

// Documents exposes the ChunkStore's document-metadata surface directly to
// the HTTP layer; it carries no pipeline logic of its own.
func (s *Service) Documents() databases.ChunkStore { return s.stores.Chunks }

// Blobs exposes the BlobStore directly to the HTTP layer for upload/download.
func (s *Service) Blobs() blobstore.BlobStore { return s.blobs }

// Close stops the Service from accepting further work and releases the
// underlying store connections. Safe to call once during shutdown.
func (s *Service) Close() {
	s.closed.Store(true)
	s.stores.Close()
	if s.analytics != nil {
		_ = s.analytics.Close()
	}
}

// defaultLogger is a minimal internal logger that drops logs.
type defaultLogger struct{}

func (defaultLogger) Info(string, map[string]any)  {}
func (defaultLogger) Error(string, map[string]any) {}
func (defaultLogger) Debug(string, map[string]any) {}

// ingestLoggerAdapter narrows Logger to the Info/Error surface ingest.Pipeline needs.
type ingestLoggerAdapter struct{ l Logger }

func (a ingestLoggerAdapter) Info(msg string, fields map[string]any)  { a.l.Info(msg, fields) }
func (a ingestLoggerAdapter) Error(msg string, fields map[string]any) { a.l.Error(msg, fields) }

// retrieveLoggerAdapter narrows Logger to the Info surface retrieve.Pipeline needs.
type retrieveLoggerAdapter struct{ l Logger }

func (a retrieveLoggerAdapter) Info(msg string, fields map[string]any) { a.l.Info(msg, fields) }
