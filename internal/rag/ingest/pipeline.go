// Package ingest implements IngestPipeline (C7): drives one document from
// uploaded to ready or error through load, claim, purge, fetch, parse,
// chunk, persist, embed, upsert, and finalize.
package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/chunker"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/parser"
	"ragforge/internal/ragdomain"
)

// Logger is the structured-logging surface the pipeline writes through.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// Metrics is the stage-timing surface the pipeline emits through.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// Clock abstracts time.Now so tests can control "now".
type Clock interface {
	Now() time.Time
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)                {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// EmbedBatchSize bounds how many chunk texts are embedded per ModelHost
// call, per §4.7 step 8 ("batches sized to the embedder's capacity").
const EmbedBatchSize = 32

// ErrorMessageMaxLen bounds the truncated error_message stored on the
// DocumentRecord per §4.7's failure contract.
const ErrorMessageMaxLen = 500

// Pipeline drives IngestPipeline (C7) for one document at a time. A single
// Pipeline is safe for concurrent use across distinct documents; the
// ModelHost handles it calls through serialize their own concurrent use.
type Pipeline struct {
	Stores  databases.Manager
	Blobs   blobstore.BlobStore
	Chunker chunker.Chunker
	Hosts   *modelhost.ModelHosts

	ChunkSize    int
	ChunkOverlap int

	Logger  Logger
	Metrics Metrics
	Clock   Clock
}

// New constructs a Pipeline, filling in no-op observability defaults.
func New(stores databases.Manager, blobs blobstore.BlobStore, ck chunker.Chunker, hosts *modelhost.ModelHosts, chunkSize, chunkOverlap int) *Pipeline {
	return &Pipeline{
		Stores:       stores,
		Blobs:        blobs,
		Chunker:      ck,
		Hosts:        hosts,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Logger:       noopLogger{},
		Metrics:      noopMetrics{},
		Clock:        systemClock{},
	}
}

// Run drives one document through the state machine. It returns nil if the
// document was absent (step 1, no state change) or already ready/processing
// (idempotent no-op / refused claim).
func (p *Pipeline) Run(ctx context.Context, documentID int64) error {
	start := p.Clock.Now()

	// Step 1: load.
	doc, err := p.Stores.Chunks.GetDocument(ctx, documentID)
	if err != nil {
		if ragdomain.KindOf(err) == ragdomain.KindNotFound {
			return nil
		}
		return err
	}

	// Step 2: mark processing (claim).
	reentering := doc.Status == ragdomain.StatusError
	switch doc.Status {
	case ragdomain.StatusProcessing:
		p.Logger.Info("ingest: refused claim, already processing", map[string]any{"document_id": documentID})
		return nil
	case ragdomain.StatusReady:
		p.Logger.Info("ingest: refused claim, already ready", map[string]any{"document_id": documentID})
		return nil
	}
	processing := ragdomain.StatusProcessing
	if err := p.Stores.Chunks.UpdateDocumentStatus(ctx, documentID, ragdomain.DocumentUpdate{Status: &processing}); err != nil {
		return err
	}

	if err := p.process(ctx, documentID, doc, reentering); err != nil {
		p.fail(ctx, documentID, err)
		p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(start))), map[string]string{"stage": "total", "outcome": "error"})
		return err
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(start))), map[string]string{"stage": "total", "outcome": "ready"})
	return nil
}

func (p *Pipeline) process(ctx context.Context, documentID int64, doc ragdomain.DocumentRecord, reentering bool) error {
	// Step 3: purge prior, only on re-entry from error. The chunk rows and
	// the vector points live in independent stores, so the two deletes run
	// concurrently.
	if reentering {
		t0 := p.Clock.Now()
		var g errgroup.Group
		g.Go(func() error {
			_, err := p.Stores.Chunks.DeleteChunksByDocument(ctx, documentID)
			return err
		})
		g.Go(func() error {
			return p.Stores.Vectors.DeleteByDocument(ctx, documentID)
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "purge"})
	}

	// Step 4: fetch bytes.
	t0 := p.Clock.Now()
	data, err := p.Blobs.Fetch(ctx, doc.FilePath)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "fetch"})

	// Step 5: parse.
	t0 = p.Clock.Now()
	text, err := parser.Parse(data, doc.ContentType, doc.OriginalFilename)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if text == "" {
		return fmt.Errorf("parse: %w", ragdomain.New(ragdomain.KindEmptyContent, "Parse", "document produced no text", nil))
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "parse"})

	// Step 6: chunk.
	t0 = p.Clock.Now()
	chunks := p.Chunker.Chunk(text, p.ChunkSize, p.ChunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("chunk: %w", ragdomain.New(ragdomain.KindEmptyContent, "Chunk", "document produced no chunks", nil))
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "chunk"})

	// Step 7: persist chunks.
	t0 = p.Clock.Now()
	newChunks := make([]ragdomain.NewChunk, len(chunks))
	for i, c := range chunks {
		newChunks[i] = ragdomain.NewChunk{ChunkText: c.Text, SequenceInDocument: c.Index}
	}
	records, err := p.Stores.Chunks.BulkCreateChunks(ctx, documentID, newChunks)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "persist"})

	// Step 8: embed in batches.
	t0 = p.Clock.Now()
	vectors := make([][]float32, len(records))
	for start := 0; start < len(records); start += EmbedBatchSize {
		end := start + EmbedBatchSize
		if end > len(records) {
			end = len(records)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = records[i].ChunkText
		}
		batch, err := p.Hosts.Embedder.Embed(ctx, texts, ragdomain.EmbedDocument)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		copy(vectors[start:end], batch)
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "embed"})

	// Step 9: upsert vectors, ids = chunk.id, metadata carries the linking
	// fields required by the persistent state layout.
	t0 = p.Clock.Now()
	ids := make([]int64, len(records))
	metas := make([]map[string]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
		metas[i] = map[string]string{
			databases.MetaSourceDocumentID: fmt.Sprintf("%d", r.SourceDocumentID),
			databases.MetaSequenceInDoc:    fmt.Sprintf("%d", r.SequenceInDocument),
		}
	}
	if err := p.Stores.Vectors.Upsert(ctx, ids, vectors, metas); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	p.Metrics.ObserveHistogram("ingestion_stage_ms", float64(ms(p.Clock.Now().Sub(t0))), map[string]string{"stage": "upsert"})

	// Step 10: finalize.
	now := p.Clock.Now()
	n := len(records)
	ready := ragdomain.StatusReady
	empty := ""
	return p.Stores.Chunks.UpdateDocumentStatus(ctx, documentID, ragdomain.DocumentUpdate{
		Status:         &ready,
		ProcessedAt:    &now,
		NumberOfChunks: &n,
		ErrorMessage:   &empty,
	})
}

// fail moves the document to error with a truncated message naming the
// failing step, using a fresh context so a cancelled caller context doesn't
// block the write (best-effort, per §4.9's "fresh ChunkStore session").
func (p *Pipeline) fail(ctx context.Context, documentID int64, cause error) {
	msg := ragdomain.Truncate(cause.Error(), ErrorMessageMaxLen)
	if ctx.Err() != nil || ragdomain.KindOf(cause) == ragdomain.KindCancelled {
		msg = "cancelled"
	}
	p.Logger.Error("ingest: document failed", map[string]any{"document_id": documentID, "error": msg})
	errored := ragdomain.StatusError
	writeCtx := context.WithoutCancel(ctx)
	if err := p.Stores.Chunks.UpdateDocumentStatus(writeCtx, documentID, ragdomain.DocumentUpdate{Status: &errored, ErrorMessage: &msg}); err != nil {
		p.Logger.Error("ingest: failed to record error status", map[string]any{"document_id": documentID, "error": err.Error()})
	}
}

func ms(d time.Duration) int64 { return d.Milliseconds() }
