// Package taskrunner implements TaskRunner (C9): consumes IngestJob
// messages from a broker with a bounded worker pool and drives each one
// through the Service's IngestPipeline, making delivery idempotent via the
// document state machine rather than via message dedupe.
package taskrunner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"ragforge/internal/ragdomain"
)

// Ingester is the narrow surface TaskRunner drives; satisfied by
// internal/rag/service.Service.
type Ingester interface {
	Ingest(ctx context.Context, documentID int64) error
}

// Logger is the structured-logging surface TaskRunner writes through.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// Config controls broker connectivity and worker concurrency.
type Config struct {
	Brokers     []string
	GroupID     string
	Topic       string
	WorkerCount int
	MaxAttempts int
}

// Runner consumes IngestJob messages and drives Ingester.Ingest for each,
// per §4.9: at-least-once delivery, per-job isolation, bounded concurrency.
type Runner struct {
	cfg      Config
	reader   *kafka.Reader
	ingester Ingester
	log      Logger
}

// New constructs a Runner over the given broker configuration.
func New(cfg Config, ingester Ingester, log Logger) *Runner {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if log == nil {
		log = noopLogger{}
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Runner{cfg: cfg, reader: reader, ingester: ingester, log: log}
}

// Run blocks, fetching jobs and fanning them out to cfg.WorkerCount workers,
// until ctx is cancelled. Every worker commits its message only once the
// document has reached a terminal state or a retryable failure has
// exhausted its attempt budget.
func (r *Runner) Run(ctx context.Context) error {
	defer r.reader.Close()

	jobs := make(chan kafka.Message, r.cfg.WorkerCount*4)
	done := make(chan struct{})

	for i := 0; i < r.cfg.WorkerCount; i++ {
		go r.worker(ctx, jobs, done)
	}

fetchLoop:
	for {
		if ctx.Err() != nil {
			break fetchLoop
		}
		m, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break fetchLoop
			}
			r.log.Error("taskrunner: fetch failed", map[string]any{"error": err.Error()})
			timer := time.NewTimer(500 * time.Millisecond)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				break fetchLoop
			}
			continue fetchLoop
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			break fetchLoop
		}
	}
	close(jobs)
	for i := 0; i < r.cfg.WorkerCount; i++ {
		<-done
	}
	return ctx.Err()
}

func (r *Runner) worker(ctx context.Context, jobs <-chan kafka.Message, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for msg := range jobs {
		r.handle(ctx, msg)
	}
}

// handle decodes one IngestJob and drives it to a terminal state, retrying
// a retryable failure up to cfg.MaxAttempts before committing the offset
// regardless of outcome (a terminal error is still a terminal state).
func (r *Runner) handle(ctx context.Context, msg kafka.Message) {
	var job ragdomain.IngestJob
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		r.log.Error("taskrunner: malformed ingest job", map[string]any{"error": err.Error()})
		r.commit(ctx, msg)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := r.ingester.Ingest(ctx, job.DocumentID)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if !ragdomain.Retryable(err) || attempt == r.cfg.MaxAttempts || ctx.Err() != nil {
			break
		}
		backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
		r.log.Info("taskrunner: retrying ingest job", map[string]any{
			"document_id": job.DocumentID, "attempt": attempt, "backoff_ms": backoff.Milliseconds(),
		})
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}
	if lastErr != nil {
		r.log.Error("taskrunner: ingest job terminated in error", map[string]any{
			"document_id": job.DocumentID, "error": lastErr.Error(),
		})
	}
	r.commit(ctx, msg)
}

func (r *Runner) commit(ctx context.Context, msg kafka.Message) {
	if err := r.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		r.log.Error("taskrunner: commit failed", map[string]any{"error": err.Error()})
	}
}
