// Package analytics records ingest and query events to an append-only
// ClickHouse table for offline analysis, separate from the request-path
// metrics the obs package exports.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"ragforge/internal/config"
)

// AuditSink records ingest and query events. A nil AuditSink disables
// analytics entirely; callers should always guard with a nil check.
type AuditSink interface {
	RecordIngest(ctx context.Context, documentID int64, status string, numberOfChunks int) error
	RecordQuery(ctx context.Context, query string, numberOfSupportingChunks int, latencyMs int64) error
	Close() error
}

// ClickHouseSink is a ClickHouse-backed AuditSink.
type ClickHouseSink struct {
	conn    clickhouse.Conn
	table   string
	timeout time.Duration
}

// NewClickHouseSink opens a connection against cfg.DSN. An empty DSN is not
// an error: it returns (nil, nil) so analytics stays opt-in.
func NewClickHouseSink(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	table := strings.TrimSpace(cfg.EventsTable)
	if table == "" {
		table = "rag_events"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ClickHouseSink{conn: conn, table: table, timeout: timeout}, nil
}

// RecordIngest appends one row describing the terminal state of an ingest run.
func (s *ClickHouseSink) RecordIngest(ctx context.Context, documentID int64, status string, numberOfChunks int) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (kind, document_id, status, number_of_chunks, occurred_at) VALUES (?, ?, ?, ?, now())", s.table),
		"ingest", documentID, status, numberOfChunks,
	)
}

// RecordQuery appends one row describing an Ask/RetrieveChunks call.
func (s *ClickHouseSink) RecordQuery(ctx context.Context, query string, numberOfSupportingChunks int, latencyMs int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (kind, query_text, number_of_chunks, latency_ms, occurred_at) VALUES (?, ?, ?, ?, now())", s.table),
		"query", query, numberOfSupportingChunks, latencyMs,
	)
}

// Close releases the underlying connection.
func (s *ClickHouseSink) Close() error { return s.conn.Close() }
