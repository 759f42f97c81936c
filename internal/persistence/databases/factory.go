package databases

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragforge/internal/config"
)

// NewManager constructs the ChunkStore and VectorIndex backends named by
// cfg.Store.Backend and cfg.Vector.Backend. "memory" backends are for tests
// and local development without Postgres/Qdrant running.
func NewManager(ctx context.Context, cfg config.Config) (Manager, error) {
	var m Manager

	switch cfg.Store.Backend {
	case "", "memory":
		m.Chunks = NewMemoryChunkStore()
	case "postgres", "pg":
		dsn := firstNonEmpty(cfg.Store.URL)
		if dsn == "" {
			return Manager{}, fmt.Errorf("store backend postgres requires store.url")
		}
		pool, err := newPgPool(ctx, dsn)
		if err != nil {
			return Manager{}, fmt.Errorf("connect postgres (store): %w", err)
		}
		chunks, err := NewPostgresChunkStore(ctx, pool)
		if err != nil {
			pool.Close()
			return Manager{}, fmt.Errorf("init chunk store: %w", err)
		}
		m.Chunks = chunks
	default:
		return Manager{}, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}

	switch cfg.Vector.Backend {
	case "", "memory":
		m.Vectors = NewMemoryVector(cfg.Embedding.Dimension)
	case "qdrant":
		if cfg.Vector.Endpoint == "" {
			m.Chunks.Close()
			return Manager{}, fmt.Errorf("vector backend qdrant requires vector_index.endpoint")
		}
		vec, err := NewQdrantVector(cfg.Vector.Endpoint, cfg.Vector.Collection, cfg.Embedding.Dimension, cfg.Vector.Metric)
		if err != nil {
			m.Chunks.Close()
			return Manager{}, fmt.Errorf("connect qdrant: %w", err)
		}
		m.Vectors = vec
	default:
		m.Chunks.Close()
		return Manager{}, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}

	return m, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func newPgPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConns = 8
	pcfg.MinConns = 0
	pcfg.MaxConnLifetime = time.Hour
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
