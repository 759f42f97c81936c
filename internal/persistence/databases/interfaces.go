package databases

import (
	"context"

	"ragforge/internal/ragdomain"
)

// ChunkStore is the relational CRUD surface for DocumentRecord and
// ChunkRecord described in the data model (C2).
type ChunkStore interface {
	CreateDocument(ctx context.Context, meta ragdomain.DocumentRecord) (ragdomain.DocumentRecord, error)
	GetDocument(ctx context.Context, id int64) (ragdomain.DocumentRecord, error)
	ListDocuments(ctx context.Context, limit, offset int, order ragdomain.ListOrder) ([]ragdomain.DocumentRecord, error)
	UpdateDocumentStatus(ctx context.Context, id int64, upd ragdomain.DocumentUpdate) error
	DeleteDocument(ctx context.Context, id int64) error

	BulkCreateChunks(ctx context.Context, documentID int64, chunks []ragdomain.NewChunk) ([]ragdomain.ChunkRecord, error)
	GetChunksByIDs(ctx context.Context, ids []int64) ([]ragdomain.ChunkRecord, error)
	DeleteChunksByDocument(ctx context.Context, documentID int64) (int, error)

	Close()
}

// ScoredChunkRef is a single nearest-neighbor hit from the VectorIndex: the
// chunk id plus the similarity score and the metadata it was upserted with.
type ScoredChunkRef struct {
	ChunkID  int64
	Score    float64
	Metadata map[string]string
}

// VectorIndex is the narrow adapter over an external dense-vector index
// described in C3. Ids are chunk ids; vectors are unit-norm and of fixed
// dimension D per collection.
type VectorIndex interface {
	Upsert(ctx context.Context, ids []int64, vectors [][]float32, metadatas []map[string]string) error
	Query(ctx context.Context, vector []float32, k int) ([]ScoredChunkRef, error)
	DeleteByDocument(ctx context.Context, documentID int64) error
	Dimension() int
	Close()
}

// Manager holds the concrete backends resolved from configuration.
type Manager struct {
	Chunks  ChunkStore
	Vectors VectorIndex
}

// Close releases both backends. Safe to call with either field nil.
func (m Manager) Close() {
	if m.Chunks != nil {
		m.Chunks.Close()
	}
	if m.Vectors != nil {
		m.Vectors.Close()
	}
}
