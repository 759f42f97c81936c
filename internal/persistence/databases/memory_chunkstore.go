package databases

import (
	"context"
	"sort"
	"sync"

	"ragforge/internal/ragdomain"
)

// memoryChunkStore is an in-process ChunkStore used for tests and local
// development without Postgres. It enforces unique file_path, cascade
// delete and atomic bulk insert. Unlike the Postgres backend it does not
// check that a chunk's document exists, and it rejects duplicate sequence
// numbers only within a single insert batch.
type memoryChunkStore struct {
	mu        sync.Mutex
	nextDocID int64
	nextChkID int64
	docs      map[int64]ragdomain.DocumentRecord
	chunks    map[int64]ragdomain.ChunkRecord
}

func NewMemoryChunkStore() ChunkStore {
	return &memoryChunkStore{
		docs:   make(map[int64]ragdomain.DocumentRecord),
		chunks: make(map[int64]ragdomain.ChunkRecord),
	}
}

func (m *memoryChunkStore) CreateDocument(_ context.Context, meta ragdomain.DocumentRecord) (ragdomain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.FilePath == meta.FilePath {
			return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindAlreadyExists, "CreateDocument", "duplicate file_path", nil)
		}
	}
	m.nextDocID++
	meta.ID = m.nextDocID
	if meta.Status == "" {
		meta.Status = ragdomain.StatusUploaded
	}
	m.docs[meta.ID] = meta
	return meta, nil
}

func (m *memoryChunkStore) GetDocument(_ context.Context, id int64) (ragdomain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindNotFound, "GetDocument", "document not found", nil)
	}
	return d, nil
}

func (m *memoryChunkStore) ListDocuments(_ context.Context, limit, offset int, order ragdomain.ListOrder) ([]ragdomain.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ragdomain.DocumentRecord, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if order == ragdomain.OrderCreatedAtAsc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryChunkStore) UpdateDocumentStatus(_ context.Context, id int64, upd ragdomain.DocumentUpdate) error {
	if upd.IsEmpty() {
		return ragdomain.New(ragdomain.KindInvalidQuery, "UpdateDocumentStatus", "empty update", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ragdomain.New(ragdomain.KindNotFound, "UpdateDocumentStatus", "document not found", nil)
	}
	if upd.Status != nil {
		d.Status = *upd.Status
	}
	if upd.ProcessedAt != nil {
		d.ProcessedAt = upd.ProcessedAt
	}
	if upd.NumberOfChunks != nil {
		d.NumberOfChunks = upd.NumberOfChunks
	}
	if upd.ErrorMessage != nil {
		d.ErrorMessage = *upd.ErrorMessage
	}
	m.docs[id] = d
	return nil
}

func (m *memoryChunkStore) DeleteDocument(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ragdomain.New(ragdomain.KindNotFound, "DeleteDocument", "document not found", nil)
	}
	delete(m.docs, id)
	for cid, c := range m.chunks {
		if c.SourceDocumentID == id {
			delete(m.chunks, cid)
		}
	}
	return nil
}

func (m *memoryChunkStore) BulkCreateChunks(_ context.Context, documentID int64, chunks []ragdomain.NewChunk) ([]ragdomain.ChunkRecord, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int]struct{}, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.SequenceInDocument]; dup {
			return nil, ragdomain.New(ragdomain.KindSchemaMismatch, "BulkCreateChunks", "duplicate sequence in batch", nil)
		}
		seen[c.SequenceInDocument] = struct{}{}
	}
	out := make([]ragdomain.ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		m.nextChkID++
		rec := ragdomain.ChunkRecord{
			ID:                 m.nextChkID,
			SourceDocumentID:   documentID,
			ChunkText:          c.ChunkText,
			SequenceInDocument: c.SequenceInDocument,
			Metadata:           c.Metadata,
		}
		out = append(out, rec)
	}
	for _, rec := range out {
		m.chunks[rec.ID] = rec
	}
	return out, nil
}

func (m *memoryChunkStore) GetChunksByIDs(_ context.Context, ids []int64) ([]ragdomain.ChunkRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ragdomain.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryChunkStore) DeleteChunksByDocument(_ context.Context, documentID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.chunks {
		if c.SourceDocumentID == documentID {
			delete(m.chunks, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryChunkStore) Close() {}
