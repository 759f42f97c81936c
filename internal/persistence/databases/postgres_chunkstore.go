package databases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ragforge/internal/ragdomain"
)

// pgChunkStore is the relational ChunkStore backend (C2). Documents and
// chunks live in two tables; the chunks table carries a composite unique
// index on (source_document_id, sequence_in_document) and cascades on
// document delete, per the persistent state layout in §6.
type pgChunkStore struct {
	pool *pgxpool.Pool
}

// NewPostgresChunkStore opens a ChunkStore over the given pool, creating the
// documents/chunks tables and their indexes if absent.
func NewPostgresChunkStore(ctx context.Context, pool *pgxpool.Pool) (ChunkStore, error) {
	s := &pgChunkStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate chunkstore schema: %w", err)
	}
	return s, nil
}

func (s *pgChunkStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			original_filename TEXT NOT NULL,
			content_type TEXT NOT NULL,
			size BIGINT NOT NULL,
			file_path TEXT NOT NULL,
			storage_type TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			processed_at TIMESTAMPTZ,
			number_of_chunks INT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_file_path_idx ON documents(file_path)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			source_document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_text TEXT NOT NULL,
			sequence_in_document INT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS chunks_doc_seq_idx ON chunks(source_document_id, sequence_in_document)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgChunkStore) CreateDocument(ctx context.Context, meta ragdomain.DocumentRecord) (ragdomain.DocumentRecord, error) {
	status := meta.Status
	if status == "" {
		status = ragdomain.StatusUploaded
	}
	row := s.pool.QueryRow(ctx, `
INSERT INTO documents(original_filename, content_type, size, file_path, storage_type, status, error_message)
VALUES ($1, $2, $3, $4, $5, $6, '')
RETURNING id, created_at, updated_at
`, meta.OriginalFilename, meta.ContentType, meta.Size, meta.FilePath, string(meta.StorageType), string(status))
	var pgErr *pgconn.PgError
	if err := row.Scan(&meta.ID, &meta.CreatedAt, &meta.UpdatedAt); err != nil {
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindAlreadyExists, "CreateDocument", "duplicate file_path", err)
		}
		return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindTransportError, "CreateDocument", "insert document", err)
	}
	meta.Status = status
	return meta, nil
}

func (s *pgChunkStore) GetDocument(ctx context.Context, id int64) (ragdomain.DocumentRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, original_filename, content_type, size, file_path, storage_type, status, error_message,
       processed_at, number_of_chunks, created_at, updated_at
FROM documents WHERE id=$1
`, id)
	return scanDocument(row)
}

func (s *pgChunkStore) ListDocuments(ctx context.Context, limit, offset int, order ragdomain.ListOrder) ([]ragdomain.DocumentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	dir := "DESC"
	if order == ragdomain.OrderCreatedAtAsc {
		dir = "ASC"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
SELECT id, original_filename, content_type, size, file_path, storage_type, status, error_message,
       processed_at, number_of_chunks, created_at, updated_at
FROM documents ORDER BY created_at %s LIMIT $1 OFFSET $2
`, dir), limit, offset)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindTransportError, "ListDocuments", "query", err)
	}
	defer rows.Close()
	var out []ragdomain.DocumentRecord
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (ragdomain.DocumentRecord, error) {
	var d ragdomain.DocumentRecord
	var storageType, status string
	if err := row.Scan(&d.ID, &d.OriginalFilename, &d.ContentType, &d.Size, &d.FilePath, &storageType,
		&status, &d.ErrorMessage, &d.ProcessedAt, &d.NumberOfChunks, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindNotFound, "GetDocument", "document not found", err)
		}
		return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindTransportError, "GetDocument", "scan", err)
	}
	d.StorageType = ragdomain.StorageKind(storageType)
	d.Status = ragdomain.DocumentStatus(status)
	return d, nil
}

// UpdateDocumentStatus applies a partial update atomically. An empty update
// is rejected rather than silently becoming a no-op UPDATE.
func (s *pgChunkStore) UpdateDocumentStatus(ctx context.Context, id int64, upd ragdomain.DocumentUpdate) error {
	if upd.IsEmpty() {
		return ragdomain.New(ragdomain.KindInvalidQuery, "UpdateDocumentStatus", "empty update", nil)
	}
	sets := []string{"updated_at = now()"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.Status != nil {
		sets = append(sets, "status = "+arg(string(*upd.Status)))
	}
	if upd.ProcessedAt != nil {
		sets = append(sets, "processed_at = "+arg(*upd.ProcessedAt))
	}
	if upd.NumberOfChunks != nil {
		sets = append(sets, "number_of_chunks = "+arg(*upd.NumberOfChunks))
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message = "+arg(*upd.ErrorMessage))
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return ragdomain.New(ragdomain.KindTransportError, "UpdateDocumentStatus", "update", err)
	}
	if tag.RowsAffected() == 0 {
		return ragdomain.New(ragdomain.KindNotFound, "UpdateDocumentStatus", "document not found", nil)
	}
	return nil
}

// DeleteDocument cascades to chunks via the foreign key; the VectorIndex
// side of the cascade is the caller's responsibility (IngestPipeline/handler).
func (s *pgChunkStore) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id=$1`, id)
	if err != nil {
		return ragdomain.New(ragdomain.KindTransportError, "DeleteDocument", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ragdomain.New(ragdomain.KindNotFound, "DeleteDocument", "document not found", nil)
	}
	return nil
}

// BulkCreateChunks persists the whole batch in one transaction; any
// integrity failure (bad foreign key, duplicate sequence) rolls back and
// rejects the entire call.
func (s *pgChunkStore) BulkCreateChunks(ctx context.Context, documentID int64, chunks []ragdomain.NewChunk) ([]ragdomain.ChunkRecord, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindTransportError, "BulkCreateChunks", "begin tx", err)
	}
	defer tx.Rollback(ctx)

	out := make([]ragdomain.ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, ragdomain.New(ragdomain.KindTransportError, "BulkCreateChunks", "marshal metadata", err)
		}
		row := tx.QueryRow(ctx, `
INSERT INTO chunks(source_document_id, chunk_text, sequence_in_document, metadata)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at
`, documentID, c.ChunkText, c.SequenceInDocument, md)
		rec := ragdomain.ChunkRecord{
			SourceDocumentID:   documentID,
			ChunkText:          c.ChunkText,
			SequenceInDocument: c.SequenceInDocument,
			Metadata:           c.Metadata,
		}
		if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return nil, ragdomain.New(ragdomain.KindSchemaMismatch, "BulkCreateChunks", "integrity violation", err)
			}
			return nil, ragdomain.New(ragdomain.KindTransportError, "BulkCreateChunks", "insert chunk", err)
		}
		out = append(out, rec)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, ragdomain.New(ragdomain.KindTransportError, "BulkCreateChunks", "commit", err)
	}
	return out, nil
}

// GetChunksByIDs does not guarantee result order; callers reorder.
func (s *pgChunkStore) GetChunksByIDs(ctx context.Context, ids []int64) ([]ragdomain.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, source_document_id, chunk_text, sequence_in_document, metadata, created_at
FROM chunks WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindTransportError, "GetChunksByIDs", "query", err)
	}
	defer rows.Close()
	var out []ragdomain.ChunkRecord
	for rows.Next() {
		var rec ragdomain.ChunkRecord
		var md []byte
		if err := rows.Scan(&rec.ID, &rec.SourceDocumentID, &rec.ChunkText, &rec.SequenceInDocument, &md, &rec.CreatedAt); err != nil {
			return nil, ragdomain.New(ragdomain.KindTransportError, "GetChunksByIDs", "scan", err)
		}
		if len(md) > 0 {
			_ = json.Unmarshal(md, &rec.Metadata)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *pgChunkStore) DeleteChunksByDocument(ctx context.Context, documentID int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE source_document_id=$1`, documentID)
	if err != nil {
		return 0, ragdomain.New(ragdomain.KindTransportError, "DeleteChunksByDocument", "delete", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *pgChunkStore) Close() { s.pool.Close() }
