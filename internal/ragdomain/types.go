// Package ragdomain holds the data model shared by every stage of the
// ingestion and retrieval pipelines: documents, chunks, jobs, and queries.
package ragdomain

import "time"

// DocumentStatus is the lifecycle state of a DocumentRecord.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// StorageKind records where a document's bytes are stored. The BlobStore
// backend in use is chosen by configuration, not by this value.
type StorageKind string

const (
	StorageLocal  StorageKind = "local"
	StorageObject StorageKind = "object-store"
)

// DocumentRecord is the durable metadata row for one uploaded source.
type DocumentRecord struct {
	ID               int64
	OriginalFilename string
	ContentType      string
	Size             int64
	FilePath         string // opaque BlobStore key
	StorageType      StorageKind
	Status           DocumentStatus
	ErrorMessage     string
	ProcessedAt      *time.Time
	NumberOfChunks   *int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChunkRecord is one chunk of a document.
type ChunkRecord struct {
	ID                 int64
	SourceDocumentID    int64
	ChunkText           string
	SequenceInDocument  int
	Metadata            map[string]any
	CreatedAt           time.Time
}

// NewChunk is the input shape for bulk_create_chunks, before ids are assigned.
type NewChunk struct {
	ChunkText          string
	SequenceInDocument int
	Metadata           map[string]any
}

// DocumentUpdate is a partial update to a DocumentRecord. Nil fields are left
// untouched; at least one field MUST be set.
type DocumentUpdate struct {
	Status         *DocumentStatus
	ProcessedAt    *time.Time
	NumberOfChunks *int
	ErrorMessage   *string
}

// IsEmpty reports whether the update carries no changes.
func (u DocumentUpdate) IsEmpty() bool {
	return u.Status == nil && u.ProcessedAt == nil && u.NumberOfChunks == nil && u.ErrorMessage == nil
}

// ListOrder controls list_documents ordering.
type ListOrder string

const (
	OrderCreatedAtAsc  ListOrder = "created_at_asc"
	OrderCreatedAtDesc ListOrder = "created_at_desc"
)

// IngestJob is the transient broker message that drives one ingestion run.
type IngestJob struct {
	DocumentID int64 `json:"document_id"`
}

// QueryRequest is a transient retrieval request.
type QueryRequest struct {
	QueryText  string
	TopKFinal  int
}

// SupportingChunk is a chunk returned alongside a generated answer, in the
// order it was actually used to build the prompt.
type SupportingChunk struct {
	ChunkID            int64
	SourceDocumentID   int64
	Text               string
	Score              float64
}

// QueryResult is the outcome of RetrievalPipeline.Answer.
type QueryResult struct {
	Answer           string
	SupportingChunks []SupportingChunk
}

// EmbedMode selects the instruction-prefix policy for ModelHosts.Embed.
type EmbedMode string

const (
	EmbedQuery    EmbedMode = "query"
	EmbedDocument EmbedMode = "document"
)

// GenerateOptions are sampling parameters for ModelHosts.Generate.
type GenerateOptions struct {
	MaxNewTokens int
	Temperature  float64
	TopP         float64
	Stop         []string
}
