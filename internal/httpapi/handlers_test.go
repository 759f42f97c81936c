package httpapi

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragforge/internal/config"
	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/broker"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/rag/service"
	"ragforge/internal/ragdomain"
)

// fakeChunkStore is an in-memory databases.ChunkStore good enough to drive
// the HTTP surface's document CRUD handlers without a real database.
type fakeChunkStore struct {
	mu   sync.Mutex
	docs map[int64]ragdomain.DocumentRecord
	next int64
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{docs: map[int64]ragdomain.DocumentRecord{}}
}

func (f *fakeChunkStore) CreateDocument(_ context.Context, meta ragdomain.DocumentRecord) (ragdomain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	meta.ID = f.next
	f.docs[meta.ID] = meta
	return meta, nil
}

func (f *fakeChunkStore) GetDocument(_ context.Context, id int64) (ragdomain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return ragdomain.DocumentRecord{}, ragdomain.New(ragdomain.KindNotFound, "GetDocument", "not found", nil)
	}
	return doc, nil
}

func (f *fakeChunkStore) ListDocuments(_ context.Context, limit, offset int, _ ragdomain.ListOrder) ([]ragdomain.DocumentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ragdomain.DocumentRecord
	for _, d := range f.docs {
		out = append(out, d)
	}
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeChunkStore) UpdateDocumentStatus(_ context.Context, id int64, upd ragdomain.DocumentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return ragdomain.New(ragdomain.KindNotFound, "UpdateDocumentStatus", "not found", nil)
	}
	if upd.Status != nil {
		doc.Status = *upd.Status
	}
	f.docs[id] = doc
	return nil
}

func (f *fakeChunkStore) DeleteDocument(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return ragdomain.New(ragdomain.KindNotFound, "DeleteDocument", "not found", nil)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeChunkStore) BulkCreateChunks(context.Context, int64, []ragdomain.NewChunk) ([]ragdomain.ChunkRecord, error) {
	return nil, nil
}
func (f *fakeChunkStore) GetChunksByIDs(context.Context, []int64) ([]ragdomain.ChunkRecord, error) {
	return nil, nil
}
func (f *fakeChunkStore) DeleteChunksByDocument(context.Context, int64) (int, error) { return 0, nil }
func (f *fakeChunkStore) Close()                                                     {}

// fakeBlobStore is an in-memory blobstore.BlobStore.
type fakeBlobStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: map[string][]byte{}}
}

func (f *fakeBlobStore) Fetch(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[key]
	if !ok {
		return nil, ragdomain.New(ragdomain.KindNotFound, "Fetch", "not found", nil)
	}
	return d, nil
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeBlobStore) PresignGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "", nil
}

// fakeWriter is a broker.Writer that records published messages.
type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	fail bool
}

var errPublishFailed = errors.New("publish failed")

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.fail {
		return errPublishFailed
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeChunkStore, *fakeBlobStore) {
	t.Helper()
	chunks := newFakeChunkStore()
	blobs := newFakeBlobStore()
	stores := databases.Manager{Chunks: chunks}
	svc := service.New(config.Config{}, stores, blobstore.BlobStore(blobs), &modelhost.ModelHosts{})
	producer := broker.NewProducerWithWriter(&fakeWriter{}, "ingest-jobs")
	return NewServer(svc, producer, nil), chunks, blobs
}

func uploadRequest(t *testing.T, filename, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandleUploadDocument_SanitizesTraversalFilename(t *testing.T) {
	t.Parallel()
	s, chunks, blobs := newTestServer(t)

	req := uploadRequest(t, "../../etc/cron.d/evil", "payload")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, chunks.docs, 1)
	var stored ragdomain.DocumentRecord
	for _, d := range chunks.docs {
		stored = d
	}
	assert.Equal(t, "evil", stored.OriginalFilename, "multipart parsing reduces the filename to its base name")
	assert.NotContains(t, stored.FilePath, "..", "blob key must not carry traversal segments")
	assert.NotContains(t, stored.FilePath, "/", "blob key must be a single path segment")

	_, ok := blobs.data[stored.FilePath]
	assert.True(t, ok, "blob should be stored under the sanitized key")
}

func TestHandleUploadDocument_RejectsUnusableFilename(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	req := uploadRequest(t, "..", "payload")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListAndGetDocument(t *testing.T) {
	t.Parallel()
	s, chunks, _ := newTestServer(t)
	doc, err := chunks.CreateDocument(context.Background(), ragdomain.DocumentRecord{OriginalFilename: "a.txt"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a.txt")

	rec = httptest.NewRecorder()
	path := "/documents/" + itoa(doc.ID)
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetDocument_NotFound(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDownloadDocument_RejectsNonPresignableStorage(t *testing.T) {
	t.Parallel()
	s, chunks, _ := newTestServer(t)
	doc, err := chunks.CreateDocument(context.Background(), ragdomain.DocumentRecord{
		OriginalFilename: "a.txt",
		StorageType:      ragdomain.StorageLocal,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	path := "/documents/" + itoa(doc.ID) + "/download"
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "presignable")
}

func TestHandleDeleteDocument(t *testing.T) {
	t.Parallel()
	s, chunks, blobs := newTestServer(t)
	doc, err := chunks.CreateDocument(context.Background(), ragdomain.DocumentRecord{FilePath: "key-1"})
	require.NoError(t, err)
	blobs.data["key-1"] = []byte("x")

	rec := httptest.NewRecorder()
	path := "/documents/" + itoa(doc.ID)
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := blobs.data["key-1"]
	assert.False(t, ok, "blob should be removed alongside the document record")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
