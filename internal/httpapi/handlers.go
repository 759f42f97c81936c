package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ragforge/internal/ragdomain"
	"ragforge/internal/validation"
)

const maxUploadBytes = 256 << 20 // 256MiB

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	safeName, err := validation.Filename(header.Filename)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	key := fmt.Sprintf("%s-%s", uuid.NewString(), safeName)

	doc, err := s.svc.Documents().CreateDocument(ctx, ragdomain.DocumentRecord{
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		Size:             int64(len(data)),
		FilePath:         key,
		StorageType:      ragdomain.StorageLocal,
		Status:           ragdomain.StatusUploaded,
	})
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}

	if err := s.blobs.Put(ctx, key, data, contentType); err != nil {
		_ = s.svc.Documents().DeleteDocument(ctx, doc.ID)
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}

	if err := s.producer.PublishIngestJob(ctx, doc.ID); err != nil {
		_ = s.blobs.Delete(ctx, key)
		_ = s.svc.Documents().DeleteDocument(ctx, doc.ID)
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}

	respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	order := ragdomain.OrderCreatedAtDesc
	if r.URL.Query().Get("order") == "created_at_asc" {
		order = ragdomain.OrderCreatedAtAsc
	}
	docs, err := s.svc.Documents().ListDocuments(ctx, limit, offset, order)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.svc.Documents().GetDocument(ctx, id)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.svc.Documents().GetDocument(ctx, id)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	if err := s.svc.Documents().DeleteDocument(ctx, id); err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	_ = s.blobs.Delete(ctx, doc.FilePath)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	doc, err := s.svc.Documents().GetDocument(ctx, id)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	if doc.StorageType != ragdomain.StorageObject {
		respondError(w, http.StatusBadRequest, errors.New("download requires a presignable storage backend"))
		return
	}
	url, err := s.blobs.PresignGetURL(ctx, doc.FilePath, 15*time.Minute)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	if url == "" {
		respondError(w, http.StatusBadRequest, errors.New("download requires a presignable storage backend"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *Server) handleRetrieveChunks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	chunks, err := s.svc.RetrieveChunks(ctx, req.Query, req.TopK)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"supporting_chunks": chunks})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.svc.Ask(ctx, req.Query)
	if err != nil {
		respondError(w, statusFromError(err), err)
		return
	}
	texts := make([]string, len(result.SupportingChunks))
	for i, c := range result.SupportingChunks {
		texts[i] = c.Text
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"query":                  req.Query,
		"answer":                 result.Answer,
		"retrieved_context_texts": texts,
	})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

func statusFromError(err error) int {
	switch ragdomain.KindOf(err) {
	case ragdomain.KindNotFound:
		return http.StatusNotFound
	case ragdomain.KindAlreadyExists:
		return http.StatusConflict
	case ragdomain.KindInvalidQuery, ragdomain.KindUnsupportedType:
		return http.StatusBadRequest
	case ragdomain.KindModelError:
		return http.StatusInternalServerError
	case ragdomain.KindTransportError:
		return http.StatusServiceUnavailable
	case ragdomain.KindRetrievalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
