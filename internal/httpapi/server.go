// Package httpapi exposes the HTTP surface from §6: document upload,
// listing, retrieval, download, and the two query endpoints.
package httpapi

import (
	"net/http"
	"time"

	"ragforge/internal/observability"
	"ragforge/internal/rag/authn"
	"ragforge/internal/rag/blobstore"
	"ragforge/internal/rag/broker"
	"ragforge/internal/rag/service"
)

// Server exposes the RAG HTTP API wired to a Service, a broker Producer,
// and the BlobStore used for direct upload/download.
type Server struct {
	svc      *service.Service
	producer *broker.Producer
	blobs    blobstore.BlobStore
	auth     *authn.Authenticator
	mux      *http.ServeMux
}

// NewServer wires routes to svc and producer. auth may be nil, which leaves
// every route open — the same opt-in-by-configuration pattern as the other
// optional backends.
func NewServer(svc *service.Service, producer *broker.Producer, auth *authn.Authenticator) *Server {
	s := &Server{svc: svc, producer: producer, blobs: svc.Blobs(), auth: auth, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler. Every request is logged with whatever
// trace/span IDs the incoming context carries, so API logs can be correlated
// with the OTLP traces emitted by the pipeline it triggers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	observability.LoggerWithTrace(r.Context()).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
}

func (s *Server) registerRoutes() {
	if s.auth != nil {
		s.mux.HandleFunc("GET /auth/login", s.auth.LoginHandler())
		s.mux.HandleFunc("GET /auth/callback", s.auth.CallbackHandler())
	}

	s.mux.Handle("POST /documents", s.protect(s.handleUploadDocument))
	s.mux.Handle("GET /documents", s.protect(s.handleListDocuments))
	s.mux.Handle("GET /documents/{id}", s.protect(s.handleGetDocument))
	s.mux.Handle("DELETE /documents/{id}", s.protect(s.handleDeleteDocument))
	s.mux.Handle("GET /documents/{id}/download", s.protect(s.handleDownloadDocument))

	s.mux.Handle("POST /query/retrieve-chunks", s.protect(s.handleRetrieveChunks))
	s.mux.Handle("POST /query/ask", s.protect(s.handleAsk))
}

// protect wraps h with the Authenticator's bearer/cookie check when auth is
// configured; otherwise it leaves the route open.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.auth == nil {
		return h
	}
	return s.auth.Middleware(h)
}
