package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragforge/internal/config"
)

func TestEmbedText_PostsModelAndInputs(t *testing.T) {
	var gotModel string
	var gotInputs []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("expected json content type, got %q", got)
		}
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = req.Model
		gotInputs = req.Input
		resp := embedResp{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.1, 0.2}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "bge-m3"}
	vecs, err := EmbedText(context.Background(), cfg, []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotModel != "bge-m3" {
		t.Fatalf("expected model bge-m3, got %q", gotModel)
	}
	if len(gotInputs) != 1 || gotInputs[0] != "hello" {
		t.Fatalf("expected inputs [hello], got %v", gotInputs)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedText_MismatchedVectorCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := embedResp{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.1}}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	_, err := EmbedText(context.Background(), cfg, []string{"a", "b"})
	if err == nil {
		t.Fatal("expected error on vector/input count mismatch")
	}
}

func TestEmbedText_NoEndpoint(t *testing.T) {
	_, err := EmbedText(context.Background(), config.EmbeddingConfig{}, []string{"x"})
	if err == nil {
		t.Fatal("expected error when endpoint is not configured")
	}
}

func TestCheckReachability_NonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer ts.Close()

	cfg := config.EmbeddingConfig{Endpoint: ts.URL, Model: "m"}
	if err := CheckReachability(context.Background(), cfg); err == nil {
		t.Fatal("expected reachability check to fail on non-2xx status")
	}
}
