package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ragforge/internal/config"
	"ragforge/internal/ragdomain"
)

func TestHTTPReranker_Rerank_OrdersScoresByIndex(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Documents) != 2 {
			t.Fatalf("expected 2 documents, got %d", len(req.Documents))
		}
		resp := rerankResponse{Results: []rerankResult{
			{Index: 1, RelevanceScore: 0.9},
			{Index: 0, RelevanceScore: 0.1},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ts.Close()

	r := NewClient(config.RerankerConfig{Endpoint: ts.URL, Model: "reranker-1"})
	scores, err := r.Rerank(context.Background(), "query", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.1 || scores[1] != 0.9 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestHTTPReranker_Rerank_EmptyPassages(t *testing.T) {
	t.Parallel()
	r := NewClient(config.RerankerConfig{Endpoint: "http://unused"})
	scores, err := r.Rerank(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scores != nil {
		t.Fatalf("expected nil scores for no passages, got %v", scores)
	}
}

func TestHTTPReranker_Rerank_NonOKStatus(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer ts.Close()

	r := NewClient(config.RerankerConfig{Endpoint: ts.URL})
	_, err := r.Rerank(context.Background(), "query", []string{"a"})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if ragdomain.KindOf(err) != ragdomain.KindModelError {
		t.Fatalf("expected KindModelError, got %v", ragdomain.KindOf(err))
	}
}

func TestHTTPReranker_Rerank_PrependsInstruction(t *testing.T) {
	t.Parallel()
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotQuery = req.Query
		_ = json.NewEncoder(w).Encode(rerankResponse{})
	}))
	defer ts.Close()

	r := NewClient(config.RerankerConfig{Endpoint: ts.URL, Instruction: "Represent this query: "})
	_, err := r.Rerank(context.Background(), "hello", []string{"a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "Represent this query: hello" {
		t.Fatalf("expected instruction prefix, got %q", gotQuery)
	}
}

func TestDeterministicReranker_ScoresByLexicalOverlap(t *testing.T) {
	t.Parallel()
	r := NewDeterministic()
	scores, err := r.Rerank(context.Background(), "the quick brown fox", []string{
		"the quick brown fox jumps",
		"completely unrelated text",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0] <= scores[1] {
		t.Fatalf("expected the overlapping passage to score higher: %v", scores)
	}
}

func TestJaccard_EmptySetsScoreZero(t *testing.T) {
	t.Parallel()
	if got := jaccard(tokenSet(""), tokenSet("anything")); got != 0 {
		t.Fatalf("expected 0 for empty set, got %v", got)
	}
	if got := jaccard(tokenSet("same"), tokenSet("same")); got != 1 {
		t.Fatalf("expected 1 for identical sets, got %v", got)
	}
}
