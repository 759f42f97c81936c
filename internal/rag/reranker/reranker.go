// Package reranker implements the cross-encoder rerank(query, passages)
// half of ModelHosts (C1): a score in [0,1] per passage, higher meaning more
// relevant, served by an HTTP reranker host in the llama.cpp/BGE-reranker
// response shape.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"ragforge/internal/config"
	"ragforge/internal/observability"
	"ragforge/internal/ragdomain"
)

// Reranker is the rerank(query, passages) -> scores contract from §4.1.
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]float64, error)
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	TopN      int      `json:"top_n"`
	Documents []string `json:"documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// httpReranker calls a remote reranker host. Like the embedder, it is a
// single shared resource: calls are serialized per §4.1.
type httpReranker struct {
	cfg    config.RerankerConfig
	client *http.Client
	mu     sync.Mutex
}

// NewClient constructs a Reranker over the configured reranker endpoint.
func NewClient(cfg config.RerankerConfig) Reranker {
	return &httpReranker{cfg: cfg, client: observability.NewHTTPClient(nil)}
}

func (r *httpReranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if r.cfg.Instruction != "" {
		query = r.cfg.Instruction + query
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := json.Marshal(rerankRequest{Model: r.cfg.Model, Query: query, TopN: len(passages), Documents: passages})
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", "read response", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", fmt.Sprintf("status %s", resp.Status), fmt.Errorf("%s", string(raw)))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Rerank", "decode response", err)
	}
	scores := make([]float64, len(passages))
	for _, res := range parsed.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.RelevanceScore
		}
	}
	return scores, nil
}

// deterministicReranker scores by lexical overlap with the query; used in
// tests without a running reranker host.
type deterministicReranker struct{}

func NewDeterministic() Reranker { return deterministicReranker{} }

func (deterministicReranker) Rerank(_ context.Context, query string, passages []string) ([]float64, error) {
	qTokens := tokenSet(query)
	out := make([]float64, len(passages))
	for i, p := range passages {
		out[i] = jaccard(qTokens, tokenSet(p))
	}
	return out, nil
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	word := make([]rune, 0, 16)
	flush := func() {
		if len(word) > 0 {
			set[string(word)] = struct{}{}
			word = word[:0]
		}
	}
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
