// Package retrieve implements RetrievalPipeline (C8): embed query, recall,
// hydrate, rerank, build prompt, generate, return answer with supporting
// chunks in the order actually used.
package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ragforge/internal/persistence/databases"
	"ragforge/internal/rag/modelhost"
	"ragforge/internal/ragdomain"
	"ragforge/internal/util"
)

// Logger is the structured-logging surface the pipeline writes through.
type Logger interface {
	Info(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any) {}

// NoRelevantInformationAnswer is returned verbatim, without invoking the
// generator, when recall comes back empty (§4.8 degenerate input).
const NoRelevantInformationAnswer = "I don't have any relevant information to answer that."

const promptTemplate = "Answer the user's question using only the context below. If the context does not contain the answer, say so plainly.\n\n" +
	"Context:\n%s\n\n" +
	"Question: %s"

const contextSeparator = "\n---\n"

// Pipeline drives RetrievalPipeline (C8) for one query at a time.
type Pipeline struct {
	Stores databases.Manager
	Hosts  *modelhost.ModelHosts

	KRecall int
	KFinal  int

	Logger Logger

	// Cache, when set, short-circuits Answer for a previously-seen query.
	// A nil Cache disables the optimization entirely.
	Cache AnswerCache
}

// New constructs a Pipeline, filling in a no-op logger default.
func New(stores databases.Manager, hosts *modelhost.ModelHosts, kRecall, kFinal int) *Pipeline {
	return &Pipeline{Stores: stores, Hosts: hosts, KRecall: kRecall, KFinal: kFinal, Logger: noopLogger{}}
}

// candidate is a hydrated chunk still carrying its recall rank, for the
// tie-break in the ordering guarantee.
type candidate struct {
	chunk      ragdomain.ChunkRecord
	recallRank int
	score      float64
}

// RetrieveChunks runs steps 1-4 only: embed, recall, hydrate, rerank. Used
// by the retrieve-chunks endpoint, which performs no generation.
func (p *Pipeline) RetrieveChunks(ctx context.Context, query string, topKFinal int) ([]ragdomain.SupportingChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ragdomain.New(ragdomain.KindInvalidQuery, "RetrieveChunks", "query is empty", nil)
	}
	kFinal := topKFinal
	if kFinal <= 0 {
		kFinal = p.KFinal
	}
	ranked, err := p.recallAndRerank(ctx, query, kFinal)
	if err != nil {
		return nil, err
	}
	return toSupportingChunks(ranked), nil
}

// Answer runs the full pipeline: embed, recall, hydrate, rerank, prompt,
// generate.
func (p *Pipeline) Answer(ctx context.Context, query string, genOpts ragdomain.GenerateOptions) (ragdomain.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return ragdomain.QueryResult{}, ragdomain.New(ragdomain.KindInvalidQuery, "Answer", "query is empty", nil)
	}

	key := cacheKey(query)
	if p.Cache != nil {
		if cached, ok, err := p.Cache.Get(ctx, key); err == nil && ok {
			var result ragdomain.QueryResult
			if json.Unmarshal([]byte(cached), &result) == nil {
				return result, nil
			}
		}
	}

	ranked, err := p.recallAndRerank(ctx, query, p.KFinal)
	if err != nil {
		return ragdomain.QueryResult{}, err
	}
	if len(ranked) == 0 {
		result := ragdomain.QueryResult{Answer: NoRelevantInformationAnswer, SupportingChunks: nil}
		p.cacheResult(ctx, key, result)
		return result, nil
	}

	supporting := toSupportingChunks(ranked)
	var ctxBlock strings.Builder
	for i, c := range supporting {
		if i > 0 {
			ctxBlock.WriteString(contextSeparator)
		}
		ctxBlock.WriteString(c.Text)
	}
	prompt := fmt.Sprintf(promptTemplate, ctxBlock.String(), query)
	p.Logger.Info("generator prompt assembled", map[string]any{
		"chunks_used":    len(supporting),
		"estimated_tokens": util.CountTokens(prompt),
	})

	answer, err := p.Hosts.Generator.Generate(ctx, prompt, genOpts)
	if err != nil {
		return ragdomain.QueryResult{}, ragdomain.New(ragdomain.KindRetrievalError, "Answer", "generation failed", err)
	}
	result := ragdomain.QueryResult{Answer: answer, SupportingChunks: supporting}
	p.cacheResult(ctx, key, result)
	return result, nil
}

// cacheResult best-effort writes result to the answer cache; failures are
// logged, never surfaced, since the cache is a latency optimization only.
func (p *Pipeline) cacheResult(ctx context.Context, key string, result ragdomain.QueryResult) {
	if p.Cache == nil {
		return
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := p.Cache.Set(ctx, key, string(encoded), AnswerCacheTTL); err != nil {
		p.Logger.Info("retrieve: answer cache write failed", map[string]any{"error": err.Error()})
	}
}

// recallAndRerank runs steps 1-4, returning candidates sorted by rerank
// score descending, ties broken by original recall rank, capped to kFinal.
func (p *Pipeline) recallAndRerank(ctx context.Context, query string, kFinal int) ([]candidate, error) {
	if kFinal <= 0 {
		kFinal = p.KFinal
	}

	// Step 1: embed query.
	vecs, err := p.Hosts.Embedder.Embed(ctx, []string{query}, ragdomain.EmbedQuery)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindRetrievalError, "Answer", "query embedding failed", err)
	}

	// Step 2: recall.
	hits, err := p.Stores.Vectors.Query(ctx, vecs[0], p.KRecall)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindRetrievalError, "Answer", "recall failed", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	// Step 3: hydrate.
	ids := make([]int64, len(hits))
	rankByID := make(map[int64]int, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
		rankByID[h.ChunkID] = i
	}
	records, err := p.Stores.Chunks.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindRetrievalError, "Answer", "hydrate failed", err)
	}
	if len(records) < len(ids) {
		found := make(map[int64]bool, len(records))
		for _, r := range records {
			found[r.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				p.Logger.Info("retrieve: stale vector id missing from chunk store", map[string]any{"chunk_id": id})
			}
		}
	}

	// Step 4: rerank.
	passages := make([]string, len(records))
	for i, r := range records {
		passages[i] = r.ChunkText
	}
	scores, err := p.Hosts.Reranker.Rerank(ctx, query, passages)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindRetrievalError, "Answer", "rerank failed", err)
	}

	ranked := make([]candidate, len(records))
	for i, r := range records {
		ranked[i] = candidate{chunk: r, recallRank: rankByID[r.ID], score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].recallRank < ranked[j].recallRank
	})
	if len(ranked) > kFinal {
		ranked = ranked[:kFinal]
	}
	return ranked, nil
}

func toSupportingChunks(ranked []candidate) []ragdomain.SupportingChunk {
	out := make([]ragdomain.SupportingChunk, len(ranked))
	for i, c := range ranked {
		out[i] = ragdomain.SupportingChunk{
			ChunkID:          c.chunk.ID,
			SourceDocumentID: c.chunk.SourceDocumentID,
			Text:             c.chunk.ChunkText,
			Score:            c.score,
		}
	}
	return out
}
