// Package embedder implements the dense-embedding half of ModelHosts (C1):
// query texts get the configured instruction prefix, document texts don't,
// and every output vector is L2-normalized before it leaves this package.
package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"ragforge/internal/config"
	"ragforge/internal/embedding"
	"ragforge/internal/ragdomain"
)

// Embedder is the embed(texts, mode) contract from §4.1.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode ragdomain.EmbedMode) ([][]float32, error)
	Name() string
	Dimension() int
	Ping(ctx context.Context) error
}

// clientEmbedder calls a remote embedding server. Calls are serialized: the
// host is a single shared resource per §4.1, one in-flight request at a time
// unless the caller already batched.
type clientEmbedder struct {
	cfg config.EmbeddingConfig
	dim int
	mu  sync.Mutex
}

// NewClient constructs an Embedder over the configured embedding endpoint.
func NewClient(cfg config.EmbeddingConfig) Embedder {
	return &clientEmbedder{cfg: cfg, dim: cfg.Dimension}
}

func (c *clientEmbedder) Name() string   { return c.cfg.Model }
func (c *clientEmbedder) Dimension() int { return c.dim }

func (c *clientEmbedder) Ping(ctx context.Context) error {
	return embedding.CheckReachability(ctx, c.cfg)
}

func (c *clientEmbedder) Embed(ctx context.Context, texts []string, mode ragdomain.EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := texts
	if mode == ragdomain.EmbedQuery && c.cfg.Instruction != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = c.cfg.Instruction + t
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vecs, err := embedding.EmbedText(ctx, c.cfg, inputs)
	if err != nil {
		return nil, ragdomain.New(ragdomain.KindModelError, "Embed", "embedding request failed", err)
	}
	for i := range vecs {
		l2Normalize(vecs[i])
	}
	return vecs, nil
}

func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// deterministicEmbedder is a hash-based stand-in for tests; it needs no
// network and always L2-normalizes its output, same as the real client.
type deterministicEmbedder struct {
	dim  int
	seed uint64
}

// NewDeterministic constructs a deterministic, dependency-free Embedder.
func NewDeterministic(dim int, seed uint64) Embedder {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicEmbedder{dim: dim, seed: seed}
}

func (d *deterministicEmbedder) Name() string   { return "deterministic" }
func (d *deterministicEmbedder) Dimension() int { return d.dim }
func (d *deterministicEmbedder) Ping(context.Context) error { return nil }

func (d *deterministicEmbedder) Embed(_ context.Context, texts []string, mode ragdomain.EmbedMode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		s := t
		if mode == ragdomain.EmbedQuery {
			s = "query:" + s
		}
		out[i] = d.embedOne(s)
	}
	return out, nil
}

func (d *deterministicEmbedder) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) >= 3 {
		for i := 0; i <= len(b)-3; i++ {
			addGram(d.seed, b[i:i+3], v)
		}
	}
	l2Normalize(v)
	return v
}

func addGram(seed uint64, gram []byte, v []float32) {
	h := fnv.New64a()
	if seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
