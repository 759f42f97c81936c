package databases

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"ragforge/internal/ragdomain"
)

// MetaSourceDocumentID and MetaSequenceInDocument are the required payload
// fields on every VectorEntry, per the persistent state layout (§6).
const (
	MetaSourceDocumentID = "source_document_id"
	MetaSequenceInDoc    = "sequence_in_document"
)

type qdrantVector struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string // cosine|l2|euclidean|ip|dot
}

// NewQdrantVector opens (and lazily creates) a single collection of fixed
// dimension D, keyed by chunk id. metric selects the distance: "l2" or
// "euclidean", "ip" or "dot", and cosine for any other value.
//
// The Go client speaks Qdrant's gRPC API, which runs on port 6334 by
// default. An API key can be supplied as a query parameter:
// "http://localhost:6334?api_key=your_api_key".
func NewQdrantVector(dsn string, collection string, dimensions int, metric string) (VectorIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsedURL, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse Qdrant DSN: %w", err)
	}
	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsedURL.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in Qdrant DSN: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsedURL.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsedURL.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create Qdrant client: %w", err)
	}
	qv := &qdrantVector{
		client:     client,
		collection: collection,
		dimension:  dimensions,
		metric:     strings.ToLower(strings.TrimSpace(metric)),
	}
	ctx := context.Background()
	if err := qv.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return qv, nil
}

func (q *qdrantVector) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	default: // cosine — the only metric the spec requires
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

// Upsert is atomic from the caller's perspective for the whole batch: Qdrant
// rejects the entire point set on a dimension mismatch, which we surface as
// SchemaMismatch before ever issuing the RPC.
func (q *qdrantVector) Upsert(ctx context.Context, ids []int64, vectors [][]float32, metadatas []map[string]string) error {
	if len(ids) != len(vectors) || len(ids) != len(metadatas) {
		return fmt.Errorf("upsert: ids/vectors/metadatas length mismatch")
	}
	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		if q.dimension > 0 && len(vectors[i]) != q.dimension {
			return ragdomain.New(ragdomain.KindSchemaMismatch, "Upsert",
				fmt.Sprintf("vector dimension %d != collection dimension %d", len(vectors[i]), q.dimension), nil)
		}
		md := make(map[string]any, len(metadatas[i]))
		for k, v := range metadatas[i] {
			md[k] = v
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(md),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *qdrantVector) Query(ctx context.Context, vector []float32, k int) ([]ScoredChunkRef, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]ScoredChunkRef, 0, len(hits))
	for _, hit := range hits {
		chunkID := int64(hit.Id.GetNum())
		md := make(map[string]string, len(hit.Payload))
		for k, v := range hit.Payload {
			md[k] = v.GetStringValue()
		}
		out = append(out, ScoredChunkRef{ChunkID: chunkID, Score: float64(hit.Score), Metadata: md})
	}
	return out, nil
}

// DeleteByDocument removes every point whose source_document_id payload
// field matches, implementing the VectorIndex half of cascade delete.
func (q *qdrantVector) DeleteByDocument(ctx context.Context, documentID int64) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(MetaSourceDocumentID, strconv.FormatInt(documentID, 10)),
		},
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	return err
}

func (q *qdrantVector) Dimension() int { return q.dimension }

func (q *qdrantVector) Close() {
	_ = q.client.Close()
}
