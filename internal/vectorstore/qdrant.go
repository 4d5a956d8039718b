package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kotaehq/kotae/internal/apperr"
	"github.com/kotaehq/kotae/internal/models"
	"go.uber.org/zap"
)

const defaultQdrantTimeout = 15 * time.Second

// QdrantConfig configures the Qdrant REST client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
	Timeout    time.Duration
}

// Qdrant is a REST client to a Qdrant collection with cosine distance.
// NewQdrant creates the collection if it does not exist.
type Qdrant struct {
	cfg    QdrantConfig
	client *http.Client
	logger *zap.Logger // optional
}

// QdrantOption configures a Qdrant store.
type QdrantOption func(*Qdrant)

// WithLogger sets a logger for collection setup events.
func WithLogger(l *zap.Logger) QdrantOption {
	return func(q *Qdrant) { q.logger = l }
}

// NewQdrant connects to Qdrant and ensures the collection exists with the
// given dimension.
func NewQdrant(ctx context.Context, cfg QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant: invalid dimension %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultQdrantTimeout
	}
	q := &Qdrant{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(q)
	}

	// PUT is idempotent when the collection already exists with the same schema.
	body := map[string]any{
		"vectors": map[string]any{
			"size":     cfg.Dimensions,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionURL(""), body, nil); err != nil {
		return nil, err
	}
	if q.logger != nil {
		q.logger.Info("qdrant collection ready",
			zap.String("collection", cfg.Collection), zap.Int("dimensions", cfg.Dimensions))
	}
	return q, nil
}

func (q *Qdrant) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", q.cfg.URL, q.cfg.Collection, suffix)
}

// pointID derives a Qdrant-valid UUID point id from the chunk id.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Upsert writes the chunks with their vectors, waiting for durability.
func (q *Qdrant) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     pointID(c.ID),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id":     c.ID,
				"document_id":  c.DocumentID,
				"filename":     c.Filename,
				"chunk_index":  c.Index,
				"total_chunks": c.TotalChunks,
				"text":         c.Text,
				"word_count":   c.WordCount,
			},
		}
	}
	return q.do(ctx, http.MethodPut, q.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Query returns the topK nearest passages, optionally filtered to documentID.
func (q *Qdrant) Query(ctx context.Context, vector []float32, topK int, documentID string) ([]*models.RetrievedPassage, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if documentID != "" {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		}
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	passages := make([]*models.RetrievedPassage, 0, len(resp.Result))
	for _, r := range resp.Result {
		p := &models.RetrievedPassage{
			SimilarityScore: r.Score,
			Distance:        1 - r.Score,
		}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			p.ChunkID = v
		}
		if v, ok := r.Payload["document_id"].(string); ok {
			p.DocumentID = v
		}
		if v, ok := r.Payload["filename"].(string); ok {
			p.Filename = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			p.ChunkIndex = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			p.Text = v
		}
		passages = append(passages, p)
	}
	return passages, nil
}

// DeleteDocument removes every point whose payload carries documentID.
func (q *Qdrant) DeleteDocument(ctx context.Context, documentID string) error {
	req := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	return q.do(ctx, http.MethodPost, q.collectionURL("/points/delete?wait=true"), req, nil)
}

// Count returns the number of stored points.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Close is a no-op for the REST client.
func (q *Qdrant) Close() error {
	return nil
}

func (q *Qdrant) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return apperr.External("vector store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apperr.External("vector store",
			fmt.Errorf("qdrant %s %s returned %d: %s", method, url, resp.StatusCode, bytes.TrimSpace(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.External("vector store", fmt.Errorf("decode qdrant response: %w", err))
		}
	}
	return nil
}
