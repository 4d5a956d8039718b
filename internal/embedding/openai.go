package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kotaehq/kotae/internal/apperr"
)

// Defaults for the embedding backend.
const (
	DefaultDimensions = 1536
	DefaultBatchSize  = 32
	defaultTimeout    = 60 * time.Second
)

// emptyTextPlaceholder is sent in place of blank input; some backends reject
// empty strings outright.
const emptyTextPlaceholder = "[empty]"

// OpenAIConfig configures the OpenAI-compatible embedding client.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *http.Client
}

// NewOpenAIEmbedder creates an embedding client. Zero config values use the
// defaults.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &OpenAIEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one request. Blank texts are replaced with a
// placeholder so the position mapping is preserved.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	input := make([]string, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			input[i] = emptyTextPlaceholder
		} else {
			input[i] = t
		}
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperr.External("embedding backend", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.External("embedding backend",
			fmt.Errorf("embeddings returned %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.External("embedding backend", fmt.Errorf("decode embeddings: %w", err))
	}
	if len(parsed.Data) != len(texts) {
		return nil, apperr.External("embedding backend",
			fmt.Errorf("embeddings returned %d vectors for %d inputs", len(parsed.Data), len(texts)))
	}

	// The API does not guarantee response order; place vectors by index.
	vecs := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, apperr.External("embedding backend",
				fmt.Errorf("embeddings returned out-of-range index %d", d.Index))
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, apperr.External("embedding backend",
				fmt.Errorf("embeddings missing vector for input %d", i))
		}
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// Close is a no-op for the HTTP client.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
