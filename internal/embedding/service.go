package embedding

import (
	"context"

	"github.com/kotaehq/kotae/internal/cache"
	"go.uber.org/zap"
)

// Service fronts an Embedder with the embedding cache tier. Cached texts are
// never re-sent to the backend; misses are embedded in sub-batches.
type Service struct {
	embedder  Embedder
	cache     *cache.Cache[[]float32]
	batchSize int
	logger    *zap.Logger // optional
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for cache statistics.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithBatchSize overrides the backend sub-batch size.
func WithBatchSize(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewService wraps embedder with the given cache tier.
func NewService(embedder Embedder, c *cache.Cache[[]float32], opts ...ServiceOption) *Service {
	s := &Service{
		embedder:  embedder,
		cache:     c,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns the embedding for text, from cache when available.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(text)
	if vec, ok := s.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, vec)
	return vec, nil
}

// EmbedBatch embeds all texts, serving cached entries and sending only the
// misses to the backend. The result preserves input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := s.cache.Get(cache.EmbeddingKey(text)); ok {
			vecs[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if s.logger != nil && len(texts) > 0 {
		s.logger.Debug("embedding batch",
			zap.Int("total", len(texts)),
			zap.Int("cached", len(texts)-len(missTexts)))
	}

	for start := 0; start < len(missTexts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range batch {
			i := missIdx[start+j]
			vecs[i] = vec
			s.cache.Set(cache.EmbeddingKey(texts[i]), vec)
		}
	}
	return vecs, nil
}

// Dimensions returns the backend embedding dimension.
func (s *Service) Dimensions() int {
	return s.embedder.Dimensions()
}

// Close releases the backend.
func (s *Service) Close() error {
	return s.embedder.Close()
}
