package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/kotaehq/kotae/internal/models"
)

// Default tier policies.
const (
	DefaultEmbeddingTTL  = 24 * time.Hour
	DefaultQueryTTL      = time.Hour
	DefaultDocumentTTL   = 30 * time.Minute
	DefaultEmbeddingKeys = 10000
	DefaultQueryKeys     = 1000
	DefaultDocumentKeys  = 500
)

// Tiers bundles the three cache tiers shared by all in-flight requests.
//
// The embedding tier is a pure function cache (same text, same vector) with no
// invalidation trigger beyond TTL. The query tier must be flushed on any
// corpus mutation; invalidation is deliberately coarse because tracking
// per-query corpus dependencies is not worth the complexity at this scale.
type Tiers struct {
	Embeddings *Cache[[]float32]
	Queries    *Cache[*models.QueryResponse]
	Documents  *Cache[*models.Document]
}

// TierConfig holds the TTL and capacity for one tier.
type TierConfig struct {
	TTL     time.Duration
	MaxKeys int
}

// NewTiers creates the three tiers. Zero-valued configs use the defaults.
func NewTiers(embedding, query, document TierConfig) *Tiers {
	applyTierDefaults(&embedding, DefaultEmbeddingTTL, DefaultEmbeddingKeys)
	applyTierDefaults(&query, DefaultQueryTTL, DefaultQueryKeys)
	applyTierDefaults(&document, DefaultDocumentTTL, DefaultDocumentKeys)
	return &Tiers{
		Embeddings: New[[]float32](embedding.TTL, embedding.MaxKeys),
		Queries:    New[*models.QueryResponse](query.TTL, query.MaxKeys),
		Documents:  New[*models.Document](document.TTL, document.MaxKeys),
	}
}

func applyTierDefaults(cfg *TierConfig, ttl time.Duration, keys int) {
	if cfg.TTL <= 0 {
		cfg.TTL = ttl
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = keys
	}
}

// InvalidateQueries flushes the entire query tier. Called on every ingest or
// delete, since retrieval results depend on the full index state.
func (t *Tiers) InvalidateQueries() {
	t.Queries.Flush()
}

// FlushAll clears every tier.
func (t *Tiers) FlushAll() {
	t.Embeddings.Flush()
	t.Queries.Flush()
	t.Documents.Flush()
}

// Stats returns live entry counts per tier.
func (t *Tiers) Stats() models.CacheStats {
	return models.CacheStats{
		Embeddings: t.Embeddings.Size(),
		Queries:    t.Queries.Size(),
		Documents:  t.Documents.Size(),
	}
}

// EmbeddingKey derives the embedding tier key from normalized text.
func EmbeddingKey(text string) string {
	return "emb:" + hash(strings.TrimSpace(text))
}

// QueryKey derives the query tier key from everything the cached result
// depends on: the query text, top_k, document scope, and the rerank flag.
func QueryKey(query string, topK int, documentID string, rerank bool) string {
	scope := documentID
	if scope == "" {
		scope = "all"
	}
	mode := "norerank"
	if rerank {
		mode = "rerank"
	}
	return "q:" + hash(strings.Join([]string{query, strconv.Itoa(topK), scope, mode}, "|"))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
