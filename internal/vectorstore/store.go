// Package vectorstore persists chunk embeddings and serves nearest-neighbor
// retrieval, backed by Qdrant or an in-memory index.
package vectorstore

import (
	"context"

	"github.com/kotaehq/kotae/internal/models"
)

// Store holds chunk vectors and answers similarity queries.
type Store interface {
	// Upsert writes the chunks with their vectors. chunks and vectors must
	// have equal length.
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error

	// Query returns the topK nearest passages to vector, most similar first.
	// A non-empty documentID restricts the search to that document.
	Query(ctx context.Context, vector []float32, topK int, documentID string) ([]*models.RetrievedPassage, error)

	// DeleteDocument removes every chunk belonging to documentID.
	DeleteDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close() error
}
