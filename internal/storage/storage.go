// Package storage persists the document registry. Chunk text and vectors
// live in the vector store; this registry is the source of truth for which
// documents exist.
package storage

import (
	"context"

	"github.com/kotaehq/kotae/internal/models"
)

// Registry defines document registry operations.
type Registry interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
