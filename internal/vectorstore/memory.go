package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/pkg/utils"
)

// Memory is a brute-force in-memory store for tests and offline runs.
type Memory struct {
	mu     sync.RWMutex
	points map[string]memoryPoint // keyed by chunk id
}

type memoryPoint struct {
	chunk  models.Chunk
	vector []float32
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{points: make(map[string]memoryPoint)}
}

func (m *Memory) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("memory store: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		m.points[c.ID] = memoryPoint{chunk: c, vector: vec}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, vector []float32, topK int, documentID string) ([]*models.RetrievedPassage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	passages := make([]*models.RetrievedPassage, 0, len(m.points))
	for _, p := range m.points {
		if documentID != "" && p.chunk.DocumentID != documentID {
			continue
		}
		sim := utils.CosineSimilarity(vector, p.vector)
		passages = append(passages, &models.RetrievedPassage{
			ChunkID:         p.chunk.ID,
			Text:            p.chunk.Text,
			DocumentID:      p.chunk.DocumentID,
			Filename:        p.chunk.Filename,
			ChunkIndex:      p.chunk.Index,
			SimilarityScore: sim,
			Distance:        1 - sim,
		})
	}
	sort.Slice(passages, func(i, j int) bool {
		return passages[i].SimilarityScore > passages[j].SimilarityScore
	})
	if topK > 0 && len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

func (m *Memory) DeleteDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if p.chunk.DocumentID == documentID {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

func (m *Memory) Close() error {
	return nil
}
