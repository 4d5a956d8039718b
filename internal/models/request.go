package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kotaehq/kotae/internal/apperr"
)

// QueryRequest is the body of a query call.
type QueryRequest struct {
	Query           string   `json:"query"`
	TopK            int      `json:"top_k,omitempty"`
	DocumentID      string   `json:"document_id,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	IncludeMetadata *bool    `json:"include_metadata,omitempty"`
	Verify          bool     `json:"verify,omitempty"`
	Rerank          bool     `json:"rerank,omitempty"`
	SkipCache       bool     `json:"skip_cache,omitempty"`
}

// Validate normalizes the request and returns a ValidationError for bad input.
// TopK defaults to 5 and is capped at 20; a blank DocumentID is treated as unset.
func (q *QueryRequest) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return apperr.Validationf("query cannot be empty")
	}
	if len(q.Query) > 5000 {
		return apperr.Validationf("query exceeds 5000 characters")
	}
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if q.TopK > 20 {
		q.TopK = 20
	}
	q.DocumentID = strings.TrimSpace(q.DocumentID)
	if q.DocumentID != "" {
		if _, err := uuid.Parse(q.DocumentID); err != nil {
			return apperr.Validationf("document_id must be a valid UUID")
		}
	}
	if q.Temperature != nil && (*q.Temperature < 0 || *q.Temperature > 1) {
		return apperr.Validationf("temperature must be between 0.0 and 1.0")
	}
	return nil
}

// IncludeSourceMetadata reports whether source previews should be attached.
// Defaults to true when the field is unset.
func (q *QueryRequest) IncludeSourceMetadata() bool {
	return q.IncludeMetadata == nil || *q.IncludeMetadata
}

// CompareRequest is the body of a two-document comparison call.
type CompareRequest struct {
	DocumentIDs []string `json:"document_ids"`
	Topic       string   `json:"topic"`
	TopK        int      `json:"top_k,omitempty"`
	Structured  bool     `json:"structured,omitempty"`
}

// Validate normalizes the request. Exactly two valid UUIDs are required.
func (c *CompareRequest) Validate() error {
	if len(c.DocumentIDs) != 2 {
		return apperr.Validationf("exactly two document IDs are required for comparison")
	}
	for _, id := range c.DocumentIDs {
		if _, err := uuid.Parse(id); err != nil {
			return apperr.Validationf("invalid document ID: %s", id)
		}
	}
	c.Topic = strings.TrimSpace(c.Topic)
	if c.Topic == "" {
		return apperr.Validationf("topic cannot be empty")
	}
	if len(c.Topic) > 2000 {
		return apperr.Validationf("topic exceeds 2000 characters")
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.TopK > 20 {
		c.TopK = 20
	}
	return nil
}

// IngestOptions are the optional chunking overrides for an upload.
type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// Validate checks the override ranges; zero values mean "use defaults".
func (o *IngestOptions) Validate() error {
	if o.ChunkSize != 0 && (o.ChunkSize < 100 || o.ChunkSize > 10000) {
		return apperr.Validationf("chunk_size must be between 100 and 10000")
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap > 500 {
		return apperr.Validationf("chunk_overlap must be between 0 and 500")
	}
	return nil
}
