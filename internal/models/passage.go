package models

// RetrievedPassage is a chunk returned by a vector store query, carrying both
// the cosine distance and similarity (1 - distance). The re-ranker annotates
// RerankScore, KeywordScore, and OriginalRank in place; those fields are nil /
// zero when re-ranking did not run.
type RetrievedPassage struct {
	ChunkID         string   `json:"chunk_id"`
	Text            string   `json:"text"`
	DocumentID      string   `json:"document_id"`
	Filename        string   `json:"filename"`
	ChunkIndex      int      `json:"chunk_index"`
	Distance        float64  `json:"distance"`
	SimilarityScore float64  `json:"similarity_score"`
	RerankScore     *float64 `json:"rerank_score,omitempty"`
	KeywordScore    *float64 `json:"keyword_score,omitempty"`
	OriginalRank    int      `json:"original_rank,omitempty"` // 1-based pre-rerank position
}

// ConfidenceScore is the model's self-assessed answer support, parsed from the
// trailing confidence annotation. Score is nil when the annotation was absent.
type ConfidenceScore struct {
	Score  *int   `json:"score"`
	Reason string `json:"reason"`
	Level  string `json:"level"`
}

// Confidence levels.
const (
	ConfidenceVeryHigh = "very_high"
	ConfidenceHigh     = "high"
	ConfidenceMedium   = "medium"
	ConfidenceLow      = "low"
	ConfidenceVeryLow  = "very_low"
	ConfidenceUnknown  = "unknown"
	ConfidenceNone     = "none"
)
