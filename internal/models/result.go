package models

// Source is a citation attached to a generated answer.
type Source struct {
	Filename        string   `json:"filename"`
	ChunkIndex      int      `json:"chunk_index"`
	DocumentID      string   `json:"document_id"`
	SimilarityScore float64  `json:"similarity_score"`
	RerankScore     *float64 `json:"rerank_score,omitempty"`
	OriginalRank    int      `json:"original_rank,omitempty"`
	Preview         string   `json:"preview,omitempty"`
}

// QueryResponse is the answer to a query, with confidence and citations.
type QueryResponse struct {
	Answer         string          `json:"answer"`
	Confidence     ConfidenceScore `json:"confidence"`
	Sources        []Source        `json:"sources"`
	Query          string          `json:"query"`
	TopK           int             `json:"top_k"`
	Reranked       bool            `json:"reranked"`
	ChunksUsed     int             `json:"chunks_used"`
	ProcessingTime string          `json:"processing_time"`
	Verification   *Verification   `json:"verification,omitempty"`
	Cached         bool            `json:"cached,omitempty"`
}

// Verification is the structured result of checking an answer's claims
// against the retrieved passages.
type Verification struct {
	IsVerified        bool     `json:"isVerified"`
	OverallScore      int      `json:"overallScore"`
	Claims            []Claim  `json:"claims"`
	UnsupportedClaims []string `json:"unsupportedClaims"`
	Summary           string   `json:"summary"`
	RawResponse       string   `json:"rawResponse,omitempty"`
}

// Claim is a single verified statement from an answer.
type Claim struct {
	Claim       string `json:"claim"`
	Status      string `json:"status"` // supported | partially_supported | unsupported
	Evidence    string `json:"evidence"`
	SourceChunk string `json:"sourceChunk"`
}

// CompareResult is the outcome of a two-document comparison.
// Comparison holds the plain-text variant; Structured holds the JSON variant.
type CompareResult struct {
	Comparison        string      `json:"comparison,omitempty"`
	StructuredResult  *Comparison `json:"structured_comparison,omitempty"`
	Structured        bool        `json:"structured"`
	Doc1Sources       []Source    `json:"doc1_sources"`
	Doc2Sources       []Source    `json:"doc2_sources"`
	Topic             string      `json:"topic"`
	DocumentsCompared []string    `json:"documents_compared"`
	ProcessingTime    string      `json:"processing_time"`
}

// Comparison is the structured comparison the model is asked to emit.
type Comparison struct {
	Similarities []ComparisonPoint      `json:"similarities"`
	Differences  []ComparisonDifference `json:"differences"`
	UniqueToDoc1 []ComparisonUnique     `json:"uniqueToDoc1"`
	UniqueToDoc2 []ComparisonUnique     `json:"uniqueToDoc2"`
	Summary      ComparisonSummary      `json:"summary"`
	Metadata     ComparisonMetadata     `json:"metadata"`
	// RawComparison preserves the model output when it failed to parse as JSON.
	RawComparison string `json:"rawComparison,omitempty"`
}

// ComparisonPoint is something both documents agree on.
type ComparisonPoint struct {
	Point        string              `json:"point"`
	Doc1Evidence *ComparisonEvidence `json:"doc1Evidence,omitempty"`
	Doc2Evidence *ComparisonEvidence `json:"doc2Evidence,omitempty"`
}

// ComparisonDifference is a point where the documents diverge.
type ComparisonDifference struct {
	Aspect       string              `json:"aspect"`
	Doc1Position string              `json:"doc1Position"`
	Doc2Position string              `json:"doc2Position"`
	Doc1Source   *ComparisonEvidence `json:"doc1Source,omitempty"`
	Doc2Source   *ComparisonEvidence `json:"doc2Source,omitempty"`
}

// ComparisonUnique is information present in only one document.
type ComparisonUnique struct {
	Point  string              `json:"point"`
	Source *ComparisonEvidence `json:"source,omitempty"`
	Quote  string              `json:"quote,omitempty"`
}

// ComparisonEvidence cites a chunk backing a comparison point.
type ComparisonEvidence struct {
	Quote  string `json:"quote,omitempty"`
	Source string `json:"source"`
	Chunk  int    `json:"chunk"`
}

// ComparisonSummary is the model's overall assessment.
type ComparisonSummary struct {
	OverallAssessment string `json:"overallAssessment"`
	AgreementLevel    string `json:"agreementLevel"` // high | medium | low | none | unknown
	KeyTakeaway       string `json:"keyTakeaway"`
}

// ComparisonMetadata records what went into the comparison.
type ComparisonMetadata struct {
	Doc1ChunksAnalyzed int    `json:"doc1ChunksAnalyzed"`
	Doc2ChunksAnalyzed int    `json:"doc2ChunksAnalyzed"`
	Topic              string `json:"topic"`
	ParseError         bool   `json:"parseError,omitempty"`
}
