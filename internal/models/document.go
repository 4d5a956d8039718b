// Package models defines core data structures for documents, chunks, queries, and responses.
package models

import "time"

// Chunk is a bounded contiguous span of a document's text, the unit of
// embedding and retrieval. Immutable once stored; Index is 0-based and dense
// within the document, TotalChunks is fixed at creation.
type Chunk struct {
	ID          string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	Index       int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Text        string `json:"text"`
	WordCount   int    `json:"word_count"`
}

// Document is a registry entry for an ingested document.
type Document struct {
	ID             string    `json:"document_id"`
	Filename       string    `json:"filename"`
	ChunkCount     int       `json:"chunk_count"`
	CharacterCount int       `json:"character_count"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// ChunkConfig records the chunking parameters used for an ingest.
type ChunkConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

// IngestResult is the outcome of a document ingest.
type IngestResult struct {
	DocumentID     string      `json:"document_id"`
	Filename       string      `json:"filename"`
	ChunkCount     int         `json:"chunk_count"`
	CharacterCount int         `json:"character_count"`
	ChunkConfig    ChunkConfig `json:"chunk_config"`
	ProcessingTime string      `json:"processing_time"`
}

// Stats summarizes the state of the corpus and caches.
type Stats struct {
	TotalDocuments int64       `json:"total_documents"`
	TotalChunks    int         `json:"total_chunks"`
	Documents      []*Document `json:"documents"`
	Cache          CacheStats  `json:"cache"`
}

// CacheStats reports live entry counts per cache tier.
type CacheStats struct {
	Embeddings int `json:"embeddings"`
	Queries    int `json:"queries"`
	Documents  int `json:"documents"`
}
