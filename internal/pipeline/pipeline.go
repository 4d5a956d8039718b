// Package pipeline orchestrates ingest, query, comparison, and deletion
// across the extractor, chunker, embedder, vector store, registry, caches,
// and generation client.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kotaehq/kotae/internal/apperr"
	"github.com/kotaehq/kotae/internal/cache"
	"github.com/kotaehq/kotae/internal/chunker"
	"github.com/kotaehq/kotae/internal/embedding"
	"github.com/kotaehq/kotae/internal/extract"
	"github.com/kotaehq/kotae/internal/fileid"
	"github.com/kotaehq/kotae/internal/llm"
	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/internal/rerank"
	"github.com/kotaehq/kotae/internal/storage"
	"github.com/kotaehq/kotae/internal/vectorstore"
	"github.com/kotaehq/kotae/pkg/utils"
	"go.uber.org/zap"
)

// retrievalCap bounds how many candidates are fetched for re-ranking.
const retrievalCap = 20

// sourcePreviewLen is the citation preview length in characters.
const sourcePreviewLen = 200

// noResultsAnswer is returned without calling the model when retrieval
// comes back empty.
const noResultsAnswer = "I could not find any relevant documents to answer your question. " +
	"Please upload documents first or try rephrasing your query."

// Config holds the pipeline's chunking and re-ranking defaults.
type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	VectorWeight  float64
	KeywordWeight float64
}

// Pipeline wires the ingestion and retrieval components together. All methods
// are safe for concurrent use; the caches and store carry their own locking.
type Pipeline struct {
	cfg      Config
	chunker  *chunker.Chunker
	embedder *embedding.Service
	store    vectorstore.Store
	registry storage.Registry
	tiers    *cache.Tiers
	llm      *llm.Client
	logger   *zap.Logger
}

// New creates a pipeline. Zero config values use the chunker and re-ranker
// defaults.
func New(cfg Config, embedder *embedding.Service, store vectorstore.Store, registry storage.Registry, tiers *cache.Tiers, generator *llm.Client, logger *zap.Logger) *Pipeline {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = chunker.DefaultChunkOverlap
	}
	if cfg.VectorWeight <= 0 && cfg.KeywordWeight <= 0 {
		cfg.VectorWeight = rerank.DefaultVectorWeight
		cfg.KeywordWeight = rerank.DefaultKeywordWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		chunker:  chunker.New(cfg.ChunkSize, cfg.ChunkOverlap, chunker.WithLogger(logger)),
		embedder: embedder,
		store:    store,
		registry: registry,
		tiers:    tiers,
		llm:      generator,
		logger:   logger,
	}
}

// Ingest extracts, chunks, embeds, and stores a document under a fresh id.
func (p *Pipeline) Ingest(ctx context.Context, filename string, content []byte, opts models.IngestOptions) (*models.IngestResult, error) {
	return p.ingestAs(ctx, uuid.NewString(), filename, content, opts)
}

// IngestFile ingests a file from disk under its path-derived id, replacing
// any previous ingest of the same path. Used by the directory watcher.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*models.IngestResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	docID := fileid.FileDocID(abs)
	// Chunk counts can shrink between versions; drop the old points first.
	if err := p.store.DeleteDocument(ctx, docID); err != nil {
		return nil, err
	}
	return p.ingestAs(ctx, docID, filepath.Base(abs), content, models.IngestOptions{})
}

// RemoveFile deletes the document previously ingested from path. Paths that
// were never ingested are ignored.
func (p *Pipeline) RemoveFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	err = p.Delete(ctx, fileid.FileDocID(abs))
	var nf *apperr.NotFoundError
	if err != nil && !errors.As(err, &nf) {
		return err
	}
	return nil
}

func (p *Pipeline) ingestAs(ctx context.Context, docID, filename string, content []byte, opts models.IngestOptions) (*models.IngestResult, error) {
	start := time.Now()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	text, err := extract.Extract(filename, content)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validationf("no extractable text in %s", filename)
	}

	ck := p.chunker
	if opts.ChunkSize > 0 || opts.ChunkOverlap > 0 {
		size, overlap := opts.ChunkSize, opts.ChunkOverlap
		if size <= 0 {
			size = p.cfg.ChunkSize
		}
		if overlap <= 0 {
			overlap = p.cfg.ChunkOverlap
		}
		ck = chunker.New(size, overlap, chunker.WithLogger(p.logger))
	}

	pieces := ck.Chunk(text)
	if len(pieces) == 0 {
		return nil, apperr.Validationf("document %s produced no chunks", filename)
	}
	chunks := ck.BuildMetadata(docID, filename, pieces)

	vectors, err := p.embedder.EmbedBatch(ctx, pieces)
	if err != nil {
		return nil, err
	}

	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:             docID,
		Filename:       filename,
		ChunkCount:     len(chunks),
		CharacterCount: len(text),
	}
	if err := p.registry.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	// Any corpus mutation can change retrieval results.
	p.tiers.InvalidateQueries()
	p.tiers.Documents.Set(docID, doc)

	p.logger.Info("document ingested",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)),
		zap.Int("characters", len(text)))

	return &models.IngestResult{
		DocumentID:     docID,
		Filename:       filename,
		ChunkCount:     len(chunks),
		CharacterCount: len(text),
		ChunkConfig: models.ChunkConfig{
			ChunkSize:    ck.ChunkSize(),
			ChunkOverlap: ck.ChunkOverlap(),
		},
		ProcessingTime: elapsed(start),
	}, nil
}

// Query answers a question from the ingested corpus.
func (p *Pipeline) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Verification responses are never cached; a verify request must not be
	// served a cached unverified answer either.
	useCache := !req.SkipCache && !req.Verify
	key := cache.QueryKey(req.Query, req.TopK, req.DocumentID, req.Rerank)
	if useCache {
		if cached, ok := p.tiers.Queries.Get(key); ok {
			hit := *cached
			hit.Cached = true
			hit.ProcessingTime = elapsed(start)
			return &hit, nil
		}
	}

	if req.DocumentID != "" {
		if _, err := p.GetDocument(ctx, req.DocumentID); err != nil {
			return nil, err
		}
	}

	vector, err := p.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	k := req.TopK
	if req.Rerank {
		k = req.TopK * 3
		if k > retrievalCap {
			k = retrievalCap
		}
	}
	passages, err := p.store.Query(ctx, vector, k, req.DocumentID)
	if err != nil {
		return nil, err
	}

	if len(passages) == 0 {
		zero := 0
		return &models.QueryResponse{
			Answer: noResultsAnswer,
			Confidence: models.ConfidenceScore{
				Score:  &zero,
				Reason: "No relevant documents found",
				Level:  models.ConfidenceNone,
			},
			Sources:        []models.Source{},
			Query:          req.Query,
			TopK:           req.TopK,
			Reranked:       false,
			ProcessingTime: elapsed(start),
		}, nil
	}

	if req.Rerank {
		passages = rerank.Rerank(req.Query, passages, req.TopK, p.cfg.VectorWeight, p.cfg.KeywordWeight)
	} else if len(passages) > req.TopK {
		passages = passages[:req.TopK]
	}

	raw, err := p.llm.GenerateAnswer(ctx, req.Query, passages, req.Temperature)
	if err != nil {
		return nil, err
	}
	answer, confidence := llm.ParseConfidence(raw)

	resp := &models.QueryResponse{
		Answer:         answer,
		Confidence:     confidence,
		Sources:        buildSources(passages, req.IncludeSourceMetadata()),
		Query:          req.Query,
		TopK:           req.TopK,
		Reranked:       req.Rerank,
		ChunksUsed:     len(passages),
		ProcessingTime: elapsed(start),
	}

	if req.Verify {
		verification, err := p.llm.VerifyAnswer(ctx, answer, passages)
		if err != nil {
			p.logger.Warn("answer verification failed", zap.Error(err))
		} else {
			resp.Verification = verification
		}
	}

	if useCache {
		p.tiers.Queries.Set(key, resp)
	}
	return resp, nil
}

// Compare contrasts two documents on a topic.
func (p *Pipeline) Compare(ctx context.Context, req *models.CompareRequest) (*models.CompareResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, id := range req.DocumentIDs {
		if _, err := p.GetDocument(ctx, id); err != nil {
			return nil, err
		}
	}

	vector, err := p.embedder.Embed(ctx, req.Topic)
	if err != nil {
		return nil, err
	}

	// Retrieval is per document so one document cannot crowd out the other.
	doc1, err := p.store.Query(ctx, vector, req.TopK, req.DocumentIDs[0])
	if err != nil {
		return nil, err
	}
	doc2, err := p.store.Query(ctx, vector, req.TopK, req.DocumentIDs[1])
	if err != nil {
		return nil, err
	}

	result := &models.CompareResult{
		Structured:        req.Structured,
		Doc1Sources:       buildSources(doc1, true),
		Doc2Sources:       buildSources(doc2, true),
		Topic:             req.Topic,
		DocumentsCompared: req.DocumentIDs,
	}

	if len(doc1) == 0 && len(doc2) == 0 {
		result.Comparison = "Neither document contains content related to the comparison topic."
		result.ProcessingTime = elapsed(start)
		return result, nil
	}

	if req.Structured {
		cmp, err := p.llm.GenerateStructuredComparison(ctx, req.Topic, doc1, doc2)
		if err != nil {
			return nil, err
		}
		result.StructuredResult = cmp
	} else {
		comparison, err := p.llm.GenerateComparison(ctx, req.Topic, doc1, doc2)
		if err != nil {
			return nil, err
		}
		result.Comparison = comparison
	}
	result.ProcessingTime = elapsed(start)
	return result, nil
}

// Delete removes a document from the store and registry and invalidates the
// caches that could still serve it.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	if err := p.registry.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	p.tiers.InvalidateQueries()
	p.tiers.Documents.Delete(documentID)

	p.logger.Info("document deleted", zap.String("document_id", documentID))
	return nil
}

// GetDocument returns a registry entry, cache-first.
func (p *Pipeline) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	if doc, ok := p.tiers.Documents.Get(documentID); ok {
		return doc, nil
	}
	doc, err := p.registry.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	p.tiers.Documents.Set(documentID, doc)
	return doc, nil
}

// ListDocuments returns all registry entries, newest first.
func (p *Pipeline) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return p.registry.ListDocuments(ctx)
}

// Stats summarizes the corpus and cache state.
func (p *Pipeline) Stats(ctx context.Context) (*models.Stats, error) {
	docs, err := p.registry.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	totalDocs, err := p.registry.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	totalChunks, err := p.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &models.Stats{
		TotalDocuments: totalDocs,
		TotalChunks:    totalChunks,
		Documents:      docs,
		Cache:          p.tiers.Stats(),
	}, nil
}

func buildSources(passages []*models.RetrievedPassage, includePreview bool) []models.Source {
	sources := make([]models.Source, len(passages))
	for i, p := range passages {
		s := models.Source{
			Filename:        p.Filename,
			ChunkIndex:      p.ChunkIndex,
			DocumentID:      p.DocumentID,
			SimilarityScore: p.SimilarityScore,
			RerankScore:     p.RerankScore,
			OriginalRank:    p.OriginalRank,
		}
		if includePreview {
			s.Preview = utils.Truncate(p.Text, sourcePreviewLen)
		}
		sources[i] = s
	}
	return sources
}

func elapsed(start time.Time) string {
	return fmt.Sprintf("%.2fs", time.Since(start).Seconds())
}
