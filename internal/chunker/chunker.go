// Package chunker splits document text into overlapping, sentence-aligned chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kotaehq/kotae/internal/models"
	"github.com/kotaehq/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 100
)

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// Chunker splits text into sentence-aware chunks with a character overlap.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger // optional
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLogger sets a logger for overlap-clamp warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// New creates a chunker. Non-positive size or overlap fall back to the defaults.
// An overlap >= size is clamped to 20% of size rather than rejected.
func New(chunkSize, chunkOverlap int, opts ...Option) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	c := &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.chunkOverlap >= c.chunkSize {
		clamped := c.chunkSize / 5
		if c.logger != nil {
			c.logger.Warn("chunk overlap >= chunk size, clamping",
				zap.Int("overlap", c.chunkOverlap),
				zap.Int("chunk_size", c.chunkSize),
				zap.Int("clamped", clamped),
			)
		}
		c.chunkOverlap = clamped
	}
	return c
}

// Chunk splits text into overlapping, sentence-aware chunks. Sentences are
// packed greedily up to the chunk size; each new chunk is seeded with whole
// trailing sentences of the previous one up to the overlap budget. A single
// sentence longer than the chunk size is force-split at the character level.
// Empty or whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []string
	var buf []string
	bufLen := 0

	for _, sentence := range sentences {
		sLen := len(sentence)

		// An oversized sentence cannot be packed; flush and force-split.
		if sLen > c.chunkSize {
			if len(buf) > 0 {
				chunks = append(chunks, strings.Join(buf, " "))
			}
			chunks = append(chunks, c.forceSplit(sentence)...)
			buf = nil
			bufLen = 0
			continue
		}

		sep := 0
		if len(buf) > 0 {
			sep = 1
		}
		if bufLen+sep+sLen > c.chunkSize && len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, " "))
			buf = overlapTail(buf, c.chunkOverlap)
			bufLen = joinedLen(buf)
			if len(buf) > 0 {
				sep = 1
			} else {
				sep = 0
			}
		}
		buf = append(buf, sentence)
		bufLen += sep + sLen
	}

	if len(buf) > 0 {
		remaining := strings.TrimSpace(strings.Join(buf, " "))
		if remaining != "" {
			// A tail shorter than the overlap would be a near-duplicate of the
			// previous chunk's seed; fold it in instead.
			if len(chunks) > 0 && len(remaining) < c.chunkOverlap {
				chunks[len(chunks)-1] += " " + remaining
			} else {
				chunks = append(chunks, remaining)
			}
		}
	}

	return chunks
}

// BuildMetadata builds Chunk records for the chunk texts of one document.
func (c *Chunker) BuildMetadata(documentID, filename string, chunks []string) []models.Chunk {
	total := len(chunks)
	out := make([]models.Chunk, total)
	for i, text := range chunks {
		out[i] = models.Chunk{
			ID:          fmt.Sprintf("%s_chunk_%d", documentID, i),
			DocumentID:  documentID,
			Filename:    filename,
			Index:       i,
			TotalChunks: total,
			Text:        text,
			WordCount:   utils.CountWords(text),
		}
	}
	return out
}

// ChunkSize returns the configured chunk size in characters.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the effective overlap in characters (after clamping).
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }

// splitSentences splits text at sentence-ending punctuation followed by
// whitespace, discarding empty fragments.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// overlapTail returns the longest run of whole trailing sentences whose
// cumulative length stays within overlap characters. Sentences are never split
// to fit the budget exactly.
func overlapTail(sentences []string, overlap int) []string {
	var tail []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		sLen := len(sentences[i])
		if total+sLen > overlap {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		total += sLen
	}
	return tail
}

func joinedLen(sentences []string) int {
	n := 0
	for _, s := range sentences {
		n += len(s)
	}
	if len(sentences) > 1 {
		n += len(sentences) - 1
	}
	return n
}

// forceSplit splits an oversized sentence at the character level. The step of
// max(size-overlap, 1) guarantees forward progress for any parameters.
func (c *Chunker) forceSplit(text string) []string {
	step := c.chunkSize - c.chunkOverlap
	if step < 1 {
		step = 1
	}
	var chunks []string
	for start := 0; start < len(text); start += step {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}
		if part := strings.TrimSpace(text[start:end]); part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks
}
