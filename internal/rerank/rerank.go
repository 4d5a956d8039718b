// Package rerank re-scores retrieved passages with a fused vector/lexical score.
//
// The lexical signal is a BM25-style score computed against the candidate set
// only: document frequencies come from the retrieved passages, not the whole
// corpus, so no external term index is needed. Fusing it with the vector
// similarity is a cheap approximation of cross-encoder re-ranking that
// recovers exact keyword and entity matches the embedding alone can miss.
package rerank

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/kotaehq/kotae/internal/models"
)

// BM25 constants. avgDocLen is a fixed prior rather than a measured value;
// candidate sets are too small for a meaningful average.
const (
	k1        = 1.5
	b         = 0.75
	avgDocLen = 200.0
)

// Default fusion weights.
const (
	DefaultVectorWeight  = 0.5
	DefaultKeywordWeight = 0.5
)

// Rerank reorders passages descending by the fused score
// vectorWeight*similarity + keywordWeight*bm25 and annotates each passage
// with RerankScore, KeywordScore, and OriginalRank (1-based, pre-rerank).
// The passage set is never changed, only reordered and truncated to topN
// (0 means no truncation). Zero or one passages are returned as-is; a query
// with no usable tokens disables the lexical leg and returns the input
// unchanged.
func Rerank(query string, passages []*models.RetrievedPassage, topN int, vectorWeight, keywordWeight float64) []*models.RetrievedPassage {
	if len(passages) == 0 {
		return passages
	}
	if len(passages) == 1 {
		score := passages[0].SimilarityScore
		passages[0].RerankScore = &score
		passages[0].OriginalRank = 1
		return passages
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return passages
	}

	// Document frequency across the candidate set only.
	docFreq := make(map[string]int)
	docTokens := make([][]string, len(passages))
	for i, p := range passages {
		tokens := tokenize(p.Text)
		docTokens[i] = tokens
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				docFreq[tok]++
			}
		}
	}

	n := len(passages)
	for i, p := range passages {
		kw := bm25Score(queryTokens, docTokens[i], docFreq, n)
		fused := vectorWeight*p.SimilarityScore + keywordWeight*kw
		p.RerankScore = &fused
		p.KeywordScore = &kw
		p.OriginalRank = i + 1
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return *passages[i].RerankScore > *passages[j].RerankScore
	})

	if topN > 0 && topN < len(passages) {
		passages = passages[:topN]
	}
	return passages
}

// tokenize lowercases, splits on non-alphanumeric boundaries, and drops
// tokens of length <= 1.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// bm25Score accumulates idf*tf_norm over the query tokens present in the
// document, normalized by an empirical upper bound of 3 per query token and
// clamped to [0,1].
func bm25Score(queryTokens, docTokens []string, docFreq map[string]int, nDocs int) float64 {
	dl := float64(len(docTokens))
	if dl == 0 {
		return 0
	}
	tf := make(map[string]int, len(docTokens))
	for _, tok := range docTokens {
		tf[tok]++
	}

	var score float64
	for _, term := range queryTokens {
		freq := float64(tf[term])
		df := float64(docFreq[term])
		if freq == 0 || df == 0 {
			continue
		}
		idf := math.Log((float64(nDocs)-df+0.5)/(df+0.5) + 1)
		tfNorm := (freq * (k1 + 1)) / (freq + k1*(1-b+b*(dl/avgDocLen)))
		score += idf * tfNorm
	}

	maxPossible := float64(len(queryTokens)) * 3.0
	return math.Min(score/maxPossible, 1.0)
}
