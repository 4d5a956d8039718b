package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kotaehq/kotae/internal/models"
)

// jsonFence strips markdown code fences some models wrap JSON output in.
var jsonFence = regexp.MustCompile("```(?:json)?\n?|\n?```")

// GenerateAnswer asks the model to answer query using only the retrieved
// passages. The raw response still carries the confidence annotation; callers
// strip it with ParseConfidence.
func (c *Client) GenerateAnswer(ctx context.Context, query string, passages []*models.RetrievedPassage, temperature *float64) (string, error) {
	messages := []Message{
		{Role: "system", Content: querySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Context:\n%s\n\n---\nQuestion: %s", formatContext(passages, ""), query)},
	}
	return c.Complete(ctx, messages, temperature, 0)
}

// GenerateComparison produces a plain-text comparison of two passage sets.
func (c *Client) GenerateComparison(ctx context.Context, topic string, doc1, doc2 []*models.RetrievedPassage) (string, error) {
	messages := []Message{
		{Role: "system", Content: compareSystemPrompt},
		{Role: "user", Content: comparisonUserPrompt(topic, doc1, doc2)},
	}
	return c.Complete(ctx, messages, nil, 2048)
}

// GenerateStructuredComparison asks for the JSON comparison shape. Output
// that fails to parse degrades to an empty skeleton carrying the raw text;
// a malformed model response never fails the request.
func (c *Client) GenerateStructuredComparison(ctx context.Context, topic string, doc1, doc2 []*models.RetrievedPassage) (*models.Comparison, error) {
	messages := []Message{
		{Role: "system", Content: compareStructuredSystemPrompt},
		{Role: "user", Content: comparisonUserPrompt(topic, doc1, doc2)},
	}
	temp := 0.1
	response, err := c.Complete(ctx, messages, &temp, 2500)
	if err != nil {
		return nil, err
	}

	meta := models.ComparisonMetadata{
		Doc1ChunksAnalyzed: len(doc1),
		Doc2ChunksAnalyzed: len(doc2),
		Topic:              topic,
	}

	var cmp models.Comparison
	cleaned := strings.TrimSpace(jsonFence.ReplaceAllString(response, ""))
	if err := json.Unmarshal([]byte(cleaned), &cmp); err != nil {
		meta.ParseError = true
		return &models.Comparison{
			Similarities: []models.ComparisonPoint{},
			Differences:  []models.ComparisonDifference{},
			UniqueToDoc1: []models.ComparisonUnique{},
			UniqueToDoc2: []models.ComparisonUnique{},
			Summary: models.ComparisonSummary{
				OverallAssessment: "Comparison generated but JSON parsing failed",
				AgreementLevel:    "unknown",
				KeyTakeaway:       "See rawComparison field",
			},
			Metadata:      meta,
			RawComparison: response,
		}, nil
	}
	cmp.Metadata = meta
	return &cmp, nil
}

// VerifyAnswer asks the model to check each claim in answer against the
// passages. Unparseable output degrades to an unverified skeleton with the
// raw response attached.
func (c *Client) VerifyAnswer(ctx context.Context, answer string, passages []*models.RetrievedPassage) (*models.Verification, error) {
	messages := []Message{
		{Role: "system", Content: verificationSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"SOURCE CONTEXT:\n%s\n\n---\nANSWER TO VERIFY:\n%s\n\n---\nVerify this answer against the source context.",
			formatContext(passages, ""), answer)},
	}
	temp := 0.1
	response, err := c.Complete(ctx, messages, &temp, 1500)
	if err != nil {
		return nil, err
	}

	var v models.Verification
	cleaned := strings.TrimSpace(jsonFence.ReplaceAllString(response, ""))
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return &models.Verification{
			Claims:            []models.Claim{},
			UnsupportedClaims: []string{},
			Summary:           "Verification parsing failed",
			RawResponse:       response,
		}, nil
	}
	if v.Claims == nil {
		v.Claims = []models.Claim{}
	}
	if v.UnsupportedClaims == nil {
		v.UnsupportedClaims = []string{}
	}
	return &v, nil
}

// formatContext renders passages as labeled blocks the prompts cite by
// filename and chunk index.
func formatContext(passages []*models.RetrievedPassage, label string) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		header := fmt.Sprintf("[%s, Chunk %d]", p.Filename, p.ChunkIndex)
		if label != "" {
			header = fmt.Sprintf("[%s | %s, Chunk %d]", label, p.Filename, p.ChunkIndex)
		}
		parts[i] = header + "\n" + p.Text
	}
	return strings.Join(parts, "\n\n")
}

func comparisonUserPrompt(topic string, doc1, doc2 []*models.RetrievedPassage) string {
	return fmt.Sprintf(
		"Document 1 Context:\n%s\n\n---\nDocument 2 Context:\n%s\n\n---\nComparison Topic: %s",
		formatContext(doc1, "Document 1"),
		formatContext(doc2, "Document 2"),
		topic,
	)
}
