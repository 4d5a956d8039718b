package llm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kotaehq/kotae/internal/models"
)

// confidencePattern matches the trailing confidence annotation the query
// system prompt asks for, anchored at the end of the response.
var confidencePattern = regexp.MustCompile(`(?is)\[CONFIDENCE:\s*(\d+)\s*/\s*10\s*\|\s*REASON:\s*(.+?)\]\s*$`)

// ParseConfidence extracts the trailing [CONFIDENCE: X/10 | REASON: ...]
// annotation from a model response. Returns the answer with the annotation
// stripped and the parsed score. When the annotation is absent, the text is
// returned unmodified with a nil score and level "unknown". Model output is
// best-effort and an unparsed annotation is never an error.
func ParseConfidence(response string) (string, models.ConfidenceScore) {
	m := confidencePattern.FindStringSubmatch(response)
	if m == nil {
		return response, models.ConfidenceScore{
			Reason: "Confidence not provided",
			Level:  models.ConfidenceUnknown,
		}
	}

	answer := strings.TrimSpace(confidencePattern.ReplaceAllString(response, ""))
	score, err := strconv.Atoi(m[1])
	if err != nil {
		return answer, models.ConfidenceScore{
			Reason: "Confidence not provided",
			Level:  models.ConfidenceUnknown,
		}
	}

	return answer, models.ConfidenceScore{
		Score:  &score,
		Reason: strings.TrimSpace(m[2]),
		Level:  confidenceLevel(score),
	}
}

func confidenceLevel(score int) string {
	switch {
	case score >= 9:
		return models.ConfidenceVeryHigh
	case score >= 7:
		return models.ConfidenceHigh
	case score >= 5:
		return models.ConfidenceMedium
	case score >= 3:
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}
