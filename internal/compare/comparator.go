// Package compare measures how far apart two OCR engine outputs for the same
// image are and picks the engine to prefer.
package compare

import (
	"math"

	"autolearn/internal/ocr"
)

// Comparison is derived from two results and embedded in the per-image analysis.
type Comparison struct {
	TextSimilarity    float64 `json:"text_similarity"`
	ConfidenceDelta   float64 `json:"confidence_delta"`
	RecommendedEngine string  `json:"recommended_engine"`
	Agreement         bool    `json:"agreement"`
}

// Compare scores a against b. The higher-confidence engine is recommended;
// ties go to the cloud engine, then to a.
func Compare(a, b ocr.Result) Comparison {
	return Comparison{
		TextSimilarity:    Similarity(a.Text, b.Text),
		ConfidenceDelta:   math.Abs(a.Confidence - b.Confidence),
		RecommendedEngine: recommend(a, b).EngineID,
		Agreement:         a.Text == b.Text,
	}
}

func recommend(a, b ocr.Result) ocr.Result {
	switch {
	case a.Confidence > b.Confidence:
		return a
	case b.Confidence > a.Confidence:
		return b
	case b.EngineKind == ocr.KindCloud && a.EngineKind != ocr.KindCloud:
		return b
	default:
		return a
	}
}

// Similarity returns (len(longer) - distance) / len(longer) over runes.
// Identical strings and strings with an empty side score 1.0: there is
// nothing to disagree on.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 1.0
	}

	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}

	return float64(longer-Levenshtein(ra, rb)) / float64(longer)
}

// Levenshtein is the edit distance between a and b using two rolling rows.
func Levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
