package compare

import (
	"math"
	"testing"

	"autolearn/internal/ocr"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"Γεώργιος", "Γεωργιος", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein([]rune(tt.a), []rune(tt.b)); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "John Smith", "John Smith", 1.0},
		{"both empty", "", "", 1.0},
		{"empty side", "", "Holy Trinity Church", 1.0},
		{"other empty side", "Holy Trinity Church", "", 1.0},
		{"one edit in ten", "abcdefghij", "abcdefghiX", 0.9},
		{"completely different", "aaaa", "bbbb", 0.0},
		{"length differs", "kitten", "sitting", 4.0 / 7.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if back := Similarity(tt.b, tt.a); math.Abs(back-got) > 1e-12 {
				t.Errorf("Similarity not symmetric: %v vs %v", got, back)
			}
			if got < 0 || got > 1 {
				t.Errorf("Similarity out of range: %v", got)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	cloud := func(text string, conf float64) ocr.Result {
		return ocr.Result{EngineID: ocr.EngineGoogleVision, EngineKind: ocr.KindCloud, Text: text, Confidence: conf}
	}
	local := func(text string, conf float64) ocr.Result {
		return ocr.Result{EngineID: ocr.EngineTesseract, EngineKind: ocr.KindLocal, Text: text, Confidence: conf}
	}

	t.Run("empty engine output", func(t *testing.T) {
		failed := ocr.Result{EngineID: ocr.EngineGoogleVision, EngineKind: ocr.KindCloud, Error: "network unreachable"}
		c := Compare(failed, local("Baptism of John Smith", 0.85))

		if c.TextSimilarity != 1.0 {
			t.Errorf("TextSimilarity = %v, want 1.0", c.TextSimilarity)
		}
		if math.Abs(c.ConfidenceDelta-0.85) > 1e-9 {
			t.Errorf("ConfidenceDelta = %v, want 0.85", c.ConfidenceDelta)
		}
		if c.RecommendedEngine != ocr.EngineTesseract {
			t.Errorf("RecommendedEngine = %q, want %q", c.RecommendedEngine, ocr.EngineTesseract)
		}
		if c.Agreement {
			t.Error("Agreement = true for different texts")
		}
	})

	t.Run("tie prefers cloud", func(t *testing.T) {
		for _, c := range []Comparison{
			Compare(cloud("a", 0.8), local("b", 0.8)),
			Compare(local("b", 0.8), cloud("a", 0.8)),
		} {
			if c.RecommendedEngine != ocr.EngineGoogleVision {
				t.Errorf("RecommendedEngine = %q, want cloud engine", c.RecommendedEngine)
			}
		}
	})

	t.Run("agreement is exact", func(t *testing.T) {
		if c := Compare(cloud("Maria", 0.9), local("Maria", 0.7)); !c.Agreement {
			t.Error("Agreement = false for identical texts")
		}
		if c := Compare(cloud("Maria", 0.9), local("Maria ", 0.7)); c.Agreement {
			t.Error("Agreement = true for texts differing in whitespace")
		}
	})

	t.Run("delta is absolute", func(t *testing.T) {
		c := Compare(cloud("x", 0.6), local("x", 0.95))
		if math.Abs(c.ConfidenceDelta-0.35) > 1e-9 {
			t.Errorf("ConfidenceDelta = %v, want 0.35", c.ConfidenceDelta)
		}
		if c.RecommendedEngine != ocr.EngineTesseract {
			t.Errorf("RecommendedEngine = %q, want tesseract", c.RecommendedEngine)
		}
	})
}
