package learning

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"autolearn/internal/compare"
	"autolearn/internal/fields"
	"autolearn/pkg/models"
)

func baptismImage(name string) models.ImageDescriptor {
	return models.ImageDescriptor{
		Path:       "/records/baptism/" + name,
		Filename:   name,
		RecordType: models.RecordTypeBaptism,
		Extension:  ".jpg",
	}
}

func field(name string, confidence float64, matches int) fields.MappedField {
	return fields.MappedField{
		FieldName:  name,
		Value:      "value",
		Confidence: confidence,
		MatchCount: matches,
		PatternID:  "baptism." + name,
	}
}

func newTestEngine() *Engine {
	e := NewEngine()
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestPatternSuccessMergesByKey(t *testing.T) {
	e := newTestEngine()
	mapped := fields.FieldMap{"birth_date": field("birth_date", 0.9, 2)}

	e.Observe(baptismImage("a.jpg"), mapped, compare.Comparison{})
	touched := e.Observe(baptismImage("b.jpg"), mapped, compare.Comparison{})

	if e.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", e.Len())
	}
	if len(touched) != 1 {
		t.Fatalf("touched = %d rules, want 1", len(touched))
	}

	rule, ok := touched[0].(*PatternSuccessRule)
	if !ok {
		t.Fatalf("touched rule is %T, want *PatternSuccessRule", touched[0])
	}
	if rule.Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", rule.Frequency)
	}
	if math.Abs(rule.AverageConfidence-0.9) > 1e-9 {
		t.Errorf("AverageConfidence = %v, want 0.9", rule.AverageConfidence)
	}
	if rule.Suggestion != "Pattern works well for birth_date in baptism records" {
		t.Errorf("Suggestion = %q", rule.Suggestion)
	}
}

func TestPatternSuccessIncrementalMean(t *testing.T) {
	e := newTestEngine()
	for _, c := range []float64{0.81, 0.9, 0.93} {
		e.Observe(baptismImage("x.jpg"), fields.FieldMap{"age": field("age", c, 3)}, compare.Comparison{})
	}

	rule := e.Rules()[0].(*PatternSuccessRule)
	want := (0.81 + 0.9 + 0.93) / 3
	if math.Abs(rule.AverageConfidence-want) > 1e-9 {
		t.Errorf("AverageConfidence = %v, want %v", rule.AverageConfidence, want)
	}
}

func TestFieldImprovementBands(t *testing.T) {
	tests := []struct {
		confidence float64
		suggestion string
	}{
		{0.2, "Consider alternative pattern for parents extraction"},
		{0.35, "Improve preprocessing for parents field clarity"},
		{0.63, "Refine pattern matching for parents"},
	}

	e := newTestEngine()
	for _, tt := range tests {
		touched := e.Observe(baptismImage("a.jpg"), fields.FieldMap{"parents": field("parents", tt.confidence, 1)}, compare.Comparison{})
		if len(touched) != 1 {
			t.Fatalf("confidence %v: touched %d rules, want 1", tt.confidence, len(touched))
		}
		rule := touched[0].(*FieldImprovementRule)
		if rule.Suggestion != tt.suggestion {
			t.Errorf("confidence %v: Suggestion = %q, want %q", tt.confidence, rule.Suggestion, tt.suggestion)
		}
		if rule.Confidence != tt.confidence {
			t.Errorf("Confidence = %v, want latest %v", rule.Confidence, tt.confidence)
		}
		if rule.Issue != IssueLowConfidence {
			t.Errorf("Issue = %q", rule.Issue)
		}
	}

	if e.Len() != 1 {
		t.Errorf("Len() = %d, want 1 merged rule", e.Len())
	}
	if got := e.Rules()[0].Occurrences(); got != 3 {
		t.Errorf("Occurrences() = %d, want 3", got)
	}
}

func TestNoRuleBetweenThresholds(t *testing.T) {
	e := newTestEngine()
	touched := e.Observe(baptismImage("a.jpg"), fields.FieldMap{"date": field("date", 0.75, 1)}, compare.Comparison{ConfidenceDelta: 0.2})
	if len(touched) != 0 || e.Len() != 0 {
		t.Errorf("expected no rules, got %d touched, %d total", len(touched), e.Len())
	}
}

func TestEngineComparisonRule(t *testing.T) {
	e := newTestEngine()

	touched := e.Observe(baptismImage("a.jpg"), nil, compare.Comparison{
		TextSimilarity:    1.0,
		ConfidenceDelta:   0.85,
		RecommendedEngine: "tesseract",
	})
	if len(touched) != 1 {
		t.Fatalf("touched %d rules, want 1", len(touched))
	}
	rule := touched[0].(*EngineComparisonRule)
	if rule.Suggestion != "Prefer tesseract for similar images" {
		t.Errorf("Suggestion = %q", rule.Suggestion)
	}
	if rule.RecommendedEngine != "tesseract" {
		t.Errorf("RecommendedEngine = %q", rule.RecommendedEngine)
	}

	touched = e.Observe(baptismImage("b.jpg"), nil, compare.Comparison{
		TextSimilarity:    0.4,
		ConfidenceDelta:   0.45,
		RecommendedEngine: "google_vision",
	})
	rule = touched[0].(*EngineComparisonRule)
	if rule.Suggestion != "Consider image preprocessing" {
		t.Errorf("Suggestion = %q", rule.Suggestion)
	}
	if rule.Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", rule.Frequency)
	}
	if math.Abs(rule.AverageSimilarity-0.7) > 1e-9 || math.Abs(rule.AverageDelta-0.65) > 1e-9 {
		t.Errorf("averages = %v/%v, want 0.7/0.65", rule.AverageSimilarity, rule.AverageDelta)
	}
	if len(rule.Samples) != 2 || rule.Samples[1].Filename != "b.jpg" {
		t.Errorf("Samples = %+v", rule.Samples)
	}
}

func TestEngineComparisonSamplesBounded(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < maxDisagreementSamples+5; i++ {
		e.Observe(baptismImage("a.jpg"), nil, compare.Comparison{TextSimilarity: 0.9, ConfidenceDelta: 0.3, RecommendedEngine: "google_vision"})
	}

	rule := e.Rules()[0].(*EngineComparisonRule)
	if len(rule.Samples) != maxDisagreementSamples {
		t.Errorf("len(Samples) = %d, want %d", len(rule.Samples), maxDisagreementSamples)
	}
	if rule.Frequency != maxDisagreementSamples+5 {
		t.Errorf("Frequency = %d", rule.Frequency)
	}
}

func TestObserveReturnsCopies(t *testing.T) {
	e := newTestEngine()
	touched := e.Observe(baptismImage("a.jpg"), fields.FieldMap{"age": field("age", 0.9, 2)}, compare.Comparison{})
	touched[0].(*PatternSuccessRule).Frequency = 100

	if got := e.Rules()[0].Occurrences(); got != 1 {
		t.Errorf("internal rule mutated through returned copy: frequency %d", got)
	}
}

func TestDocumentRoundTripSeedsEngine(t *testing.T) {
	e := newTestEngine()
	e.Observe(baptismImage("a.jpg"), fields.FieldMap{
		"age":     field("age", 0.9, 2),
		"parents": field("parents", 0.35, 1),
	}, compare.Comparison{TextSimilarity: 0.3, ConfidenceDelta: 0.5, RecommendedEngine: "google_vision"})

	doc := e.Document()
	if doc.Version != DocumentVersion || doc.TotalRules != 3 {
		t.Fatalf("doc = %s/%d, want %s/3", doc.Version, doc.TotalRules, DocumentVersion)
	}
	if len(doc.Categories.FieldImprovements) != 1 || len(doc.Categories.EngineComparisons) != 1 ||
		len(doc.Categories.PatternSuccesses) != 1 || len(doc.Categories.Other) != 0 {
		t.Errorf("Categories = %+v", doc.Categories)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"field_improvements"`) {
		t.Errorf("categories key missing from %s", data)
	}

	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Rules) != 3 {
		t.Fatalf("decoded %d rules, want 3", len(decoded.Rules))
	}
	if len(decoded.FieldImprovements()) != 1 {
		t.Errorf("FieldImprovements() = %d, want 1", len(decoded.FieldImprovements()))
	}

	seeded := newTestEngine()
	seeded.Load(&decoded)
	seeded.Observe(baptismImage("b.jpg"), fields.FieldMap{"age": field("age", 0.9, 2)}, compare.Comparison{})

	if seeded.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after seeding", seeded.Len())
	}
	for _, r := range seeded.Rules() {
		if ps, ok := r.(*PatternSuccessRule); ok && ps.Frequency != 2 {
			t.Errorf("seeded pattern success frequency = %d, want 2", ps.Frequency)
		}
	}
}

func TestDecodeUnknownRuleType(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"version":"1.0.0","rules":[{"type":"mystery"}]}`), &doc)
	if err == nil {
		t.Fatal("expected error for unknown rule type")
	}
}
