package learning

import (
	"fmt"
	"strings"
	"time"

	"autolearn/pkg/models"
)

// RuleType tags the variant of a learning rule.
type RuleType string

const (
	TypeFieldImprovement RuleType = "field_improvement"
	TypeEngineComparison RuleType = "engine_comparison"
	TypePatternSuccess   RuleType = "pattern_success"
)

// Issue classifications.
const (
	IssueLowConfidence      = "low_confidence"
	IssueEngineDisagreement = "engine_disagreement"
)

// maxDisagreementSamples bounds the samples kept on an engine comparison rule.
const maxDisagreementSamples = 20

// RuleKey identifies a rule. Observations with the same key merge into one rule.
type RuleKey struct {
	Type       RuleType
	FieldName  string
	PatternID  string
	RecordType models.RecordType
}

// ID renders the key as a stable, human-readable rule identifier.
func (k RuleKey) ID() string {
	parts := []string{string(k.Type), string(k.RecordType)}
	if k.FieldName != "" {
		parts = append(parts, k.FieldName)
	}
	if k.PatternID != "" {
		parts = append(parts, k.PatternID)
	}
	return strings.Join(parts, ":")
}

// Rule is one of *FieldImprovementRule, *EngineComparisonRule or
// *PatternSuccessRule.
type Rule interface {
	Key() RuleKey
	Occurrences() int
	clone() Rule
}

// FieldImprovementRule flags a field whose extraction confidence is low. Its
// confidence and suggestion always reflect the latest observation.
type FieldImprovementRule struct {
	ID         string            `json:"id"`
	Type       RuleType          `json:"type"`
	FieldName  string            `json:"field"`
	PatternID  string            `json:"pattern"`
	RecordType models.RecordType `json:"record_type"`
	Issue      string            `json:"issue"`
	Confidence float64           `json:"current_confidence"`
	Suggestion string            `json:"suggestion"`
	Frequency  int               `json:"frequency"`
	LastSeen   time.Time         `json:"timestamp"`
}

func (r *FieldImprovementRule) Key() RuleKey {
	return RuleKey{Type: TypeFieldImprovement, FieldName: r.FieldName, PatternID: r.PatternID, RecordType: r.RecordType}
}

func (r *FieldImprovementRule) Occurrences() int { return r.Frequency }

func (r *FieldImprovementRule) clone() Rule {
	c := *r
	return &c
}

// ComparisonSample is one engine disagreement observation.
type ComparisonSample struct {
	Filename          string  `json:"filename"`
	TextSimilarity    float64 `json:"text_similarity"`
	ConfidenceDelta   float64 `json:"confidence_difference"`
	RecommendedEngine string  `json:"recommended_engine"`
}

// EngineComparisonRule aggregates engine disagreements for one record type.
type EngineComparisonRule struct {
	ID                string             `json:"id"`
	Type              RuleType           `json:"type"`
	RecordType        models.RecordType  `json:"record_type"`
	Issue             string             `json:"issue"`
	TextSimilarity    float64            `json:"text_similarity"`
	ConfidenceDelta   float64            `json:"confidence_difference"`
	AverageSimilarity float64            `json:"average_similarity"`
	AverageDelta      float64            `json:"average_confidence_difference"`
	RecommendedEngine string             `json:"recommended_engine"`
	Suggestion        string             `json:"suggestion"`
	Frequency         int                `json:"frequency"`
	Samples           []ComparisonSample `json:"samples"`
	LastSeen          time.Time          `json:"timestamp"`
}

func (r *EngineComparisonRule) Key() RuleKey {
	return RuleKey{Type: TypeEngineComparison, RecordType: r.RecordType}
}

func (r *EngineComparisonRule) Occurrences() int { return r.Frequency }

func (r *EngineComparisonRule) clone() Rule {
	c := *r
	c.Samples = append([]ComparisonSample(nil), r.Samples...)
	return &c
}

// PatternSuccessRule tracks a pattern that reliably extracts a field.
type PatternSuccessRule struct {
	ID                string            `json:"id"`
	Type              RuleType          `json:"type"`
	FieldName         string            `json:"field"`
	PatternID         string            `json:"pattern"`
	RecordType        models.RecordType `json:"record_type"`
	AverageConfidence float64           `json:"average_confidence"`
	Suggestion        string            `json:"suggestion"`
	Frequency         int               `json:"frequency"`
	LastSeen          time.Time         `json:"timestamp"`
}

func (r *PatternSuccessRule) Key() RuleKey {
	return RuleKey{Type: TypePatternSuccess, FieldName: r.FieldName, PatternID: r.PatternID, RecordType: r.RecordType}
}

func (r *PatternSuccessRule) Occurrences() int { return r.Frequency }

func (r *PatternSuccessRule) clone() Rule {
	c := *r
	return &c
}

// FieldSuggestion picks the improvement advice for a confidence band.
func FieldSuggestion(fieldName string, confidence float64) string {
	switch {
	case confidence < 0.3:
		return fmt.Sprintf("Consider alternative pattern for %s extraction", fieldName)
	case confidence < 0.5:
		return fmt.Sprintf("Improve preprocessing for %s field clarity", fieldName)
	case confidence < 0.7:
		return fmt.Sprintf("Refine pattern matching for %s", fieldName)
	default:
		return fmt.Sprintf("Monitor %s extraction patterns", fieldName)
	}
}

// ComparisonSuggestion advises on an engine disagreement.
func ComparisonSuggestion(similarity float64, recommended string) string {
	if similarity < 0.5 {
		return "Consider image preprocessing"
	}
	return fmt.Sprintf("Prefer %s for similar images", recommended)
}

func patternSuccessSuggestion(fieldName string, recordType models.RecordType) string {
	return fmt.Sprintf("Pattern works well for %s in %s records", fieldName, recordType)
}
