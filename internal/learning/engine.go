// Package learning turns per-image observations into merged learning rules:
// weak fields that need a better pattern, record types on which the two OCR
// engines disagree, and patterns that extract a field reliably.
package learning

import (
	"time"

	"autolearn/internal/compare"
	"autolearn/internal/fields"
	"autolearn/internal/logger"
	"autolearn/pkg/models"
)

// Trigger thresholds.
const (
	LowConfidenceThreshold     = 0.7
	DisagreementDeltaThreshold = 0.2
	SuccessConfidenceThreshold = 0.8
)

// Engine holds the rule table for one run. It is owned by the processing loop
// and is not safe for concurrent use.
type Engine struct {
	rules map[RuleKey]Rule
	order []RuleKey
	now   func() time.Time
}

// NewEngine creates an empty rule table.
func NewEngine() *Engine {
	return &Engine{
		rules: make(map[RuleKey]Rule),
		now:   time.Now,
	}
}

// Observe applies the three rule triggers for one processed image and returns
// copies of the rules it created or updated.
func (e *Engine) Observe(image models.ImageDescriptor, mapped fields.FieldMap, cmp compare.Comparison) []Rule {
	var touched []Rule
	now := e.now()

	for _, name := range mapped.Names() {
		field := mapped[name]
		if field.Confidence < LowConfidenceThreshold {
			touched = append(touched, e.upsertFieldImprovement(image, field, now))
		}
	}

	if cmp.ConfidenceDelta > DisagreementDeltaThreshold {
		touched = append(touched, e.upsertEngineComparison(image, cmp, now))
	}

	for _, name := range mapped.Names() {
		field := mapped[name]
		if field.Confidence > SuccessConfidenceThreshold && field.MatchCount > 0 {
			touched = append(touched, e.upsertPatternSuccess(image, field, now))
		}
	}

	out := make([]Rule, len(touched))
	for i, r := range touched {
		out[i] = r.clone()
	}
	return out
}

func (e *Engine) upsertFieldImprovement(image models.ImageDescriptor, field fields.MappedField, now time.Time) Rule {
	key := RuleKey{Type: TypeFieldImprovement, FieldName: field.FieldName, PatternID: field.PatternID, RecordType: image.RecordType}

	rule, ok := e.rules[key].(*FieldImprovementRule)
	if !ok {
		rule = &FieldImprovementRule{
			ID:         key.ID(),
			Type:       TypeFieldImprovement,
			FieldName:  field.FieldName,
			PatternID:  field.PatternID,
			RecordType: image.RecordType,
			Issue:      IssueLowConfidence,
		}
		e.insert(key, rule)

		log := logger.WithComponent("learning")
		log.Info().
			Str("rule_id", rule.ID).
			Float64("confidence", field.Confidence).
			Msgf("Generated field improvement rule for %s", field.FieldName)
	}

	rule.Frequency++
	rule.Confidence = field.Confidence
	rule.Suggestion = FieldSuggestion(field.FieldName, field.Confidence)
	rule.LastSeen = now
	return rule
}

func (e *Engine) upsertEngineComparison(image models.ImageDescriptor, cmp compare.Comparison, now time.Time) Rule {
	key := RuleKey{Type: TypeEngineComparison, RecordType: image.RecordType}

	rule, ok := e.rules[key].(*EngineComparisonRule)
	if !ok {
		rule = &EngineComparisonRule{
			ID:         key.ID(),
			Type:       TypeEngineComparison,
			RecordType: image.RecordType,
			Issue:      IssueEngineDisagreement,
		}
		e.insert(key, rule)

		log := logger.WithComponent("learning")
		log.Info().
			Str("rule_id", rule.ID).
			Float64("similarity", cmp.TextSimilarity).
			Str("recommended", cmp.RecommendedEngine).
			Msg("Generated engine comparison rule")
	}

	rule.Frequency++
	n := float64(rule.Frequency)
	rule.AverageSimilarity += (cmp.TextSimilarity - rule.AverageSimilarity) / n
	rule.AverageDelta += (cmp.ConfidenceDelta - rule.AverageDelta) / n
	rule.TextSimilarity = cmp.TextSimilarity
	rule.ConfidenceDelta = cmp.ConfidenceDelta
	rule.RecommendedEngine = cmp.RecommendedEngine
	rule.Suggestion = ComparisonSuggestion(cmp.TextSimilarity, cmp.RecommendedEngine)
	rule.LastSeen = now

	rule.Samples = append(rule.Samples, ComparisonSample{
		Filename:          image.Filename,
		TextSimilarity:    cmp.TextSimilarity,
		ConfidenceDelta:   cmp.ConfidenceDelta,
		RecommendedEngine: cmp.RecommendedEngine,
	})
	if len(rule.Samples) > maxDisagreementSamples {
		rule.Samples = append([]ComparisonSample(nil), rule.Samples[len(rule.Samples)-maxDisagreementSamples:]...)
	}
	return rule
}

func (e *Engine) upsertPatternSuccess(image models.ImageDescriptor, field fields.MappedField, now time.Time) Rule {
	key := RuleKey{Type: TypePatternSuccess, FieldName: field.FieldName, PatternID: field.PatternID, RecordType: image.RecordType}

	rule, ok := e.rules[key].(*PatternSuccessRule)
	if !ok {
		rule = &PatternSuccessRule{
			ID:         key.ID(),
			Type:       TypePatternSuccess,
			FieldName:  field.FieldName,
			PatternID:  field.PatternID,
			RecordType: image.RecordType,
			Suggestion: patternSuccessSuggestion(field.FieldName, image.RecordType),
		}
		e.insert(key, rule)
	}

	rule.Frequency++
	rule.AverageConfidence += (field.Confidence - rule.AverageConfidence) / float64(rule.Frequency)
	rule.LastSeen = now
	return rule
}

func (e *Engine) insert(key RuleKey, rule Rule) {
	e.rules[key] = rule
	e.order = append(e.order, key)
}

// Len returns the number of distinct rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Rules returns copies of all rules in creation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, 0, len(e.order))
	for _, key := range e.order {
		out = append(out, e.rules[key].clone())
	}
	return out
}

// Load seeds the table from a previously written rules document. Rules whose
// key is already present are replaced.
func (e *Engine) Load(doc *Document) {
	if doc == nil {
		return
	}
	for _, r := range doc.Rules {
		key := r.Key()
		if _, exists := e.rules[key]; !exists {
			e.order = append(e.order, key)
		}
		e.rules[key] = r.clone()
	}
}
