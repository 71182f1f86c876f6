package learning

import (
	"encoding/json"
	"fmt"
	"time"
)

// DocumentVersion is written into every rules document.
const DocumentVersion = "1.0.0"

// Categories lists rule IDs by rule type.
type Categories struct {
	FieldImprovements []string `json:"field_improvements"`
	EngineComparisons []string `json:"engine_comparisons"`
	PatternSuccesses  []string `json:"pattern_successes"`
	Other             []string `json:"other"`
}

// Document is the persisted form of the rule table.
type Document struct {
	Version     string     `json:"version"`
	GeneratedAt time.Time  `json:"generated_at"`
	TotalRules  int        `json:"total_rules"`
	Rules       []Rule     `json:"rules"`
	Categories  Categories `json:"categories"`
}

// Document snapshots the rule table.
func (e *Engine) Document() *Document {
	rules := e.Rules()
	doc := &Document{
		Version:     DocumentVersion,
		GeneratedAt: e.now().UTC(),
		TotalRules:  len(rules),
		Rules:       rules,
		Categories: Categories{
			FieldImprovements: []string{},
			EngineComparisons: []string{},
			PatternSuccesses:  []string{},
			Other:             []string{},
		},
	}

	for _, r := range rules {
		id := r.Key().ID()
		switch r.Key().Type {
		case TypeFieldImprovement:
			doc.Categories.FieldImprovements = append(doc.Categories.FieldImprovements, id)
		case TypeEngineComparison:
			doc.Categories.EngineComparisons = append(doc.Categories.EngineComparisons, id)
		case TypePatternSuccess:
			doc.Categories.PatternSuccesses = append(doc.Categories.PatternSuccesses, id)
		default:
			doc.Categories.Other = append(doc.Categories.Other, id)
		}
	}

	return doc
}

// UnmarshalJSON decodes each rule into its concrete type using the "type" tag.
func (d *Document) UnmarshalJSON(data []byte) error {
	type plain Document
	var raw struct {
		plain
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Document(raw.plain)
	d.Rules = make([]Rule, 0, len(raw.Rules))
	for i, msg := range raw.Rules {
		rule, err := decodeRule(msg)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		d.Rules = append(d.Rules, rule)
	}
	return nil
}

func decodeRule(msg json.RawMessage) (Rule, error) {
	var tag struct {
		Type RuleType `json:"type"`
	}
	if err := json.Unmarshal(msg, &tag); err != nil {
		return nil, err
	}

	var rule Rule
	switch tag.Type {
	case TypeFieldImprovement:
		rule = &FieldImprovementRule{}
	case TypeEngineComparison:
		rule = &EngineComparisonRule{}
	case TypePatternSuccess:
		rule = &PatternSuccessRule{}
	default:
		return nil, fmt.Errorf("unknown rule type %q", tag.Type)
	}

	if err := json.Unmarshal(msg, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// FieldImprovements returns the field improvement rules of the document.
func (d *Document) FieldImprovements() []*FieldImprovementRule {
	var out []*FieldImprovementRule
	for _, r := range d.Rules {
		if fi, ok := r.(*FieldImprovementRule); ok {
			out = append(out, fi)
		}
	}
	return out
}
