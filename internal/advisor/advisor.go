// Package advisor asks a chat model for regex improvements on fields the
// learning rules flag as weak.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"autolearn/internal/fields"
	"autolearn/internal/learning"
	"autolearn/internal/logger"
	"autolearn/internal/store"
	"autolearn/pkg/models"
)

const (
	// DefaultLimit caps the number of rules sent to the model per call.
	DefaultLimit = 5

	maxSamples      = 3
	maxSampleLength = 600
)

// ChatCompleter is the part of *openai.Client the advisor uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Suggestion is the model's answer for one field improvement rule.
type Suggestion struct {
	RuleID         string            `json:"rule_id"`
	RecordType     models.RecordType `json:"record_type"`
	FieldName      string            `json:"field"`
	CurrentPattern string            `json:"current_pattern"`
	Pattern        string            `json:"pattern"`
	Confidence     float64           `json:"confidence"`
	Reason         string            `json:"reason"`
}

// Advisor produces pattern suggestions for field improvement rules.
type Advisor struct {
	client ChatCompleter
	model  string
	log    zerolog.Logger
}

// New creates an advisor. An empty model selects gpt-4o-mini.
func New(client ChatCompleter, model string) *Advisor {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Advisor{
		client: client,
		model:  model,
		log:    logger.WithComponent("advisor"),
	}
}

// Advise asks for a suggestion on the most frequent field improvement rules.
// Sample OCR text for each rule's record type is taken from records. Rules the
// model cannot answer for are logged and skipped.
func (a *Advisor) Advise(ctx context.Context, doc *learning.Document, records []store.ResultRecord, limit int) ([]Suggestion, error) {
	const op = "Advise"

	if doc == nil {
		return nil, fmt.Errorf("%s: %w", op, store.ErrNoRules)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	rules := rankRules(doc.FieldImprovements())
	if len(rules) > limit {
		rules = rules[:limit]
	}

	a.log.Info().
		Int("candidates", len(doc.FieldImprovements())).
		Int("selected", len(rules)).
		Str("model", a.model).
		Msg("Requesting pattern suggestions")

	suggestions := make([]Suggestion, 0, len(rules))
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return suggestions, fmt.Errorf("%s: %w", op, err)
		}

		suggestion, err := a.suggest(ctx, rule, samplesFor(records, rule.RecordType))
		if err != nil {
			a.log.Warn().
				Err(err).
				Str("rule", rule.Key().ID()).
				Msg("Failed to get pattern suggestion, skipping rule")
			continue
		}
		suggestions = append(suggestions, *suggestion)
	}

	return suggestions, nil
}

// rankRules orders rules by frequency, then by lowest confidence.
func rankRules(rules []*learning.FieldImprovementRule) []*learning.FieldImprovementRule {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Frequency != rules[j].Frequency {
			return rules[i].Frequency > rules[j].Frequency
		}
		return rules[i].Confidence < rules[j].Confidence
	})
	return rules
}

// samplesFor returns up to maxSamples primary-engine texts for a record type,
// most recent first.
func samplesFor(records []store.ResultRecord, recordType models.RecordType) []string {
	var samples []string
	for i := len(records) - 1; i >= 0 && len(samples) < maxSamples; i-- {
		rec := records[i]
		if rec.RecordType != recordType {
			continue
		}
		for _, res := range rec.OCRResults {
			if res.EngineID != rec.Analysis.PrimaryEngine || strings.TrimSpace(res.Text) == "" {
				continue
			}
			text := []rune(res.Text)
			if len(text) > maxSampleLength {
				text = text[:maxSampleLength]
			}
			samples = append(samples, string(text))
			break
		}
	}
	return samples
}

func currentPattern(rule *learning.FieldImprovementRule) string {
	for _, p := range fields.PatternsFor(rule.RecordType) {
		if p.ID == rule.PatternID {
			return p.Regex.String()
		}
	}
	return ""
}

func (a *Advisor) suggest(ctx context.Context, rule *learning.FieldImprovementRule, samples []string) (*Suggestion, error) {
	const op = "suggest"

	current := currentPattern(rule)

	samplesJSON, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal samples JSON: %w", op, err)
	}

	prompt := fmt.Sprintf(`You improve Go regular expressions (RE2 syntax) that extract fields from OCR text of Orthodox parish %s records. Text is English or Greek.

FIELD: %s
CURRENT PATTERN: %s
CURRENT CONFIDENCE: %.2f (seen %d times)
NOTE: %s

SAMPLE OCR TEXT:
%s

The pattern must contain exactly one capture group holding the field value.

Reply only with JSON in this format:
{
  "pattern": "...",
  "confidence": 0.8,
  "reason": "why the new pattern matches better"
}`, rule.RecordType, rule.FieldName, current, rule.Confidence, rule.Frequency, rule.Suggestion, string(samplesJSON))

	a.log.Debug().
		Str("rule", rule.Key().ID()).
		Int("samples", len(samples)).
		Msg("Sending pattern request to ChatGPT")

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: ChatGPT request failed: %w", op, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no response choices from ChatGPT", op)
	}

	var answer struct {
		Pattern    string  `json:"pattern"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	cleaned := cleanResponse(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response %q: %w", op, cleaned, err)
	}

	if err := validatePattern(answer.Pattern); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Suggestion{
		RuleID:         rule.Key().ID(),
		RecordType:     rule.RecordType,
		FieldName:      rule.FieldName,
		CurrentPattern: current,
		Pattern:        answer.Pattern,
		Confidence:     answer.Confidence,
		Reason:         answer.Reason,
	}, nil
}

// cleanResponse strips a markdown code fence around the model's JSON.
func cleanResponse(response string) string {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// validatePattern rejects suggestions that are not RE2 or lack a capture group.
func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty pattern suggested")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("suggested pattern does not compile: %w", err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("suggested pattern %q has no capture group", pattern)
	}
	return nil
}
