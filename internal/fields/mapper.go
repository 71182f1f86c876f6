// Package fields extracts named record fields from OCR text using a static
// table of regular expressions per record type.
package fields

import (
	"math"
	"sort"
	"strings"

	"autolearn/pkg/models"
)

const (
	// DefaultBaseConfidence is used when the OCR engine reported no confidence.
	DefaultBaseConfidence = 0.5

	// MaxFieldConfidence caps every derived field confidence.
	MaxFieldConfidence = 0.95

	multiMatchFactor  = 0.9
	singleMatchFactor = 0.7
)

// MappedField is one extracted field for one image.
type MappedField struct {
	FieldName  string  `json:"field_name"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	PatternID  string  `json:"pattern_id"`
}

// FieldMap holds the fields found in one text, keyed by field name. Fields
// whose pattern did not match are absent.
type FieldMap map[string]MappedField

// Names returns the field names in sorted order.
func (m FieldMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AverageConfidence is the mean field confidence, 0 for an empty map.
func (m FieldMap) AverageConfidence() float64 {
	if len(m) == 0 {
		return 0
	}
	var sum float64
	for _, f := range m {
		sum += f.Confidence
	}
	return sum / float64(len(m))
}

// Mapper applies the pattern table. The zero value is ready to use.
type Mapper struct{}

// NewMapper returns a Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map extracts every field whose pattern matches text. Patterns are applied
// independently of each other. Blank text yields an empty map.
func (m *Mapper) Map(text string, recordType models.RecordType, baseConfidence float64) FieldMap {
	out := FieldMap{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	if baseConfidence <= 0 {
		baseConfidence = DefaultBaseConfidence
	}

	for _, p := range PatternsFor(recordType) {
		matches := p.Regex.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}

		value := firstValue(matches[0])
		if value == "" {
			continue
		}

		out[p.Field] = MappedField{
			FieldName:  p.Field,
			Value:      value,
			Confidence: FieldConfidence(baseConfidence, len(matches)),
			MatchCount: len(matches),
			PatternID:  p.ID,
		}
	}

	return out
}

// FieldConfidence derives a field confidence from the engine confidence and
// the number of pattern matches.
func FieldConfidence(base float64, matches int) float64 {
	factor := singleMatchFactor
	if matches > 1 {
		factor = multiMatchFactor
	}
	return math.Min(base*factor, MaxFieldConfidence)
}

// firstValue returns the first non-empty capture group, or the whole match
// when the pattern has no groups.
func firstValue(match []string) string {
	for _, group := range match[1:] {
		if v := strings.TrimSpace(group); v != "" {
			return v
		}
	}
	return strings.TrimSpace(match[0])
}
