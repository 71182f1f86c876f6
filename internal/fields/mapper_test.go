package fields

import (
	"math"
	"reflect"
	"testing"

	"autolearn/pkg/models"
)

const funeralText = "Funeral of Maria Georgiou. Died: 02/11/1950. Burial: 05/11/1950. Aged 84."

const baptismText = "Baptism of John Smith. Born: 12/03/1921. Baptized: 15/04/1921. " +
	"Parents: Peter Smith. Father Nicholas Papadopoulos, Holy Trinity Church."

const marriageText = "Marriage of Nicholas Pappas and Maria Kostas. Married: 05/06/1930. " +
	"Groom: Nicholas Pappas. Bride: Maria Kostas. Witness: Peter Demos. " +
	"Officiated by father George Ionas at St. Spyridon Church."

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMapIsDeterministic(t *testing.T) {
	m := NewMapper()

	first := m.Map(baptismText, models.RecordTypeBaptism, 0.9)
	second := m.Map(baptismText, models.RecordTypeBaptism, 0.9)

	if len(first) == 0 {
		t.Fatal("Map() returned no fields")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Map() not deterministic:\n%v\n%v", first, second)
	}
}

func TestMapBlankText(t *testing.T) {
	m := NewMapper()
	for _, text := range []string{"", "   ", "\n\t "} {
		if got := m.Map(text, models.RecordTypeFuneral, 0.9); len(got) != 0 {
			t.Errorf("Map(%q) = %v, want empty", text, got)
		}
	}
}

func TestMapFuneralFields(t *testing.T) {
	got := NewMapper().Map(funeralText, models.RecordTypeFuneral, 0.9)

	tests := []struct {
		field      string
		value      string
		matches    int
		confidence float64
		patternID  string
	}{
		{"death_date", "02/11/1950", 1, 0.63, "funeral.death_date"},
		{"funeral_date", "05/11/1950", 1, 0.63, "funeral.funeral_date"},
		{"age", "84", 1, 0.63, "funeral.age"},
		{"date", "02/11/1950", 2, 0.81, "common.date"},
		{"full_name", "Maria Georgiou", 1, 0.63, "common.full_name"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := got[tt.field]
			if !ok {
				t.Fatalf("field %q missing from %v", tt.field, got.Names())
			}
			if f.FieldName != tt.field {
				t.Errorf("FieldName = %q, want %q", f.FieldName, tt.field)
			}
			if f.Value != tt.value {
				t.Errorf("Value = %q, want %q", f.Value, tt.value)
			}
			if f.MatchCount != tt.matches {
				t.Errorf("MatchCount = %d, want %d", f.MatchCount, tt.matches)
			}
			if !almostEqual(f.Confidence, tt.confidence) {
				t.Errorf("Confidence = %v, want %v", f.Confidence, tt.confidence)
			}
			if f.PatternID != tt.patternID {
				t.Errorf("PatternID = %q, want %q", f.PatternID, tt.patternID)
			}
		})
	}

	for _, absent := range []string{"location", "clergy", "birth_date", "bride_name"} {
		if _, ok := got[absent]; ok {
			t.Errorf("field %q unexpectedly present", absent)
		}
	}
}

func TestMapBaptismFields(t *testing.T) {
	got := NewMapper().Map(baptismText, models.RecordTypeBaptism, 0.8)

	want := map[string]string{
		"birth_date":   "12/03/1921",
		"baptism_date": "15/04/1921",
		"parents":      "Peter Smith",
		"clergy":       "Father Nicholas Papadopoulos",
	}
	for field, value := range want {
		f, ok := got[field]
		if !ok {
			t.Errorf("field %q missing", field)
			continue
		}
		if f.Value != value {
			t.Errorf("%s = %q, want %q", field, f.Value, value)
		}
	}

	if _, ok := got["location"]; !ok {
		t.Error("location missing")
	}
	if _, ok := got["death_date"]; ok {
		t.Error("funeral field extracted from a baptism record")
	}
}

func TestMapMarriageFields(t *testing.T) {
	got := NewMapper().Map(marriageText, models.RecordTypeMarriage, 0.9)

	tests := []struct {
		field     string
		value     string
		patternID string
	}{
		{"bride_name", "Maria Kostas", "marriage.bride_name"},
		{"groom_name", "Nicholas Pappas", "marriage.groom_name"},
		{"marriage_date", "05/06/1930", "marriage.marriage_date"},
		{"witnesses", "Peter Demos", "marriage.witnesses"},
		{"clergy", "father George Ionas", "common.clergy"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, ok := got[tt.field]
			if !ok {
				t.Fatalf("field %q missing from %v", tt.field, got.Names())
			}
			if f.Value != tt.value {
				t.Errorf("Value = %q, want %q", f.Value, tt.value)
			}
			if f.PatternID != tt.patternID {
				t.Errorf("PatternID = %q, want %q", f.PatternID, tt.patternID)
			}
		})
	}

	for _, absent := range []string{"birth_date", "death_date", "age"} {
		if _, ok := got[absent]; ok {
			t.Errorf("field %q unexpectedly present", absent)
		}
	}
}

func TestClergyInsideWord(t *testing.T) {
	got := NewMapper().Map("Blessed by archpriest Basil Demos.", models.RecordTypeMarriage, 0.9)
	if f := got["clergy"]; f.Value != "archpriest Basil Demos" {
		t.Errorf("clergy = %q, want %q", f.Value, "archpriest Basil Demos")
	}
}

func TestMapDefaultBaseConfidence(t *testing.T) {
	got := NewMapper().Map(funeralText, models.RecordTypeFuneral, 0)
	if f := got["age"]; !almostEqual(f.Confidence, DefaultBaseConfidence*0.7) {
		t.Errorf("age confidence = %v, want %v", f.Confidence, DefaultBaseConfidence*0.7)
	}
}

func TestFieldConfidence(t *testing.T) {
	tests := []struct {
		base    float64
		matches int
		want    float64
	}{
		{0.9, 1, 0.63},
		{0.9, 2, 0.81},
		{1.0, 5, 0.9},
		{2.0, 2, MaxFieldConfidence},
		{2.0, 1, MaxFieldConfidence},
	}
	for _, tt := range tests {
		if got := FieldConfidence(tt.base, tt.matches); !almostEqual(got, tt.want) {
			t.Errorf("FieldConfidence(%v, %d) = %v, want %v", tt.base, tt.matches, got, tt.want)
		}
	}
}

func TestFieldMapAverageConfidence(t *testing.T) {
	m := FieldMap{
		"a": {Confidence: 0.6},
		"b": {Confidence: 0.8},
	}
	if got := m.AverageConfidence(); !almostEqual(got, 0.7) {
		t.Errorf("AverageConfidence() = %v, want 0.7", got)
	}
	if got := (FieldMap{}).AverageConfidence(); got != 0 {
		t.Errorf("empty AverageConfidence() = %v, want 0", got)
	}
	if names := m.Names(); !reflect.DeepEqual(names, []string{"a", "b"}) {
		t.Errorf("Names() = %v", names)
	}
}
