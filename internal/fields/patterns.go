package fields

import (
	"regexp"

	"autolearn/pkg/models"
)

// Pattern is one extraction rule for a named record field.
type Pattern struct {
	ID    string
	Field string
	Regex *regexp.Regexp
}

func newPattern(scope, field, expr string) Pattern {
	return Pattern{
		ID:    scope + "." + field,
		Field: field,
		Regex: regexp.MustCompile(expr),
	}
}

// Dates like 12/03/1921, 1-5-98 or "March 4, 1932".
const (
	numericDate = `\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}`
	properName  = `[A-Z][a-z]+\s+[A-Z][a-z]+`
)

var commonPatterns = []Pattern{
	newPattern("common", "full_name", `(`+properName+`(?:\s+[A-Z][a-z]+)?)`),
	newPattern("common", "date", `(`+numericDate+`)|(\w+\s+\d{1,2},?\s+\d{4})`),
	newPattern("common", "location", `(?i)([\w\s]+(?:Church|Parish|Cathedral|Chapel))`),
	newPattern("common", "clergy", `\b((?:[Ff]ather|[Ff]r\.|[Pp]riest|[Aa]rchpriest|[Dd]eacon|[Bb]ishop)\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
}

var recordPatterns = map[models.RecordType][]Pattern{
	models.RecordTypeBaptism: {
		newPattern("baptism", "birth_date", `(?i)(?:born|birth)[\s:]*(`+numericDate+`)`),
		newPattern("baptism", "baptism_date", `(?i)(?:baptized|baptism)[\s:]*(`+numericDate+`)`),
		newPattern("baptism", "parents", `(?:[Pp]arents|[Ff]ather|[Mm]other)[\s:]*(`+properName+`)`),
	},
	models.RecordTypeMarriage: {
		newPattern("marriage", "bride_name", `(?:[Bb]ride|[Ww]ife)[\s:]*(`+properName+`)`),
		newPattern("marriage", "groom_name", `(?:[Gg]room|[Hh]usband)[\s:]*(`+properName+`)`),
		newPattern("marriage", "marriage_date", `(?i)(?:married|marriage|wedding)[\s:]*(`+numericDate+`)`),
		newPattern("marriage", "witnesses", `(?:[Ww]itness(?:es)?)[\s:]*(`+properName+`)`),
	},
	models.RecordTypeFuneral: {
		newPattern("funeral", "death_date", `(?i)(?:died|death|deceased)[\s:]*(`+numericDate+`)`),
		newPattern("funeral", "funeral_date", `(?i)(?:funeral|burial|service)[\s:]*(`+numericDate+`)`),
		newPattern("funeral", "age", `(?i)(?:age|aged)[\s:]*(\d{1,3})`),
	},
}

// PatternsFor returns the common patterns followed by the record-specific ones.
func PatternsFor(recordType models.RecordType) []Pattern {
	specific := recordPatterns[recordType]
	out := make([]Pattern, 0, len(commonPatterns)+len(specific))
	out = append(out, commonPatterns...)
	return append(out, specific...)
}
