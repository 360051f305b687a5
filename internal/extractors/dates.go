package extractors

import (
	"strconv"
	"strings"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/models"
)

const (
	reYear        = `(?<!\d)(?:שנת\s+)?(1[4-9][0-9]{2})(?!\d)`
	reCentury     = `(?:ה?מאה\s+ה?)(1[4-9]|20)(?!\s*\d)`
	reYearRange   = reYear + `\s*(?:-|–|—|/|\\)\s*` + reYear
	dateContext   = 20
	rangeScore    = 0.9
	dateScore     = 0.85
	minDateLength = 4
)

type datePattern struct {
	name    string
	pattern *hebrew.Pattern
}

// Ranges run first so the range value is recorded before its endpoints.
var datePatterns = []datePattern{
	{"year_range", hebrew.MustCompileIgnoreCase(reYearRange)},
	{"gregorian_year", hebrew.MustCompileIgnoreCase(reYear)},
	{"century_digit", hebrew.MustCompile(reCentury)},
}

var hebrewMonths = map[string]struct{}{
	"תשרי": {}, "חשון": {}, "כסלו": {}, "טבת": {}, "שבט": {}, "אדר": {}, "ניסן": {},
	"אייר": {}, "סיון": {}, "תמוז": {}, "אב": {}, "אלול": {}, "מרחשון": {},
}

func isMonth(s string) bool {
	_, ok := hebrewMonths[s]
	return ok
}

func IsValidYear(s string) bool {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && y >= 1400 && y <= 2100
}

// ExtractDates finds year ranges, years and centuries, keeping the first occurrence
// of each normalised value.
func ExtractDates(text string) []models.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var out []models.ExtractedEntity
	seen := map[string]struct{}{}

	for _, dp := range datePatterns {
		for _, m := range dp.pattern.FindAllString(text) {
			value := strings.TrimSpace(m.Text)
			key := strings.ToLower(hebrew.StripNikud(value))
			if _, dup := seen[key]; dup {
				continue
			}
			if hebrew.RuneLen(value) < minDateLength || isMonth(value) {
				continue
			}

			score := dateScore
			if dp.name == "year_range" {
				score = rangeScore
			}
			e, err := models.NewExtractedEntity(value, models.EntityDate, score,
				hebrew.Window(text, m.Start, m.End, dateContext),
				models.WithSpan(m.Start, m.End),
				models.WithMetadata(map[string]string{"pattern": dp.name}),
			)
			if err != nil {
				continue
			}
			out = append(out, e)
			seen[key] = struct{}{}
		}
	}
	return out
}
