package export

import (
	"sort"
	"strings"

	"github.com/hebrew-ms/backend/internal/models"
)

// NewData marks an entity found only in the free-text note fields.
const NewData = "new data"

var structuredFields = map[models.EntityType][]string{
	models.EntityDate:     {"008", "046$a", "046$b", "046$d", "260$c", "264$c"},
	models.EntityLocation: {"034$a", "260$a", "264$a", "651$a", "751$a"},
	models.EntityPerson:   {"100$a", "100$e", "600$a", "700$a", "700$e", "710$a"},
}

// StructuredFields lists the catalog fields that already carry entities of the given type.
func StructuredFields(t models.EntityType) []string {
	return append([]string(nil), structuredFields[t]...)
}

// SourceField names the structured fields that already hold value (any of its words counts),
// joined with "; ". Entities present only in the notes are NewData.
func SourceField(value string, metadata map[string]string, t models.EntityType) string {
	fields := structuredFields[t]
	if len(fields) == 0 || len(metadata) == 0 {
		return NewData
	}

	words := strings.Fields(value)
	var found []string
	for _, f := range fields {
		content, ok := metadata[f]
		if !ok {
			continue
		}
		if strings.Contains(content, value) || containsAny(content, words) {
			found = append(found, f)
		}
	}
	if len(found) == 0 {
		return NewData
	}
	sort.Strings(found)
	return strings.Join(found, "; ")
}

func containsAny(s string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
