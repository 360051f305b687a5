package patterns

import (
	"strings"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/validator"
)

const (
	RelationProduction  = "production place"
	RelationPublished   = "published in"
	RelationBorn        = "born in"
	RelationDied        = "died in"
	RelationResided     = "resided in"
	RelationWorked      = "worked in"
	RelationTransferred = "transferred to"
	RelationPreserved   = "preserved in"
	RelationActive      = "active in"
	RelationPrinted     = "printed in"
)

const (
	locationContextRadius = 100
	broaderRadius         = 500
	earlyMentionShare     = 0.3
)

var locationFamilies = []family{
	newFamily(RelationProduction,
		`נכתב\s+ב`,
		`נכתב\s+עיר`,
		`נכתב\s+פה`,
		`הועתק\s+ב`,
		`הועתק\s+עיר`,
		`נעשה\s+ב`,
		`נשלם\s+ב(?:עיר)?`,
		`נגמר\s+ב`,
		`סיימתיו\s+ב`,
		`כתוב\s+ב`,
		`קולופון.*?נכתב\s+ב`,
		`קולופון.*?נשלם\s+ב`,
		`קולופון.*?הועתק\s+ב`,
	),
	newFamily(RelationPublished,
		`נדפס\s+ב`,
		`הוצא\s+לאור\s+ב`,
		`דפוס`,
		`נדפס\s+עיר`,
		`הודפס\s+ב`,
	),
	newFamily(RelationBorn,
		`נולד\s+ב`,
		`יליד`,
		`ילידת`,
		`מולדתו`,
	),
	newFamily(RelationDied,
		`נפטר\s+ב`,
		`מת\s+ב`,
		`נקבר\s+ב`,
		`פטירתו\s+ב`,
	),
	newFamily(RelationResided,
		`גר\s+ב`,
		`ישב\s+ב`,
		`דר\s+ב`,
		`מגורים\s+ב`,
		`התגורר\s+ב`,
		`מושבו\s+ב`,
		`בהיותי\s+ב`,
		`בהיותו\s+ב`,
		`בהיותם\s+ב`,
		`בורח\s+מ`,
		`מתגורר\s+ב`,
	),
	newFamily(RelationWorked,
		`עבד\s+ב`,
		`פעל\s+ב`,
		`שימש\s+ב`,
		`כיהן\s+ב`,
		`היה\s+רב\s+ב`,
	),
	newFamily(RelationTransferred,
		`הועבר\s+ל`,
		`נמסר\s+ל`,
		`הובא\s+מ`,
		`נשלח\s+ל`,
		`נמכר\s+ל`,
		`נרכש\s+(?:ע(?:"י|י)|מ)`,
		`לפנים`,
		`מאוסף`,
	),
	newFamily(RelationPreserved,
		`נמצא\s+(?:כיום\s+)?ב`,
		`שמור\s+(?:כיום\s+)?ב`,
		`ספריית`,
		`באוסף`,
		`בספרייה`,
		`ומספרו\s+(?:עתה|שם)`,
		`מספרו\s+עתה`,
	),
}

type heuristic struct {
	label   string
	pattern *hebrew.Pattern
}

// Applied to ±500 runes around the mention when no explicit marker matched.
var broaderHeuristics = []heuristic{
	{RelationProduction, hebrew.MustCompileIgnoreCase(`קולופון|נשלם\s+(?:בעיר)?|הועתק|נכתב(?:\s+בעיר)?`)},
	{RelationPreserved, hebrew.MustCompileIgnoreCase(`ספריית|באוסף|בעלות|בידי|נמצא\s+ב|שמור\s+ב|repository|archive`)},
	{RelationTransferred, hebrew.MustCompileIgnoreCase(`מאוסף|לפנים|בעבר|מיד|הועבר|נמכר|לקוח`)},
	{RelationResided, hebrew.MustCompileIgnoreCase(`גר\s+ב|ישב\s+ב|דר\s+ב|מושבו|עיר|חי\s+ב`)},
}

// A list separator followed by a Hebrew word reads as a provenance chain.
var listContinuation = hebrew.MustCompile(`[,;]\s*(?:ו)?(?:ג)?[א-ת]`)

var subjectMarker = hebrew.MustCompileIgnoreCase(`נושא|subject|subject matter|תחום`)

var keywordHeuristics = []struct {
	label    string
	keywords []string
}{
	{RelationProduction, []string{"ספר", "כתב", "כתיבה", "כתיבת"}},
	{RelationPrinted, []string{"הדפס", "הדפסה", "דפוס", "print"}},
	{RelationProduction, []string{"מעתיק", "העתק", "העתקה", "copy"}},
}

var locationRelations = func() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(label string) {
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			out = append(out, label)
		}
	}
	for _, f := range locationFamilies {
		add(f.label)
	}
	add(RelationActive)
	add(RelationPrinted)
	return out
}()

// LocationRelations lists every relation ClassifyLocation can return.
func LocationRelations() []string {
	return append([]string(nil), locationRelations...)
}

// locationContext finds the mention as "ב"+base, base, then the qualified name.
func locationContext(text, location string) (string, bool) {
	base := validator.Base(location)
	variants := []string{"ב" + base, base}
	if location != base {
		variants = append(variants, location)
	}
	for _, v := range variants {
		if v == "" {
			continue
		}
		p, err := hebrew.Compile(`(?i)` + hebrew.Escape(v))
		if err != nil {
			continue
		}
		if m, ok := p.FindString(text); ok {
			return hebrew.Window(text, m.Start, m.End, locationContextRadius), true
		}
	}
	return "", false
}

// ClassifyLocation returns the relation of a place to the manuscript. Once the place is
// found in text it always yields a relation, falling back to the production place.
// A place that does not occur in text is not classified.
func ClassifyLocation(text, location string) (string, bool) {
	context, ok := locationContext(text, location)
	if !ok || strings.TrimSpace(context) == "" {
		return "", false
	}

	for _, f := range locationFamilies {
		if hebrew.AnyMatch(f.patterns, context) {
			return f.label, true
		}
	}

	pos := hebrew.Index(text, context)
	if pos < 0 {
		pos = 0
	}
	broader := hebrew.Slice(text, pos-broaderRadius, pos) + hebrew.Slice(text, pos, pos+broaderRadius)

	for _, h := range broaderHeuristics {
		if h.pattern.MatchString(broader) {
			return h.label, true
		}
	}
	if listContinuation.MatchString(context) {
		return RelationTransferred, true
	}
	if subjectMarker.MatchString(broader) {
		return RelationActive, true
	}

	if mention, err := hebrew.Compile(`(?i)` + hebrew.Escape(location)); err == nil {
		if mention.CountString(text) == 1 && float64(pos) < float64(hebrew.RuneLen(text))*earlyMentionShare {
			return RelationProduction, true
		}
	}

	lower := strings.ToLower(context)
	for _, kh := range keywordHeuristics {
		for _, kw := range kh.keywords {
			if strings.Contains(lower, kw) {
				return kh.label, true
			}
		}
	}
	return RelationProduction, true
}

// ClassifyLocations classifies each distinct place; places absent from text are
// absent from the result.
func ClassifyLocations(text string, locations []string) map[string]string {
	out := make(map[string]string, len(locations))
	for _, loc := range locations {
		if _, done := out[loc]; done {
			continue
		}
		if rel, ok := ClassifyLocation(text, loc); ok {
			out[loc] = rel
		}
	}
	return out
}
