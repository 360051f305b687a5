package patterns

import (
	"github.com/hebrew-ms/backend/internal/hebrew"
)

const (
	RoleColophonScribe = "colophon scribe"
	RoleScribe         = "scribe"
	RoleAuthor         = "author"
	RoleTranslator     = "translator"
	RoleCommentator    = "commentator"
	RoleIlluminator    = "illuminator"
	RoleOwner          = "owner"
	RolePreviousOwner  = "previous owner"
	RolePurchaser      = "purchaser"
	RoleSeller         = "seller"
	RoleDonor          = "donor"
	RoleCataloger      = "cataloger"
	RoleCensor         = "censor"
)

const (
	personContextRadius = 100
	personFallbackHead  = 500
)

// family is a set of markers that all point at the same label.
type family struct {
	label    string
	patterns []*hebrew.Pattern
}

func newFamily(label string, exprs ...string) family {
	return family{label: label, patterns: hebrew.MustCompileAllIgnoreCase(exprs...)}
}

// Order matters: colophon scribes before plain scribes, production before ownership.
var personFamilies = []family{
	newFamily(RoleColophonScribe,
		`(?:נשלם|קולופון).*?(?:נכתב|כתב)`,
	),
	newFamily(RoleScribe,
		`נשלם\s+(?:על\s+)?(?:ידי|יד)`,
		`נכתב\s+(?:על\s+)?(?:ידי|ביד)`,
		`כתב(?:ו|תי|ה)?`,
		`העתיק`,
		`מעתיק`,
		`הכותב`,
		`סופר`,
		`נעתק\s+(?:על\s+)?ידי`,
	),
	newFamily(RoleAuthor,
		`מחבר`,
		`חיבר(?:ו)?`,
		`המחבר`,
		`מאת`,
		`חברו`,
		`יסדו`,
		`חבר\s+ה(?:ר|רב)`,
	),
	newFamily(RoleTranslator,
		`תרגם`,
		`מתרגם`,
		`תרגום`,
		`התרגום`,
	),
	newFamily(RoleCommentator,
		`פירש`,
		`מפרש`,
		`פרשן`,
		`ביאר`,
		`מבאר`,
	),
	newFamily(RoleIlluminator,
		`צייר`,
		`מאייר`,
		`ציר`,
		`עטר`,
	),
	newFamily(RoleOwner,
		`רשות`,
		`שייך\s+ל`,
		`זה\s+הספר\s+של`,
		`בעלים`,
		`ממון`,
		`של\s+כמ["']`,
		`שלי`,
	),
	newFamily(RolePreviousOwner,
		`היה\s+(?:רשות|של)`,
		`מסר\s+מ`,
		`העביר`,
		`היה\s+בעלים`,
	),
	newFamily(RolePurchaser,
		`קנה`,
		`קניתי`,
		`רכש`,
		`קנאו`,
		`נקנה\s+(?:על\s+)?יד(?:י)?`,
	),
	newFamily(RoleSeller,
		`מכר`,
		`נמכר\s+מיד`,
		`מכרו`,
	),
	newFamily(RoleDonor,
		`הקדיש`,
		`תרם`,
		`נתן\s+במתנה`,
		`הקדשתי`,
		`נתן\s+ל`,
	),
	newFamily(RoleCataloger,
		`קטלג`,
		`מקטלג`,
		`רשם`,
	),
	newFamily(RoleCensor,
		`צנזור`,
		`בוחן`,
		`בדק`,
	),
}

var personRoles = func() map[string]struct{} {
	out := make(map[string]struct{}, len(personFamilies))
	for _, f := range personFamilies {
		out[f.label] = struct{}{}
	}
	return out
}()

// PersonRoles lists every role ClassifyPerson can return, in precedence order.
func PersonRoles() []string {
	out := make([]string, len(personFamilies))
	for i, f := range personFamilies {
		out[i] = f.label
	}
	return out
}

func IsPersonRole(label string) bool {
	_, ok := personRoles[label]
	return ok
}

func personContext(text, name string) string {
	p, err := hebrew.Compile(`(?i)` + hebrew.Escape(name))
	if err != nil {
		return hebrew.Head(text, personFallbackHead)
	}
	m, ok := p.FindString(text)
	if !ok {
		return hebrew.Head(text, personFallbackHead)
	}
	return hebrew.Window(text, m.Start, m.End, personContextRadius)
}

// ClassifyPerson returns the first role whose marker occurs near the name.
func ClassifyPerson(text, name string) (string, bool) {
	if text == "" || name == "" {
		return "", false
	}
	context := personContext(text, name)
	for _, f := range personFamilies {
		if hebrew.AnyMatch(f.patterns, context) {
			return f.label, true
		}
	}
	return "", false
}

// ClassifyPersons classifies each distinct name; names without a marker are absent
// from the result.
func ClassifyPersons(text string, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if _, done := out[name]; done {
			continue
		}
		if role, ok := ClassifyPerson(text, name); ok {
			out[name] = role
		}
	}
	return out
}

// Statistics reports how many markers back each person role.
func Statistics() map[string]int {
	out := make(map[string]int, len(personFamilies))
	for _, f := range personFamilies {
		out[f.label] = len(f.patterns)
	}
	return out
}

// MatchAll lists the person markers found anywhere in text, grouped by role.
func MatchAll(text string) map[string][]string {
	out := map[string][]string{}
	for _, f := range personFamilies {
		var found []string
		for _, p := range f.patterns {
			for _, m := range p.FindAllString(text) {
				found = append(found, m.Text)
			}
		}
		if len(found) > 0 {
			out[f.label] = found
		}
	}
	return out
}
