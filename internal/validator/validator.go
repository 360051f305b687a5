package validator

import (
	"strings"

	"github.com/hebrew-ms/backend/internal/hebrew"
)

type Options struct {
	MinLength      int
	RequireContext bool
}

var DefaultOptions = Options{MinLength: 3, RequireContext: true}

type Reason string

const (
	ReasonAccepted           Reason = ""
	ReasonBlacklisted        Reason = "blacklisted"
	ReasonTooShort           Reason = "too_short"
	ReasonNotInText          Reason = "not_in_text"
	ReasonDateContext        Reason = "date_context"
	ReasonPersonContext      Reason = "person_context"
	ReasonNoLocationEvidence Reason = "no_location_context"
)

type Assessment struct {
	Valid      bool
	Confidence float64
	Reason     Reason
}

const (
	dateWindow      = 50
	personWindow    = 30
	indicatorWindow = 100
)

var (
	trailingQualifier  = hebrew.MustCompile(`\s*\([^)]+\)\s*$`)
	hebrewQualifier    = hebrew.MustCompile(`\s*\([א-ת\s,]+\)\s*$`)
	anyQualifier       = hebrew.MustCompile(`\([^)]+\)`)
	famousPersonPrefix = hebrew.MustCompileIgnoreCase(`(?:יוסף|משה|דוד|יעקב|שמואל|עזרא|שלמה|יהודה|אברהם|אלעזר|יצחק|לוי|בנימין)\s+(?:בן|בר|בת)\s+\w+`)
)

// Validator filters gazetteer hits that are really months, common words, dates or names.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) IsBlacklisted(word string) bool {
	return IsBlacklisted(word)
}

func IsBlacklisted(word string) bool {
	w := hebrew.StripNikud(strings.TrimSpace(word))
	if _, ok := hebrewMonths[w]; ok {
		return true
	}
	if _, ok := commonWords[w]; ok {
		return true
	}
	return hebrew.RuneLen(w) <= 2
}

func IsMonth(word string) bool {
	_, ok := hebrewMonths[hebrew.StripNikud(strings.TrimSpace(word))]
	return ok
}

// Base removes a trailing parenthetical qualifier such as a country name.
func Base(word string) string {
	m, ok := trailingQualifier.FindString(word)
	if !ok {
		return strings.TrimSpace(word)
	}
	return strings.TrimSpace(hebrew.Slice(word, 0, m.Start))
}

func (v *Validator) Validate(word, text string, opts Options) bool {
	ok, _ := v.validate(word, text, opts)
	return ok
}

func (v *Validator) validate(word, text string, opts Options) (bool, Reason) {
	clean := strings.TrimSpace(word)
	base := Base(clean)

	if IsBlacklisted(base) {
		return false, ReasonBlacklisted
	}
	if hebrew.RuneLen(base) < opts.MinLength {
		return false, ReasonTooShort
	}

	escaped := hebrew.Escape(base)
	m, found := hebrew.MustCompile(`\b` + escaped + `\b`).FindString(text)
	if !found {
		m, found = hebrew.MustCompile(`ב` + escaped).FindString(text)
	}
	if !found {
		// Values from structured fields may not occur in the note; only qualified names pass.
		if trailingQualifier.MatchString(clean) {
			return true, ReasonAccepted
		}
		return false, ReasonNotInText
	}

	if inDateContext(text, m.Start) {
		return false, ReasonDateContext
	}
	if inPersonContext(text, m.Start) {
		return false, ReasonPersonContext
	}
	if opts.RequireContext && !hasLocationIndicator(text, word) {
		return false, ReasonNoLocationEvidence
	}
	return true, ReasonAccepted
}

// Confidence scores a location candidate. Words vetoed by the blacklist or by date or
// person context score 0; words absent from the text are still scored.
func (v *Validator) Confidence(word, text string) float64 {
	if ok, reason := v.validate(word, text, Options{}); !ok && reason != ReasonNotInText {
		return 0
	}

	base := word
	if fields := strings.Fields(word); strings.Contains(word, " ") && len(fields) > 0 {
		base = fields[0]
	}
	if IsBlacklisted(base) {
		return 0
	}

	confidence := 0.7
	if strings.Contains(word, " ") {
		confidence += 0.15
	}
	if anyQualifier.MatchString(word) {
		confidence += 0.20
	}

	lowerBase := strings.ToLower(base)
	for _, m := range famousPersonPrefix.FindAllString(text) {
		window := hebrew.Slice(text, m.Start-personWindow, m.End+personWindow)
		if strings.Contains(strings.ToLower(window), lowerBase) {
			confidence *= 0.2
			break
		}
	}

	pos := hebrew.Index(text, base)
	if inDateContext(text, pos) {
		confidence *= 0.1
	}
	if inPersonContext(text, pos) {
		confidence *= 0.15
	}
	if hasLocationIndicator(text, word) {
		confidence = min(confidence*1.3, 1.0)
	}

	return max(0.0, min(confidence, 1.0))
}

// Assess combines validation and scoring; a vetoed word always scores 0.
func (v *Validator) Assess(word, text string, opts Options) Assessment {
	ok, reason := v.validate(word, text, opts)
	if !ok {
		return Assessment{Reason: reason}
	}
	return Assessment{Valid: true, Confidence: v.Confidence(word, text)}
}

func inDateContext(text string, pos int) bool {
	return hebrew.AnyMatch(nonLocationContexts, hebrew.Window(text, pos, pos, dateWindow))
}

func inPersonContext(text string, pos int) bool {
	return hebrew.AnyMatch(personIndicators, hebrew.Window(text, pos, pos, personWindow))
}

func hasLocationIndicator(text, word string) bool {
	base := Base(word)
	escaped := hebrew.Escape(base)

	pos := -1
	for _, expr := range []string{`ב` + escaped, `\b` + escaped + `\b`} {
		if m, ok := hebrew.MustCompile(expr).FindString(text); ok {
			pos = m.Start
			break
		}
	}
	if pos == -1 {
		return false
	}

	if hebrew.AnyMatch(locationIndicators, hebrew.Window(text, pos, pos, indicatorWindow)) {
		return true
	}
	return hebrewQualifier.MatchString(word)
}
