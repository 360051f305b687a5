package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBlacklisted(t *testing.T) {
	tests := []struct {
		word string
		want bool
	}{
		{"אדר", true},
		{"אֲדָר", true},
		{" ניסן ", true},
		{"אדר א", true},
		{"נושא", true},
		{"בכתבי", true},
		{"רב", true},
		{"גד", true},
		{"ירושלים", false},
		{"קנדיה", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBlacklisted(tt.word), tt.word)
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "ונציה", Base("ונציה (איטליה)"))
	assert.Equal(t, "ונציה", Base(" ונציה "))
	assert.Equal(t, "תל אביב", Base("תל אביב"))
}

func TestBlacklistedMonthIsVetoedWithZeroConfidence(t *testing.T) {
	v := New()
	text := "נכתב בחדש אדר בעיר"

	assert.False(t, v.Validate("אדר", text, DefaultOptions))
	assert.Zero(t, v.Confidence("אדר", text))

	a := v.Assess("אדר", text, DefaultOptions)
	assert.False(t, a.Valid)
	assert.Zero(t, a.Confidence)
	assert.Equal(t, ReasonBlacklisted, a.Reason)
}

func TestValidateAcceptsPlaceWithIndicator(t *testing.T) {
	v := New()
	text := "הספר הועתק בעיר קנדיה"

	assert.True(t, v.Validate("קנדיה", text, DefaultOptions))
	assert.InDelta(t, 0.91, v.Confidence("קנדיה", text), 1e-9)

	a := v.Assess("קנדיה", text, DefaultOptions)
	assert.True(t, a.Valid)
	assert.InDelta(t, 0.91, a.Confidence, 1e-9)
}

func TestValidateVetoes(t *testing.T) {
	v := New()
	tests := []struct {
		name   string
		word   string
		text   string
		opts   Options
		reason Reason
	}{
		{"too short", "צפת", "נכתב בצפת", Options{MinLength: 4}, ReasonTooShort},
		{"absent", "פראג", "אין כאן מקום", DefaultOptions, ReasonNotInText},
		{"date formula", "פירנצי", "בשנת פירנצי", Options{MinLength: 3}, ReasonDateContext},
		{"person name", "משה", "ספר זה כתב משה", Options{MinLength: 3}, ReasonPersonContext},
		{"no indicator", "קנדיה", "הערה על קנדיה", DefaultOptions, ReasonNoLocationEvidence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := v.Assess(tt.word, tt.text, tt.opts)
			assert.False(t, a.Valid)
			assert.Zero(t, a.Confidence)
			assert.Equal(t, tt.reason, a.Reason)
			assert.False(t, v.Validate(tt.word, tt.text, tt.opts))
		})
	}
}

func TestQualifiedNameAbsentFromTextIsAccepted(t *testing.T) {
	v := New()
	assert.True(t, v.Validate("ונציה (איטליה)", "כתב יד על קלף", DefaultOptions))
}

func TestConfidenceZeroForVetoedQualifiedName(t *testing.T) {
	v := New()
	tests := []struct {
		name string
		word string
		text string
	}{
		{"date formula", "פירנצי (איטליה)", "בשנת פירנצי"},
		{"person context", "לוריא (איטליה)", "ספר זה כתב לוריא"},
		{"month", "אדר (חודש)", "בחדש אדר"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, v.Validate(tt.word, tt.text, Options{}))
			assert.Zero(t, v.Confidence(tt.word, tt.text))
		})
	}
}

func TestConfidenceBoostsAndPenalties(t *testing.T) {
	v := New()

	// Multi-word and qualified names, no indicator nearby.
	assert.InDelta(t, 0.85, v.Confidence("ארץ ישראל", "הערה"), 1e-9)
	assert.InDelta(t, 1.0, v.Confidence("ונציה (איטליה)", "הערה"), 1e-9)

	// Name inside a famous patronymic is heavily penalised.
	got := v.Confidence("לוריא", "ספר זה שייך ליוסף בן לוריא")
	assert.Less(t, got, 0.2)
}

func TestValidateFalseImpliesAssessZero(t *testing.T) {
	v := New()
	texts := []string{
		"נכתב בקנדיה על ידי משה בן יצחק",
		"בשנת רומא",
		"הועתק בעיר פאדובה",
	}
	words := []string{"קנדיה", "רומא", "פאדובה", "אדר", "משה"}
	for _, text := range texts {
		for _, w := range words {
			a := v.Assess(w, text, DefaultOptions)
			if !v.Validate(w, text, DefaultOptions) {
				assert.Zero(t, a.Confidence, "%s in %s", w, text)
			}
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
		}
	}
}
