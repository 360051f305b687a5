package hebrew

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripNikud(t *testing.T) {
	assert.Equal(t, "שלום", StripNikud("שָׁלוֹם"))
	assert.Equal(t, "קנדיה 1450", StripNikud("קנדיה 1450"))
	assert.Equal(t, "", StripNikud(""))
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"בקנדיה", "קנדיה"},
		{"ובירושלים", "ירושלים"},
		{"לרומא", "רומא"},
		{"בה", "בה"},
		{"קנדיה", "קנדיה"},
		{"ושם", "שם"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripPrefix(tt.in), tt.in)
	}
}

func TestRuneOffsets(t *testing.T) {
	s := "נכתב בקנדיה"
	assert.Equal(t, 11, RuneLen(s))
	assert.Equal(t, 5, Index(s, "בקנדיה"))
	assert.Equal(t, -1, Index(s, "ונציה"))
	assert.Equal(t, "בקנדיה", Slice(s, 5, 100))
	assert.Equal(t, "", Slice(s, 8, 3))
	assert.Equal(t, "נכתב", Head(s, 4))
	assert.Equal(t, "תב בק", Window(s, 4, 5, 2))
}

func TestCollapseSpacesAndLetters(t *testing.T) {
	assert.Equal(t, "נכתב בקנדיה", CollapseSpaces("  נכתב\t\n בקנדיה "))
	assert.True(t, IsHebrewLetter('א'))
	assert.True(t, IsHebrewLetter('ך'))
	assert.False(t, IsHebrewLetter('a'))
	assert.False(t, IsHebrewLetter('ָ'))
}

func TestPatternRuneOffsets(t *testing.T) {
	p := MustCompile(`ב(\p{L}+)`)
	m, ok := p.FindString("נכתב בקנדיה")
	require.True(t, ok)
	assert.Equal(t, "בקנדיה", m.Text)
	assert.Equal(t, 5, m.Start)
	assert.Equal(t, []string{"קנדיה"}, m.Groups)

	all := MustCompile(`(?<=\s)ב(\p{L}+)`).FindAllString("נכתב בקנדיה ובונציה בפדובה")
	require.Len(t, all, 2)
	assert.Equal(t, "בקנדיה", all[0].Text)
	assert.Equal(t, 5, all[0].Start)
	assert.Equal(t, 11, all[0].End)
	assert.Equal(t, []string{"קנדיה"}, all[0].Groups)
	assert.Equal(t, "פדובה", all[1].Groups[0])
}

func TestPatternFamilies(t *testing.T) {
	family := MustCompileAllIgnoreCase(`copied by`, `נכתב`)
	assert.True(t, AnyMatch(family, "Copied BY Moses"))
	assert.True(t, AnyMatch(family, "נכתב בקנדיה"))
	assert.False(t, AnyMatch(family, "נדפס בונציה"))

	assert.Equal(t, 2, MustCompile(`\d{4}`).CountString("1450 ו-1550"))
	assert.True(t, MustCompile(Escape("(איטליה)")).MatchString("ונציה (איטליה)"))

	_, err := Compile(`(`)
	assert.Error(t, err)
}
