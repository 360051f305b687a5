package hebrew

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cantillation marks and vowel points, U+0591 to U+05C7.
var nikud = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0591, Hi: 0x05C7, Stride: 1}},
}

var prefixLetters = map[rune]struct{}{
	'ב': {}, 'ל': {}, 'מ': {}, 'ה': {}, 'ו': {}, 'כ': {}, 'ש': {},
}

// StripNikud removes vowel points and cantillation. Transformers are stateful, so a
// fresh chain is built per call.
func StripNikud(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(nikud)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func NFC(s string) string {
	return norm.NFC.String(s)
}

func IsPrefix(r rune) bool {
	_, ok := prefixLetters[r]
	return ok
}

// StripPrefix drops a leading one-letter prefix (ב ל מ ה ו כ ש) from words longer
// than two letters, and a second prefix when more than two letters remain.
func StripPrefix(word string) string {
	r := []rune(word)
	if len(r) <= 2 || !IsPrefix(r[0]) {
		return word
	}
	rest := r[1:]
	if len(rest) > 2 && IsPrefix(rest[0]) {
		return string(rest[1:])
	}
	return string(rest)
}

func RuneLen(s string) int {
	return len([]rune(s))
}

// Index returns the rune offset of the first occurrence of sub, or -1.
func Index(s, sub string) int {
	i := strings.Index(s, sub)
	if i < 0 {
		return -1
	}
	return len([]rune(s[:i]))
}

// Slice returns runes [start, end) clamped to the text.
func Slice(s string, start, end int) string {
	r := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if end <= start {
		return ""
	}
	return string(r[start:end])
}

// Window returns the text from start-radius to end+radius, clamped.
func Window(s string, start, end, radius int) string {
	return Slice(s, start-radius, end+radius)
}

func Head(s string, n int) string {
	return Slice(s, 0, n)
}

func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// IsHebrewLetter covers the Hebrew block letters א..ת including final forms.
func IsHebrewLetter(r rune) bool {
	return r >= 'א' && r <= 'ת'
}
