package extractors

import (
	"strings"

	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/models"
)

const heb = `\u0590-\u05FF`

var patronymic = hebrew.MustCompile(`([` + heb + `]{2,})\s+בן\s+([` + heb + `]{2,})`)

var colophonMarkers = []*hebrew.Pattern{
	hebrew.MustCompileIgnoreCase(`נשלם`),
	hebrew.MustCompileIgnoreCase(`נכתב`),
	hebrew.MustCompileIgnoreCase(`וסיימתיו`),
	hebrew.MustCompileIgnoreCase(`השלמתי`),
	hebrew.MustCompileIgnoreCase(`תם ונשלם`),
	hebrew.MustCompileIgnoreCase(`ע"י.*בר`),
	hebrew.MustCompileIgnoreCase(`ביד.*בן`),
	hebrew.MustCompileIgnoreCase(`כתבתיו אני`),
	hebrew.MustCompileIgnoreCase(`נכתב.*ביד`),
}

var completionMarkers = []*hebrew.Pattern{
	hebrew.MustCompileIgnoreCase(`נשלם`),
	hebrew.MustCompileIgnoreCase(`תם ונשלם`),
	hebrew.MustCompileIgnoreCase(`השלמתי`),
	hebrew.MustCompileIgnoreCase(`וסיימתי`),
}

// Tried in order; the first that matches names the scribe.
var scribePatterns = hebrew.MustCompileAll(
	`ביד\s+([`+heb+`\s]+?)\s+בן\s+([`+heb+`\s]+?)(?:\s|$|[,.])`,
	`נכתב.*?(?:ע"י|ביד)\s+([`+heb+`\s]+?)\s+בן\s+([`+heb+`\s]+?)(?:\s|$|[,.])`,
	`אני\s+([`+heb+`\s]+?)\s+בן\s+([`+heb+`\s]+?)\s+(?:כתבתי|העתקתי)`,
	`הצעיר\s+([`+heb+`\s]+?)\s+בן\s+([`+heb+`\s]+?)(?:\s|$|[,.])`,
)

var titlePatterns = hebrew.MustCompileAll(
	`ספר\s+([`+heb+`\s]{3,20})`,
	`חיבור\s+([`+heb+`\s]{3,20})`,
	`פירוש\s+([`+heb+`\s]{3,20})`,
)

// ExtractPersons finds "X בן Y" mentions, deduplicated by full name.
func ExtractPersons(text string) []models.Person {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []models.Person
	seen := map[string]struct{}{}
	for _, m := range patronymic.FindAllString(text) {
		p := models.Person{
			Name:       hebrew.CollapseSpaces(m.Groups[0]),
			Patronymic: hebrew.CollapseSpaces(m.Groups[1]),
		}
		full := p.FullName()
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		out = append(out, p)
	}
	return out
}

func DetectColophon(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return hebrew.AnyMatch(colophonMarkers, text)
}

func ExtractScribeName(text string) (string, bool) {
	for _, p := range scribePatterns {
		if m, ok := p.FindString(text); ok && len(m.Groups) >= 2 {
			return hebrew.CollapseSpaces(m.Groups[0]) + " בן " + hebrew.CollapseSpaces(m.Groups[1]), true
		}
	}
	return "", false
}

func ExtractColophon(text string) (models.ColophonInfo, bool) {
	if !DetectColophon(text) {
		return models.ColophonInfo{}, false
	}
	info := models.ColophonInfo{
		Text:                text,
		HasCompletionMarker: hebrew.AnyMatch(completionMarkers, text),
	}
	if name, ok := ExtractScribeName(text); ok {
		info.ScribeName = name
	}
	return info, true
}

func ExtractWorkTitle(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, p := range titlePatterns {
		m, ok := p.FindString(text)
		if !ok {
			continue
		}
		title := hebrew.CollapseSpaces(m.Groups[0])
		if n := hebrew.RuneLen(title); n > 3 && n < 50 {
			return title, true
		}
	}
	return "", false
}
