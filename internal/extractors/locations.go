package extractors

import (
	"strings"

	"github.com/hebrew-ms/backend/internal/gazetteer"
	"github.com/hebrew-ms/backend/internal/hebrew"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/validator"
)

type LocationOptions struct {
	MaxTokens      int
	MinTokenLength int
}

var DefaultLocationOptions = LocationOptions{MaxTokens: 6, MinTokenLength: 2}

const indexMaxTokens = 6

var hebrewToken = hebrew.MustCompile(`[\u0590-\u05FF\-]+`)

var locationBlacklist = map[string]struct{}{
	"תל": {}, "בית": {}, "קרית": {},
	"תלמוד": {}, "בתלמוד": {}, "תלמידי": {}, "תלמידים": {},
	"ישראל": {},
	"יקום": {}, "פורקן": {}, "יזכור": {},
	"ואני": {}, "עומר": {}, "האלה": {},
	"פרוט": {}, "קוטי": {},
	"תלת": {}, "התל": {},
	"קארו": {}, "פאנו": {},
	"אליהו": {}, "משה": {}, "יוסף": {},
	"קורי": {},
	"אייר": {},
}

func blacklisted(s string) bool {
	_, ok := locationBlacklist[s]
	return ok
}

// Tokenize splits text into Hebrew-script runs, keeping inner hyphens.
func Tokenize(text string) []string {
	var tokens []string
	for _, m := range hebrewToken.FindAllString(text) {
		t := m.Text
		if t == "-" || strings.HasPrefix(t, "-") || strings.HasSuffix(t, "-") {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// ExtractLocations matches token windows against a flat gazetteer. Longer phrases win,
// and tokens consumed by a phrase are not matched again on their own.
func ExtractLocations(text string, places gazetteer.Set, opts LocationOptions) []models.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultLocationOptions.MaxTokens
	}

	tokens := Tokenize(text)
	var out []models.ExtractedEntity
	seen := map[string]struct{}{}
	consumed := map[string]struct{}{}

	add := func(value string, score float64) bool {
		if _, dup := seen[value]; dup {
			return false
		}
		e, err := models.NewExtractedEntity(value, models.EntityLocation, score, text)
		if err != nil {
			return false
		}
		out = append(out, e)
		seen[value] = struct{}{}
		return true
	}

	for n := opts.MaxTokens; n >= 2; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			window := tokens[i : i+n]
			phrase := strings.Join(window, " ")

			matched := false
			if _, dup := seen[phrase]; places.Contains(phrase) && !dup {
				matched = add(phrase, 0.95)
			} else if stripped := hebrew.StripPrefix(window[0]); stripped != window[0] {
				alt := strings.Join(append([]string{stripped}, window[1:]...), " ")
				if places.Contains(alt) {
					matched = add(alt, 0.90)
				}
			}
			if matched {
				for _, t := range window {
					consumed[t] = struct{}{}
				}
			}
		}
	}

	for _, token := range tokens {
		if _, ok := consumed[token]; ok {
			continue
		}
		if hebrew.RuneLen(token) < opts.MinTokenLength || isMonth(token) {
			continue
		}
		stripped := hebrew.StripPrefix(token)
		if blacklisted(token) || blacklisted(stripped) {
			continue
		}

		if places.Contains(token) {
			add(token, 0.9)
			continue
		}
		if stripped != token && places.Contains(stripped) {
			add(stripped, 0.85)
		}
	}
	return out
}

type PlaceResolver interface {
	Lookup(name string) (gazetteer.Place, bool)
}

type LocationValidator interface {
	IsBlacklisted(word string) bool
	Assess(word, text string, opts validator.Options) validator.Assessment
}

var (
	strictValidation  = validator.Options{MinLength: 4, RequireContext: true}
	lenientValidation = validator.Options{MinLength: 3, RequireContext: false}
)

const (
	strictThreshold  = 0.6
	lenientThreshold = 0.4
)

// ExtractLocationsWithIndex resolves token windows through the gazetteer index and keeps
// only hits the validator accepts in context. Bare single-word names need a location cue.
func ExtractLocationsWithIndex(text string, places PlaceResolver, v LocationValidator) []models.ExtractedEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	tokens := Tokenize(text)
	var out []models.ExtractedEntity
	seen := map[string]struct{}{}

	for n := indexMaxTokens; n >= 1; n-- {
		for i := 0; i+n <= len(tokens); i++ {
			window := tokens[i : i+n]
			if v.IsBlacklisted(window[0]) {
				continue
			}
			phrase := strings.Join(window, " ")

			place, ok := places.Lookup(phrase)
			if !ok {
				continue
			}
			canonical := place.Hebrew
			if _, dup := seen[canonical]; dup {
				continue
			}

			opts, threshold := lenientValidation, lenientThreshold
			if base := validator.Base(canonical); !strings.Contains(base, " ") && !strings.Contains(canonical, "(") {
				opts, threshold = strictValidation, strictThreshold
			}
			a := v.Assess(canonical, text, opts)
			if !a.Valid || a.Confidence < threshold {
				continue
			}

			e, err := models.NewExtractedEntity(canonical, models.EntityLocation, a.Confidence, text,
				models.WithMetadata(map[string]string{
					"wikidata":       place.Wikidata,
					"viaf":           place.VIAF,
					"geonames":       place.GeoNames,
					"lat":            place.Lat,
					"lon":            place.Lon,
					"romanized":      place.Romanized,
					"description":    place.Description,
					"source":         "kima",
					"matched_phrase": phrase,
				}),
			)
			if err != nil {
				continue
			}
			out = append(out, e)
			seen[canonical] = struct{}{}
		}
	}
	return out
}
