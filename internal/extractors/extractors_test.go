package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebrew-ms/backend/internal/gazetteer"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/validator"
)

const candiaNote = "נכתב בקנדיה על ידי משה בן יצחק"

func values(entities []models.ExtractedEntity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.Value()
	}
	return out
}

func TestExtractDatesDeduplicatesRepeatedYear(t *testing.T) {
	got := ExtractDates("הועתק 1450 ונמכר 1450")
	require.Len(t, got, 1)
	assert.Equal(t, "1450", got[0].Value())
	assert.Equal(t, 0.85, got[0].Confidence())

	span, ok := got[0].Span()
	require.True(t, ok)
	assert.Equal(t, models.Span{Start: 6, End: 10}, span)
}

func TestExtractDatesRangesFirst(t *testing.T) {
	got := ExtractDates("נכתב בין 1450-1460 באיטליה")
	assert.Equal(t, []string{"1450-1460", "1450", "1460"}, values(got))
	assert.Equal(t, 0.9, got[0].Confidence())
	assert.Equal(t, 0.85, got[1].Confidence())
	assert.Equal(t, "year_range", got[0].MetadataValue("pattern"))
}

func TestExtractDatesFamilies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"year with prefix", "נכתב שנת 1523 בויניציאה", []string{"שנת 1523"}},
		{"century", "כתיבה ספרדית, המאה ה15", []string{"המאה ה15"}},
		{"out of range", "מספר 1399 ו-2150", nil},
		{"embedded digits", "סימן 145067", nil},
		{"no dates", candiaNote, nil},
		{"empty", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractDates(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, values(got))
		})
	}
}

func TestDateContextWindow(t *testing.T) {
	text := "הערה ארוכה מאוד לפני התאריך שנכתב בשנת 1490 והמשך ארוך מאוד אחרי התאריך"
	got := ExtractDates(text)
	require.NotEmpty(t, got)
	ctx := got[0].Context()
	assert.Contains(t, ctx, "1490")
	assert.LessOrEqual(t, len([]rune(ctx)), len([]rune(got[0].Value()))+40)
}

func TestIsValidYear(t *testing.T) {
	assert.True(t, IsValidYear("1400"))
	assert.True(t, IsValidYear("2100"))
	assert.False(t, IsValidYear("1399"))
	assert.False(t, IsValidYear("שנה"))
}

func TestExtractLocationsStrippedPrefix(t *testing.T) {
	got := ExtractLocations(candiaNote, gazetteer.NewSet("קנדיה"), DefaultLocationOptions)
	require.Len(t, got, 1)
	assert.Equal(t, "קנדיה", got[0].Value())
	assert.Equal(t, 0.85, got[0].Confidence())
	assert.Equal(t, candiaNote, got[0].Context())
}

func TestExtractLocationsMultiWordWins(t *testing.T) {
	set := gazetteer.NewSet("ארץ ישראל", "ישראל", "ארץ")
	got := ExtractLocations("עלה לארץ ישראל בזקנותו", set, DefaultLocationOptions)
	require.Len(t, got, 1)
	assert.Equal(t, "ארץ ישראל", got[0].Value())
	assert.Equal(t, 0.90, got[0].Confidence())

	got = ExtractLocations("ארץ ישראל", set, DefaultLocationOptions)
	require.Len(t, got, 1)
	assert.Equal(t, 0.95, got[0].Confidence())
}

func TestExtractLocationsFilters(t *testing.T) {
	set := gazetteer.NewSet("אדר", "ישראל", "משה", "רומא")
	got := ExtractLocations("בחדש אדר שלח ישראל את משה לרומא ורומא", set, DefaultLocationOptions)
	require.Len(t, got, 1)
	assert.Equal(t, "רומא", got[0].Value())
	assert.Equal(t, 0.85, got[0].Confidence())
}

func TestTokenizeDropsDanglingHyphens(t *testing.T) {
	assert.Equal(t, []string{"תל", "אביב-יפו", "חיפה"}, Tokenize("תל אביב-יפו, -ב חיפה 1948 - abc"))
}

func newIndex(t *testing.T, places ...gazetteer.Place) *gazetteer.Index {
	t.Helper()
	ix, err := gazetteer.NewIndex(places, nil, nil, 100, nil)
	require.NoError(t, err)
	return ix
}

func TestExtractLocationsWithIndex(t *testing.T) {
	ix := newIndex(t,
		gazetteer.Place{ID: "1", Hebrew: "קנדיה", Wikidata: "Q160544", Lat: "35.33", Lon: "25.13"},
		gazetteer.Place{ID: "2", Hebrew: "נושא"},
	)
	v := validator.New()

	got := ExtractLocationsWithIndex("הספר הועתק בעיר קנדיה. נושא: הלכה", ix, v)
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, "קנדיה", e.Value())
	assert.InDelta(t, 0.91, e.Confidence(), 1e-9)
	assert.Equal(t, "kima", e.MetadataValue("source"))
	assert.Equal(t, "קנדיה", e.MetadataValue("matched_phrase"))
	assert.Equal(t, "Q160544", e.MetadataValue("wikidata"))
}

func TestExtractLocationsWithIndexRejectsPersonContext(t *testing.T) {
	ix := newIndex(t, gazetteer.Place{ID: "1", Hebrew: "קנדיה"})
	assert.Empty(t, ExtractLocationsWithIndex(candiaNote, ix, validator.New()))
}

func TestExtractLocationsWithIndexQualifiedName(t *testing.T) {
	ix := newIndex(t, gazetteer.Place{ID: "3", Hebrew: "ונציה (איטליה)"})
	got := ExtractLocationsWithIndex("ונציה (איטליה)", ix, validator.New())
	assert.Empty(t, got, "canonical with qualifier is only found through surface forms")

	ix = newIndex(t, gazetteer.Place{ID: "3", Hebrew: "ונציה"})
	got = ExtractLocationsWithIndex("נדפס בונציה", ix, validator.New())
	assert.Empty(t, got, "ב followed by ו is stripped as a double prefix")
}

func TestExtractPersons(t *testing.T) {
	got := ExtractPersons(candiaNote + ". ושוב משה  בן יצחק, ואחריו אהרן בן דוד")
	assert.Equal(t, []models.Person{
		{Name: "משה", Patronymic: "יצחק"},
		{Name: "אהרן", Patronymic: "דוד"},
	}, got)
	assert.Empty(t, ExtractPersons(""))
}

func TestColophon(t *testing.T) {
	text := "תם ונשלם ביד יוסף בן אברהם הסופר"
	assert.True(t, DetectColophon(text))

	c, ok := ExtractColophon(text)
	require.True(t, ok)
	assert.True(t, c.HasCompletionMarker)
	assert.Equal(t, "יוסף בן אברהם", c.ScribeName)
	assert.True(t, c.IsValid())

	c, ok = ExtractColophon(candiaNote)
	require.True(t, ok)
	assert.False(t, c.HasCompletionMarker)
	assert.Empty(t, c.ScribeName)

	_, ok = ExtractColophon("מחזור לימים נוראים")
	assert.False(t, ok)
}

func TestScribePatternOrder(t *testing.T) {
	name, ok := ExtractScribeName("אני שלמה בן מנחם העתקתי")
	require.True(t, ok)
	assert.Equal(t, "שלמה בן מנחם", name)

	name, ok = ExtractScribeName("נכתב ע\"י אליעזר בן נתן.")
	require.True(t, ok)
	assert.Equal(t, "אליעזר בן נתן", name)
}

func TestExtractWorkTitle(t *testing.T) {
	title, ok := ExtractWorkTitle("ספר הכוזרי")
	require.True(t, ok)
	assert.Equal(t, "הכוזרי", title)

	_, ok = ExtractWorkTitle("ספר אב")
	assert.False(t, ok)
}

func TestCandiaNoteByLocationMode(t *testing.T) {
	tests := []struct {
		name      string
		extractor *Extractor
		want      []string
	}{
		{
			name:      "legacy set keeps the place",
			extractor: New(WithGazetteerSet(gazetteer.NewSet("קנדיה"))),
			want:      []string{"קנדיה"},
		},
		{
			name:      "index vetoes the place next to a patronymic",
			extractor: New(WithIndex(newIndex(t, gazetteer.Place{ID: "1", Hebrew: "קנדיה"}), validator.New())),
			want:      []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.extractor.Extract("990001", candiaNote, nil)
			assert.Equal(t, tt.want, values(m.Locations))
			assert.Empty(t, m.Dates)
			assert.Equal(t, []models.Person{{Name: "משה", Patronymic: "יצחק"}}, m.Persons)
		})
	}
}

func TestExtractorAssemblesManuscript(t *testing.T) {
	ex := New(WithGazetteerSet(gazetteer.NewSet("קנדיה")))
	m := ex.Extract("990001", candiaNote, map[string]string{"001": "990001"})

	assert.Equal(t, "990001", m.ID)
	assert.Empty(t, m.Dates)
	assert.Equal(t, []string{"קנדיה"}, values(m.Locations))
	assert.Equal(t, []models.Person{{Name: "משה", Patronymic: "יצחק"}}, m.Persons)
	assert.True(t, m.HasColophon())
	assert.Nil(t, m.Work)
	assert.False(t, ex.UsesIndex())
}
