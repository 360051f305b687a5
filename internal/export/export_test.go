package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebrew-ms/backend/internal/models"
)

func entity(t *testing.T, value string, typ models.EntityType) models.ExtractedEntity {
	t.Helper()
	e, err := models.NewExtractedEntity(value, typ, 0.9, "")
	require.NoError(t, err)
	return e
}

func fixture(t *testing.T) ([]models.Manuscript, map[string][]models.ClassifiedEntity) {
	t.Helper()
	date := entity(t, "1450", models.EntityDate)
	candia := entity(t, "קנדיה", models.EntityLocation)
	venice := entity(t, "ונציה", models.EntityLocation)

	ms := []models.Manuscript{
		{
			ID:        "990001",
			NotesText: "נכתב בקנדיה שנת 1450 על ידי משה",
			Dates:     []models.ExtractedEntity{date},
			Locations: []models.ExtractedEntity{candia, venice},
			Persons:   []models.Person{{Name: "משה", Patronymic: "יצחק"}},
			Colophon:  &models.ColophonInfo{Text: "תם ונשלם", ScribeName: "משה"},
			Work:      &models.Work{Title: "ספר הזוהר", Language: "Hebrew"},
			Events: []models.Event{
				{EventType: "production place", EventClass: models.E12Production, ManuscriptID: "990001", Place: &models.Place{Name: "קנדיה"}},
				{EventType: "copying", EventClass: models.F28ExpressionCreation, ManuscriptID: "990001", Date: "1450"},
			},
			SourceMetadata: map[string]string{"001": "990001", "260$a": "Candia ; קנדיה", "957$a": "נכתב בקנדיה"},
		},
		{
			ID:        "990002",
			NotesText: "נדפס בקנדיה 1450",
			Dates:     []models.ExtractedEntity{date},
			Locations: []models.ExtractedEntity{candia},
			SourceMetadata: map[string]string{"001": "990002", "245$a": "חיבור"},
		},
		{ID: "990003", NotesText: "הערה"},
	}
	classified := map[string][]models.ClassifiedEntity{
		"990001": {
			{Entity: candia, Label: "production place", Source: models.SourcePattern},
			{Entity: date, Label: "copying date", Source: models.SourceAI},
			{Entity: entity(t, "משה", models.EntityPerson), Label: "scribe", Source: models.SourcePattern},
		},
	}
	return ms, classified
}

func TestSourceField(t *testing.T) {
	meta := map[string]string{
		"260$a": "Candia ; קנדיה",
		"751$a": "קנדיה (כרתים)",
		"700$a": "אברהם בן יצחק",
		"957$a": "ונציה",
	}
	assert.Equal(t, "260$a; 751$a", SourceField("קנדיה", meta, models.EntityLocation))
	assert.Equal(t, NewData, SourceField("ונציה", meta, models.EntityLocation))
	assert.Equal(t, "700$a", SourceField("יצחק לוי", meta, models.EntityPerson))
	assert.Equal(t, NewData, SourceField("1450", meta, models.EntityDate))
	assert.Equal(t, NewData, SourceField("קנדיה", meta, models.EntityWork))
	assert.Equal(t, NewData, SourceField("קנדיה", nil, models.EntityLocation))
}

func TestEntityRows(t *testing.T) {
	ms, classified := fixture(t)
	header, rows := EntityRows(ms, classified)

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"001", "245$a", "260$a", "957$a"}, header[10:])

	first := rows[0]
	assert.Equal(t, "990001", first[0])
	assert.Equal(t, "1450 | copying date | new data", first[2])
	assert.Equal(t, "קנדיה | production place | 260$a, ונציה | unclassified | new data", first[3])
	assert.Equal(t, "משה בן יצחק | scribe | new data", first[4])
	assert.Equal(t, "true", first[5])
	assert.Equal(t, "משה בן יצחק", first[6])
	assert.Equal(t, "ספר הזוהר", first[7])
	assert.Equal(t, "2", first[8])
	assert.Equal(t, "1", first[9])

	second := rows[1]
	assert.Equal(t, "1450 | unclassified | new data", second[2])
	assert.Equal(t, "", second[12])
	assert.Equal(t, "חיבור", second[11])
}

func TestDetailedEntityRowsSkipsEmptyManuscripts(t *testing.T) {
	ms, classified := fixture(t)
	_, rows := DetailedEntityRows(ms, classified)
	require.Len(t, rows, 2)
	assert.Equal(t, "משה | scribe | new data", rows[0][3])
}

func TestPersonLabelFallsBackToRole(t *testing.T) {
	labels := map[labelKey]string{}
	assert.Equal(t, "owner", personLabel(labels, models.Person{Name: "יעקב", Role: "owner"}))
	assert.Equal(t, ExtractedPerson, personLabel(labels, models.Person{Name: "יעקב"}))
}

func TestFrequencies(t *testing.T) {
	ms, _ := fixture(t)
	assert.Equal(t, []ValueCount{{"1450", 2}}, Frequencies(ms, models.EntityDate, 2))
	assert.Equal(t, []ValueCount{{"קנדיה", 2}, {"ונציה", 1}}, Frequencies(ms, models.EntityLocation, 1))
	assert.Empty(t, Frequencies(ms, models.EntityPerson, 1))
}

func TestSanitizeCSVField(t *testing.T) {
	assert.Equal(t, "'=SUM(A1)", sanitizeCSVField("=SUM(A1)"))
	assert.Equal(t, "'@cmd", sanitizeCSVField("@cmd"))
	assert.Equal(t, "קנדיה", sanitizeCSVField("קנדיה"))
	assert.Equal(t, "", sanitizeCSVField(""))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\uFEFF"))
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\uFEFF"))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteAll(t *testing.T) {
	ms, classified := fixture(t)
	dir := filepath.Join(t.TempDir(), "out")
	result := models.NewExtractionResult(ms, time.Date(2025, 10, 15, 12, 0, 0, 0, time.UTC))

	saved, err := NewWriter(dir, "", nil).WriteAll(result, classified)
	require.NoError(t, err)
	assert.Len(t, saved, 6)
	assert.Equal(t, filepath.Join(dir, "manuscript_extraction_entities.csv"), saved["entities"])

	events := readCSV(t, saved["events"])
	require.Len(t, events, 3)
	assert.Equal(t, []string{"990001", "production place", "E12_Production", "", "קנדיה", "", "false", "true"}, events[1])

	summary := readCSV(t, saved["summary"])
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"colophons", "dates", "events", "locations", "manuscripts", "persons", "extracted_at"}, summary[0])
	assert.Equal(t, []string{"1", "2", "2", "3", "3", "1", "2025-10-15T12:00:00Z"}, summary[1])

	dates := readCSV(t, saved["dates"])
	assert.Equal(t, [][]string{{"value", "count"}, {"1450", "2"}}, dates)
	assert.Equal(t, filepath.Join(dir, "locations_frequency.csv"), saved["locations"])
}

func TestWriteAllWithoutClassifications(t *testing.T) {
	ms, _ := fixture(t)
	saved, err := NewWriter(t.TempDir(), "run", nil).WriteAll(models.NewExtractionResult(ms, time.Now()), nil)
	require.NoError(t, err)
	assert.NotContains(t, saved, "entities_detailed")
	assert.Contains(t, saved["entities"], "run_entities.csv")
}
