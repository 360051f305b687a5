package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebrew-ms/backend/internal/kg/neo4j"
	"github.com/hebrew-ms/backend/internal/models"
)

const base = "http://data.hebrewmanuscripts.org/"

type recordingWriter struct {
	graphs []*neo4j.Graph
	err    error
}

func (w *recordingWriter) MergeGraph(_ context.Context, g *neo4j.Graph) error {
	if w.err != nil {
		return w.err
	}
	w.graphs = append(w.graphs, g)
	return nil
}

func fixture(t *testing.T) (models.Manuscript, []models.ClassifiedEntity) {
	t.Helper()
	person, err := models.NewExtractedEntity("משה", models.EntityPerson, 0.9, "",
		models.WithMetadata(map[string]string{"patronymic": "יצחק"}))
	require.NoError(t, err)

	lat, lon := 35.33, 25.13
	m := models.Manuscript{
		ID:       "990001",
		Colophon: &models.ColophonInfo{Text: "תם ונשלם", HasCompletionMarker: true, ScribeName: "משה"},
		Work:     &models.Work{Title: "ספר הכוזרי", Language: "Hebrew"},
		Events: []models.Event{
			{EventType: "copying", EventClass: models.F28ExpressionCreation, ManuscriptID: "990001", Date: "1450",
				Properties: map[string]string{"property": "R17_created"}},
			{EventType: "production place", EventClass: models.E12Production, ManuscriptID: "990001",
				Place: &models.Place{Name: "קנדיה", Lat: &lat, Lon: &lon}},
			{EventType: "scribe", EventClass: models.E12Production, ManuscriptID: "990001",
				Actor:      &models.Person{Name: "משה", Patronymic: "יצחק", Role: "scribe"},
				Properties: map[string]string{"event_role": "P14_carried_out_by"}},
		},
	}
	classified := []models.ClassifiedEntity{{
		Entity:  person,
		Label:   "scribe",
		Mapping: models.OntologyMapping{Property: "has_scribe", EventClass: "E12_Production"},
		Source:  models.SourcePattern,
	}}
	return m, classified
}

func relTypes(g *neo4j.Graph, from string) map[string]string {
	out := map[string]string{}
	for _, r := range g.Relationships() {
		if r.From == from {
			out[r.Type] = r.To
		}
	}
	return out
}

func TestBuildManuscriptGraph(t *testing.T) {
	m, classified := fixture(t)
	g := NewBuilder(base, nil).Build(m, classified)

	ms := base + "MS_990001"
	node, ok := g.Node(ms)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"F4_Manifestation_Singleton", "Codicological_Unit"}, node.Labels)
	assert.Equal(t, "990001", node.Props["identifier"])

	copying := relTypes(g, base+"MS_990001_copying_Event")
	assert.Equal(t, ms, copying["R17_created"])
	assert.Equal(t, base+"TimeSpan_1450", copying["P4_has_time_span"])

	production := relTypes(g, base+"MS_990001_production_place_Event")
	assert.Equal(t, ms, production["P16_used_specific_object"])
	place, ok := g.Node(production["P7_took_place_at"])
	require.True(t, ok)
	assert.Equal(t, 35.33, place.Props["latitude"])

	scribe := relTypes(g, base+"MS_990001_scribe_Event")
	person := scribe["P14_carried_out_by"]
	assert.Equal(t, base+"Person_%D7%9E%D7%A9%D7%94_ben_%D7%99%D7%A6%D7%97%D7%A7", person)

	msRels := relTypes(g, ms)
	assert.Equal(t, person, msRels["has_scribe"])
	assert.Contains(t, msRels, "has_colophon")
	assert.Contains(t, msRels, "R4_embodies")

	counts := g.LabelCounts()
	assert.Equal(t, 1, counts["F2_Expression"])
	assert.Equal(t, 1, counts["F1_Work"])
	assert.Equal(t, 2, counts["E12_Production"])
}

func TestBuildRepeatedEventTypesGetIndexedURIs(t *testing.T) {
	m := models.Manuscript{ID: "7", Events: []models.Event{
		{EventType: "preserved", EventClass: models.E7Activity, ManuscriptID: "7", Place: &models.Place{Name: "פרמה"}},
		{EventType: "preserved", EventClass: models.E7Activity, ManuscriptID: "7", Place: &models.Place{Name: "אוקספורד"}},
	}}
	g := NewBuilder(base, nil).Build(m, nil)
	_, ok := g.Node(base + "MS_7_preserved_Event")
	assert.True(t, ok)
	_, ok = g.Node(base + "MS_7_preserved_Event_1")
	assert.True(t, ok)
}

func TestSaveManuscript(t *testing.T) {
	m, classified := fixture(t)
	w := &recordingWriter{}
	require.NoError(t, NewBuilder("http://example.org", w).SaveManuscript(context.Background(), m, classified, "run"))
	require.Len(t, w.graphs, 1)
	_, ok := w.graphs[0].Node("http://example.org/MS_990001")
	assert.True(t, ok)

	w.err = errors.New("unavailable")
	err := NewBuilder(base, w).SaveManuscript(context.Background(), m, classified, "run")
	assert.ErrorContains(t, err, "failed to write manuscript graph: unavailable")
}
