package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hebrew-ms/backend/internal/classification"
	"github.com/hebrew-ms/backend/internal/extractors"
	"github.com/hebrew-ms/backend/internal/gazetteer"
	"github.com/hebrew-ms/backend/internal/pipeline"
	"github.com/hebrew-ms/backend/internal/query"
	"github.com/hebrew-ms/backend/internal/storage/sqlite"
)

const candiaNote = "נכתב בקנדיה על ידי משה בן יצחק"

func newApp(t *testing.T, index *gazetteer.Index) *fiber.App {
	t.Helper()
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })

	ex := extractors.New(extractors.WithGazetteerSet(gazetteer.NewSet("קנדיה", "ונציה")))
	p := pipeline.New(ex, classification.NewArbiter(nil),
		pipeline.WithSinks(pipeline.NewStoreSink("sqlite", db), pipeline.NewRunSink(db)),
	)

	extract := NewExtractHandler(p)
	queries := NewQueryHandler(query.NewEngine(db, nil))
	gaz := NewGazetteerHandler(index)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/extract", extract.Extract)
	api.Post("/extract/batch", extract.ExtractBatch)
	api.Get("/manuscripts/:id", queries.GetManuscript)
	api.Get("/places/:name/manuscripts", queries.ManuscriptsAtPlace)
	api.Get("/persons/:name/manuscripts", queries.ManuscriptsByPerson)
	api.Get("/runs", queries.RecentRuns)
	api.Get("/gazetteer/stats", gaz.Stats)
	api.Get("/gazetteer/lookup", gaz.Lookup)
	app.Use("/ws", Upgrade)
	app.Get("/ws/extract", websocket.New(NewWebSocketHandler(p, 0).HandleConnection))
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestExtractSingleNote(t *testing.T) {
	app := newApp(t, nil)

	code, body := call(t, app, "POST", "/api/v1/extract", `{"manuscript_id":"990001","text":"<p>`+candiaNote+`</p>"}`)
	require.Equal(t, http.StatusOK, code)

	m := body["manuscript"].(map[string]any)
	assert.Equal(t, "990001", m["manuscript_id"])
	assert.Equal(t, candiaNote, m["notes_text"])
	assert.Len(t, body["classified"], 2)
	assert.Empty(t, body["unclassified"])
}

func TestExtractAssignsID(t *testing.T) {
	app := newApp(t, nil)

	code, body := call(t, app, "POST", "/api/v1/extract", `{"text":"הערה כללית"}`)
	require.Equal(t, http.StatusOK, code)
	id := body["manuscript"].(map[string]any)["manuscript_id"].(string)
	assert.True(t, strings.HasPrefix(id, "adhoc-"))
}

func TestExtractRejectsEmptyNote(t *testing.T) {
	app := newApp(t, nil)

	code, _ := call(t, app, "POST", "/api/v1/extract", `{"text":"<p> </p>"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, app, "POST", "/api/v1/extract/batch", `{"records":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestBatchThenQuery(t *testing.T) {
	app := newApp(t, nil)

	code, body := call(t, app, "POST", "/api/v1/extract/batch", `{"records":[
		{"manuscript_id":"990001","text":"`+candiaNote+`"},
		{"manuscript_id":"990002","text":"הערה כללית"},
		{"manuscript_id":"990003","text":"נדפס בונציה שנת 1550"}
	]}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["run_id"])
	assert.NotContains(t, body, "sink_error")
	assert.Len(t, body["manuscripts"], 3)
	assert.EqualValues(t, 3, body["summary"].(map[string]any)["manuscripts"])

	code, body = call(t, app, "GET", "/api/v1/manuscripts/990001", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "990001", body["manuscript_id"])
	assert.NotEmpty(t, body["entities"])

	code, _ = call(t, app, "GET", "/api/v1/manuscripts/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = call(t, app, "GET", "/api/v1/places/"+url.PathEscape("קנדיה")+"/manuscripts", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["manuscripts"], 1)
	assert.Equal(t, "990001", body["manuscripts"].([]any)[0].(map[string]any)["manuscript_id"])

	code, body = call(t, app, "GET", "/api/v1/persons/"+url.PathEscape("משה")+"/manuscripts?label=scribe", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["manuscripts"], 1)

	code, body = call(t, app, "GET", "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["runs"], 1)
}

func TestPlaceQueryRequiresName(t *testing.T) {
	app := newApp(t, nil)
	code, _ := call(t, app, "GET", "/api/v1/places/%20/manuscripts", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGazetteerEndpoints(t *testing.T) {
	index, err := gazetteer.NewIndex(
		[]gazetteer.Place{{ID: "2", Hebrew: "קנדיה", Romanized: "Candia", Wikidata: "Q160544"}},
		map[string]string{"קנדיאה": "קנדיה"}, nil, 0, nil,
	)
	require.NoError(t, err)
	app := newApp(t, index)

	code, body := call(t, app, "GET", "/api/v1/gazetteer/stats", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["statistics"].(map[string]any)["total_places"])

	code, body = call(t, app, "GET", "/api/v1/gazetteer/lookup?q="+url.QueryEscape("בקנדיאה"), "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "Candia", body["place"].(map[string]any)["romanized"])

	code, body = call(t, app, "GET", "/api/v1/gazetteer/lookup?q="+url.QueryEscape("רומא"), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["found"])

	code, _ = call(t, app, "GET", "/api/v1/gazetteer/lookup", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGazetteerDisabled(t *testing.T) {
	app := newApp(t, nil)
	code, _ := call(t, app, "GET", "/api/v1/gazetteer/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	app := newApp(t, nil)
	code, _ := call(t, app, "GET", "/ws/extract", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestToRecord(t *testing.T) {
	r := toRecord(ExtractRequest{ManuscriptID: "1", Text: "  <b>נכתב</b>   בקנדיה ", Metadata: map[string]string{"001": "1"}})
	assert.Equal(t, "1", r.ID)
	assert.Equal(t, "נכתב בקנדיה", r.Notes)
	assert.Equal(t, "1", r.Fields["001"])
}
