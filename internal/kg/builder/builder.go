package builder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/kg/neo4j"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/pkg/logger"
	"github.com/hebrew-ms/backend/pkg/utils"
)

const (
	labelManuscript = "F4_Manifestation_Singleton"
	labelCodUnit    = "Codicological_Unit"
	labelPerson     = "E21_Person"
	labelPlace      = "E53_Place"
	labelTimeSpan   = "E52_Time_Span"
	labelColophon   = "Colophon"
	labelInfoObject = "E73_Information_Object"
	labelWork       = "F1_Work"
	labelExpression = "F2_Expression"

	defaultManuscriptLink = "P16_used_specific_object"
)

// Writer persists a built graph.
type Writer interface {
	MergeGraph(ctx context.Context, g *neo4j.Graph) error
}

type Builder struct {
	base   string
	writer Writer
}

func NewBuilder(base string, writer Writer) *Builder {
	if base != "" && !strings.HasSuffix(base, "/") && !strings.HasSuffix(base, "#") {
		base += "/"
	}
	return &Builder{base: base, writer: writer}
}

// SaveManuscript builds the manuscript's graph and merges it.
func (b *Builder) SaveManuscript(ctx context.Context, m models.Manuscript, classified []models.ClassifiedEntity, runID string) error {
	g := b.Build(m, classified)
	if err := b.writer.MergeGraph(ctx, g); err != nil {
		return fmt.Errorf("failed to write manuscript graph: %w", err)
	}

	logger.Debug("Manuscript graph written",
		zap.String("manuscript_id", m.ID),
		zap.String("run_id", runID),
		zap.Int("nodes", len(g.Nodes())),
		zap.Int("relationships", len(g.Relationships())),
	)
	return nil
}

// Build projects a manuscript, its colophon, work and events, and the direct
// person properties of its classifications into a graph.
func (b *Builder) Build(m models.Manuscript, classified []models.ClassifiedEntity) *neo4j.Graph {
	g := neo4j.NewGraph()
	ms := b.addManuscript(g, m)

	if m.HasColophon() {
		b.addColophon(g, ms, m)
	}
	if m.Work != nil && m.Work.Title != "" {
		b.addWork(g, ms, m)
	}

	counter := map[string]int{}
	for _, ev := range m.Events {
		idx := counter[ev.EventType]
		b.addEvent(g, ms, ev, idx)
		counter[ev.EventType] = idx + 1
	}

	for _, c := range classified {
		if c.Type() != models.EntityPerson || c.Mapping.Property == "" {
			continue
		}
		person := b.addPerson(g, models.Person{
			Name:       c.Value(),
			Patronymic: c.Entity.MetadataValue("patronymic"),
			Role:       c.Label,
		})
		g.AddRelationship(ms, c.Mapping.Property, person, map[string]any{"source": string(c.Source)})
	}
	return g
}

func (b *Builder) addManuscript(g *neo4j.Graph, m models.Manuscript) string {
	uri := utils.ManuscriptURI(b.base, m.ID)
	g.AddNode(uri, []string{labelManuscript, labelCodUnit}, map[string]any{
		"identifier":       m.ID,
		"label":            "Manuscript " + m.ID,
		"external_uri_nli": m.NLIURI,
	})
	return uri
}

func (b *Builder) addPerson(g *neo4j.Graph, p models.Person) string {
	uri := utils.PersonURI(b.base, p.FullName())
	g.AddNode(uri, []string{labelPerson}, map[string]any{
		"label":                 p.FullName(),
		"has_role":              p.Role,
		"external_uri_nli":      p.NLIURI,
		"external_uri_wikidata": p.WikidataURI,
	})
	return uri
}

func (b *Builder) addPlace(g *neo4j.Graph, p models.Place) string {
	uri := utils.PlaceURI(b.base, p.Name)
	props := map[string]any{
		"label":                 p.Name,
		"modern_name":           p.ModernName,
		"external_uri_nli":      p.NLIURI,
		"external_uri_geonames": p.GeoNamesURI,
		"external_uri_wikidata": p.WikidataURI,
	}
	if lat, lon, ok := p.Coordinates(); ok {
		props["latitude"], props["longitude"] = lat, lon
	}
	g.AddNode(uri, []string{labelPlace}, props)
	return uri
}

func (b *Builder) addTimeSpan(g *neo4j.Graph, date string) string {
	uri := utils.TimeSpanURI(b.base, date)
	g.AddNode(uri, []string{labelTimeSpan}, map[string]any{"label": date})
	return uri
}

func (b *Builder) addColophon(g *neo4j.Graph, ms string, m models.Manuscript) {
	uri := ms + "_Colophon"
	g.AddNode(uri, []string{labelColophon, labelInfoObject}, map[string]any{
		"colophon_text":         m.Colophon.Text,
		"has_completion_marker": m.Colophon.HasCompletionMarker,
	})
	g.AddRelationship(ms, "has_colophon", uri, nil)
	if m.Colophon.ScribeName != "" {
		scribe := b.addPerson(g, models.Person{Name: m.Colophon.ScribeName, Role: "scribe"})
		g.AddRelationship(uri, "mentions_scribe", scribe, nil)
	}
}

func (b *Builder) addWork(g *neo4j.Graph, ms string, m models.Manuscript) {
	work := utils.WorkURI(b.base, m.Work.Title)
	g.AddNode(work, []string{labelWork}, map[string]any{"label": m.Work.Title, "has_title": m.Work.Title})
	if m.Work.Author != nil {
		author := b.addPerson(g, *m.Work.Author)
		g.AddRelationship(work, "has_author", author, nil)
	}

	expression := b.base + "Expression_" + utils.NormalizeForURI(m.Work.Title) + "_MS_" + utils.NormalizeForURI(m.ID)
	g.AddNode(expression, []string{labelExpression}, map[string]any{
		"label":    "Expression of " + m.Work.Title,
		"language": m.Work.Language,
	})
	g.AddRelationship(expression, "R3_is_realised_in", work, nil)
	g.AddRelationship(ms, "R4_embodies", expression, nil)
}

func (b *Builder) addEvent(g *neo4j.Graph, ms string, ev models.Event, idx int) {
	uri := utils.EventURI(b.base, ev.ManuscriptID, ev.EventType, idx)
	g.AddNode(uri, []string{string(ev.EventClass)}, map[string]any{
		"label":       fmt.Sprintf("%s of MS %s", ev.EventType, ev.ManuscriptID),
		"event_type":  ev.EventType,
		"event_class": string(ev.EventClass),
		"source":      ev.Properties["source"],
	})

	if !g.AddRelationship(uri, manuscriptLink(ev), ms, nil) {
		g.AddRelationship(uri, defaultManuscriptLink, ms, nil)
	}
	if ev.Date != "" {
		g.AddRelationship(uri, "P4_has_time_span", b.addTimeSpan(g, ev.Date), nil)
	}
	if ev.Place != nil {
		g.AddRelationship(uri, "P7_took_place_at", b.addPlace(g, *ev.Place), nil)
	}
	if ev.Actor != nil {
		role := ev.Properties["event_role"]
		if role == "" {
			role = "P14_carried_out_by"
		}
		g.AddRelationship(uri, role, b.addPerson(g, *ev.Actor), nil)
	}
}

// manuscriptLink picks the property linking an event to its manuscript: the mapped
// property for dated events, otherwise a generic use.
func manuscriptLink(ev models.Event) string {
	if p := ev.Properties["property"]; ev.Date != "" && (strings.HasPrefix(p, "R") || strings.HasPrefix(p, "P")) {
		return p
	}
	return defaultManuscriptLink
}
