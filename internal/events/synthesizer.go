package events

import (
	"strconv"
	"strings"

	"github.com/hebrew-ms/backend/internal/models"
)

const (
	wikidataEntityBase = "http://www.wikidata.org/entity/"
	geonamesBase       = "https://sws.geonames.org/"
)

// EventType derives the event name from a label: "copying date" becomes "copying",
// "printed in" becomes "printed".
func EventType(label string) string {
	return strings.ReplaceAll(strings.ReplaceAll(label, " date", ""), " in", "")
}

// EventClass resolves the mapping's class, falling back to a generic activity so that
// every classified entity yields an event.
func EventClass(m models.OntologyMapping) models.EventClass {
	if c, ok := models.ParseEventClass(m.EventClass); ok {
		return c
	}
	return models.E7Activity
}

func properties(c models.ClassifiedEntity) map[string]string {
	props := map[string]string{"label": c.Label}
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}
	set("event_class", c.Mapping.EventClass)
	set("property", c.Mapping.Property)
	set("level", c.Mapping.Level)
	set("crm_class", c.Mapping.CRMClass)
	set("event_role", c.Mapping.EventRole)
	set("context", c.Mapping.Context)
	set("source", string(c.Source))
	return props
}

// PlaceFrom builds a place from a location entity, carrying gazetteer identifiers and
// coordinates when the entity came from the index.
func PlaceFrom(e models.ExtractedEntity) *models.Place {
	p := &models.Place{
		Name:       e.Value(),
		ModernName: e.MetadataValue("romanized"),
	}
	if id := e.MetadataValue("wikidata"); id != "" {
		p.WikidataURI = wikidataEntityBase + id
	}
	if id := e.MetadataValue("geonames"); id != "" {
		p.GeoNamesURI = geonamesBase + id + "/"
	}
	lat, latErr := strconv.ParseFloat(e.MetadataValue("lat"), 64)
	lon, lonErr := strconv.ParseFloat(e.MetadataValue("lon"), 64)
	if latErr == nil && lonErr == nil {
		p.Lat, p.Lon = &lat, &lon
	}
	return p
}

func Synthesize(m models.Manuscript, classified []models.ClassifiedEntity) []models.Event {
	out := make([]models.Event, 0, len(classified))
	for _, c := range classified {
		ev := models.Event{
			EventType:    EventType(c.Label),
			EventClass:   EventClass(c.Mapping),
			ManuscriptID: m.ID,
			Properties:   properties(c),
		}
		switch c.Type() {
		case models.EntityDate:
			ev.Date = c.Value()
		case models.EntityLocation:
			ev.Place = PlaceFrom(c.Entity)
		case models.EntityPerson:
			ev.Actor = &models.Person{
				Name:       c.Value(),
				Patronymic: c.Entity.MetadataValue("patronymic"),
				Role:       c.Label,
			}
		}
		out = append(out, ev)
	}
	return out
}

// Enrich returns a copy of m carrying the synthesized events, with person roles
// taken from the classified person entities.
func Enrich(m models.Manuscript, classified []models.ClassifiedEntity) models.Manuscript {
	out := m.WithEvents(Synthesize(m, classified))
	out.Persons = assignRoles(m.Persons, classified)
	return out
}

func assignRoles(persons []models.Person, classified []models.ClassifiedEntity) []models.Person {
	if len(persons) == 0 {
		return persons
	}
	roles := make(map[string]string)
	for _, c := range classified {
		if c.Type() == models.EntityPerson {
			roles[c.Value()] = c.Label
		}
	}
	out := append([]models.Person(nil), persons...)
	for i, p := range out {
		if role, ok := roles[p.Name]; ok && p.Role == "" {
			out[i].Role = role
		}
	}
	return out
}

// EnrichAll enriches every manuscript, including those with no classification.
func EnrichAll(manuscripts []models.Manuscript, classified map[string][]models.ClassifiedEntity) []models.Manuscript {
	out := make([]models.Manuscript, len(manuscripts))
	for i, m := range manuscripts {
		out[i] = Enrich(m, classified[m.ID])
	}
	return out
}
