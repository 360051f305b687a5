package models

import (
	"strings"
	"time"
)

type EventClass string

const (
	E12Production          EventClass = "E12_Production"
	E10TransferOfCustody   EventClass = "E10_Transfer_of_Custody"
	E8Acquisition          EventClass = "E8_Acquisition"
	E11Modification        EventClass = "E11_Modification"
	E67Birth               EventClass = "E67_Birth"
	E69Death               EventClass = "E69_Death"
	E7Activity             EventClass = "E7_Activity"
	F32ItemProductionEvent EventClass = "F32_Item_Production_Event"
	F28ExpressionCreation  EventClass = "F28_Expression_Creation"
	ReferenceEvent         EventClass = "Reference_Event"
)

var eventClasses = map[EventClass]struct{}{
	E12Production: {}, E10TransferOfCustody: {}, E8Acquisition: {}, E11Modification: {},
	E67Birth: {}, E69Death: {}, E7Activity: {}, F32ItemProductionEvent: {},
	F28ExpressionCreation: {}, ReferenceEvent: {},
}

func ParseEventClass(name string) (EventClass, bool) {
	c := EventClass(name)
	_, ok := eventClasses[c]
	return c, ok
}

type Person struct {
	Name        string `json:"name"`
	Patronymic  string `json:"patronymic,omitempty"`
	Role        string `json:"role,omitempty"`
	NLIURI      string `json:"nli_uri,omitempty"`
	WikidataURI string `json:"wikidata_uri,omitempty"`
}

func (p Person) FullName() string {
	if p.Patronymic != "" {
		return p.Name + " בן " + p.Patronymic
	}
	return p.Name
}

type Place struct {
	Name        string   `json:"name"`
	ModernName  string   `json:"modern_name,omitempty"`
	NLIURI      string   `json:"nli_uri,omitempty"`
	GeoNamesURI string   `json:"geonames_uri,omitempty"`
	WikidataURI string   `json:"wikidata_uri,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

func (p Place) Coordinates() (lat, lon float64, ok bool) {
	if p.Lat == nil || p.Lon == nil {
		return 0, 0, false
	}
	return *p.Lat, *p.Lon, true
}

type Work struct {
	Title    string  `json:"title"`
	Author   *Person `json:"author,omitempty"`
	Language string  `json:"language"`
	Subject  string  `json:"subject,omitempty"`
}

type ColophonInfo struct {
	Text                string `json:"text"`
	HasCompletionMarker bool   `json:"has_completion_marker"`
	ScribeName          string `json:"scribe_name,omitempty"`
	DateMentioned       string `json:"date_mentioned,omitempty"`
	PlaceMentioned      string `json:"place_mentioned,omitempty"`
}

func (c ColophonInfo) IsValid() bool {
	return strings.TrimSpace(c.Text) != ""
}

type Event struct {
	EventType    string            `json:"event_type"`
	EventClass   EventClass        `json:"event_class"`
	ManuscriptID string            `json:"manuscript_id"`
	Date         string            `json:"date,omitempty"`
	Place        *Place            `json:"place,omitempty"`
	Actor        *Person           `json:"actor,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

func (e Event) HasTemporalInfo() bool { return e.Date != "" }
func (e Event) HasSpatialInfo() bool { return e.Place != nil }

// Manuscript is the aggregate for one catalog record. Methods never mutate the receiver.
type Manuscript struct {
	ID             string            `json:"manuscript_id"`
	NotesText      string            `json:"notes_text"`
	Dates          []ExtractedEntity `json:"dates"`
	Locations      []ExtractedEntity `json:"locations"`
	Persons        []Person          `json:"persons"`
	Colophon       *ColophonInfo     `json:"colophon,omitempty"`
	Work           *Work             `json:"work,omitempty"`
	Events         []Event           `json:"events"`
	NLIURI         string            `json:"nli_uri,omitempty"`
	SourceMetadata map[string]string `json:"source_metadata,omitempty"`
}

func (m Manuscript) WithEvents(events []Event) Manuscript {
	out := m
	out.Events = append([]Event(nil), events...)
	return out
}

func (m Manuscript) HasColophon() bool {
	return m.Colophon != nil && m.Colophon.IsValid()
}

func (m Manuscript) HasEntities() bool {
	return len(m.Dates) > 0 || len(m.Locations) > 0 || len(m.Persons) > 0
}

// PrimaryScribe returns the person classified as scribe, else the person named in
// the colophon. Manuscripts without a colophon scribe have none.
func (m Manuscript) PrimaryScribe() (Person, bool) {
	if m.Colophon == nil || m.Colophon.ScribeName == "" {
		return Person{}, false
	}
	name := m.Colophon.ScribeName
	for _, p := range m.Persons {
		if p.Role == "scribe" {
			return p, true
		}
	}
	for _, p := range m.Persons {
		if p.FullName() == name || p.Name == name {
			p.Role = "scribe"
			return p, true
		}
	}
	return Person{Name: name, Role: "scribe"}, true
}

func (m Manuscript) ProductionEvents() []Event {
	var out []Event
	for _, e := range m.Events {
		if e.EventClass == E12Production || e.EventClass == F32ItemProductionEvent {
			out = append(out, e)
		}
	}
	return out
}

type ExtractionResult struct {
	Manuscripts    []Manuscript `json:"manuscripts"`
	ExtractedAt    time.Time    `json:"extracted_at"`
	TotalDates     int          `json:"total_dates"`
	TotalLocations int          `json:"total_locations"`
	TotalPersons   int          `json:"total_persons"`
	TotalEvents    int          `json:"total_events"`
}

func NewExtractionResult(manuscripts []Manuscript, at time.Time) ExtractionResult {
	r := ExtractionResult{Manuscripts: manuscripts, ExtractedAt: at}
	for _, m := range manuscripts {
		r.TotalDates += len(m.Dates)
		r.TotalLocations += len(m.Locations)
		r.TotalPersons += len(m.Persons)
		r.TotalEvents += len(m.Events)
	}
	return r
}

func (r ExtractionResult) Summary() map[string]int {
	colophons := 0
	for _, m := range r.Manuscripts {
		if m.HasColophon() {
			colophons++
		}
	}
	return map[string]int{
		"manuscripts": len(r.Manuscripts),
		"dates":       r.TotalDates,
		"locations":   r.TotalLocations,
		"persons":     r.TotalPersons,
		"events":      r.TotalEvents,
		"colophons":   colophons,
	}
}
