package models

import "time"

type Manuscript struct {
	ID             string            `json:"manuscript_id"`
	NotesText      string            `json:"notes_text"`
	HasColophon    bool              `json:"has_colophon"`
	ColophonText   string            `json:"colophon_text,omitempty"`
	ScribeName     string            `json:"scribe_name,omitempty"`
	WorkTitle      string            `json:"work_title,omitempty"`
	SourceMetadata map[string]string `json:"source_metadata,omitempty"`
	RunID          string            `json:"run_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Entities       []Entity          `json:"entities"`
	Events         []Event           `json:"events"`
}

// Entity is an extracted entity row with its classification, when it has one.
type Entity struct {
	ID           int64             `json:"id"`
	ManuscriptID string            `json:"manuscript_id"`
	Type         string            `json:"type"`
	Value        string            `json:"value"`
	Confidence   float64           `json:"confidence"`
	SpanStart    *int              `json:"span_start,omitempty"`
	SpanEnd      *int              `json:"span_end,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Label        string            `json:"label,omitempty"`
	Source       string            `json:"source,omitempty"`
	EventClass   string            `json:"event_class,omitempty"`
	Property     string            `json:"property,omitempty"`
}

func (e Entity) Classified() bool { return e.Label != "" }

type Event struct {
	ID           string            `json:"id"`
	ManuscriptID string            `json:"manuscript_id"`
	EventType    string            `json:"event_type"`
	EventClass   string            `json:"event_class"`
	Date         string            `json:"date,omitempty"`
	PlaceName    string            `json:"place,omitempty"`
	PlaceURI     string            `json:"place_uri,omitempty"`
	Lat          *float64          `json:"lat,omitempty"`
	Lon          *float64          `json:"lon,omitempty"`
	ActorName    string            `json:"actor,omitempty"`
	ActorRole    string            `json:"actor_role,omitempty"`
	Properties   map[string]string `json:"properties,omitempty"`
}

type ManuscriptSummary struct {
	ID        string    `json:"manuscript_id"`
	Label     string    `json:"label,omitempty"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Run struct {
	ID            string    `json:"id"`
	Manuscripts   int       `json:"manuscripts"`
	Classified    int       `json:"classified"`
	Events        int       `json:"events"`
	PatternLabels int       `json:"pattern_labels"`
	AILabels      int       `json:"ai_labels"`
	Unclassified  int       `json:"unclassified"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

type LabelCount struct {
	Type   string `json:"type"`
	Label  string `json:"label"`
	Source string `json:"source"`
	Count  int    `json:"count"`
}
