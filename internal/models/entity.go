package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityDate         EntityType = "date"
	EntityLocation     EntityType = "location"
	EntityPerson       EntityType = "person"
	EntityWork         EntityType = "work"
	EntityOrganization EntityType = "organization"
)

var (
	ErrEmptyValue      = errors.New("entity value cannot be empty")
	ErrConfidenceRange = errors.New("confidence must be between 0 and 1")
)

type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ExtractedEntity is a candidate produced by an extractor. Offsets are rune offsets into the note.
type ExtractedEntity struct {
	value      string
	entityType EntityType
	confidence float64
	context    string
	span       *Span
	metadata   map[string]string
}

type EntityOption func(*ExtractedEntity)

func WithSpan(start, end int) EntityOption {
	return func(e *ExtractedEntity) {
		e.span = &Span{Start: start, End: end}
	}
}

func WithMetadata(metadata map[string]string) EntityOption {
	return func(e *ExtractedEntity) {
		if len(metadata) == 0 {
			return
		}
		e.metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			e.metadata[k] = v
		}
	}
}

func NewExtractedEntity(value string, entityType EntityType, confidence float64, context string, opts ...EntityOption) (ExtractedEntity, error) {
	if strings.TrimSpace(value) == "" {
		return ExtractedEntity{}, ErrEmptyValue
	}
	if confidence < 0 || confidence > 1 {
		return ExtractedEntity{}, fmt.Errorf("%w: got %v", ErrConfidenceRange, confidence)
	}

	e := ExtractedEntity{
		value:      value,
		entityType: entityType,
		confidence: confidence,
		context:    context,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e, nil
}

func (e ExtractedEntity) Value() string { return e.value }
func (e ExtractedEntity) Type() EntityType { return e.entityType }
func (e ExtractedEntity) Confidence() float64 { return e.confidence }
func (e ExtractedEntity) Context() string { return e.context }
func (e ExtractedEntity) MetadataValue(k string) string { return e.metadata[k] }

func (e ExtractedEntity) Span() (Span, bool) {
	if e.span == nil {
		return Span{}, false
	}
	return *e.span, true
}

func (e ExtractedEntity) Metadata() map[string]string {
	if e.metadata == nil {
		return nil
	}
	out := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		out[k] = v
	}
	return out
}

type entityJSON struct {
	Value      string            `json:"value"`
	Type       EntityType        `json:"type"`
	Confidence float64           `json:"confidence"`
	Context    string            `json:"context,omitempty"`
	Span       *Span             `json:"span,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e ExtractedEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(entityJSON{
		Value:      e.value,
		Type:       e.entityType,
		Confidence: e.confidence,
		Context:    e.context,
		Span:       e.span,
		Metadata:   e.metadata,
	})
}

func (e *ExtractedEntity) UnmarshalJSON(data []byte) error {
	var raw entityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	opts := []EntityOption{WithMetadata(raw.Metadata)}
	if raw.Span != nil {
		opts = append(opts, WithSpan(raw.Span.Start, raw.Span.End))
	}
	parsed, err := NewExtractedEntity(raw.Value, raw.Type, raw.Confidence, raw.Context, opts...)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

type ClassificationSource string

const (
	SourcePattern ClassificationSource = "pattern"
	SourceAI      ClassificationSource = "ai"
)

// OntologyMapping holds the CIDOC-CRM / LRMoo tags attached to a label. Empty fields are absent.
type OntologyMapping struct {
	EventClass string `json:"event_class,omitempty"`
	Property   string `json:"property,omitempty"`
	Level      string `json:"level,omitempty"`
	CRMClass   string `json:"crm_class,omitempty"`
	EventRole  string `json:"event_role,omitempty"`
	Context    string `json:"context,omitempty"`
}

type ClassifiedEntity struct {
	Entity  ExtractedEntity      `json:"entity"`
	Label   string               `json:"label"`
	Mapping OntologyMapping      `json:"ontology_mapping"`
	Source  ClassificationSource `json:"source"`
}

func (c ClassifiedEntity) Value() string { return c.Entity.Value() }
func (c ClassifiedEntity) Type() EntityType { return c.Entity.Type() }
