package extractors

import (
	"strings"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/gazetteer"
	"github.com/hebrew-ms/backend/internal/models"
)

// Extractor runs every pattern extractor over a note and assembles the manuscript.
// With an index configured, locations come from the validated index path; otherwise
// from the flat gazetteer set.
type Extractor struct {
	places    gazetteer.Set
	index     PlaceResolver
	validator LocationValidator
	opts      LocationOptions
	logger    *zap.Logger
}

type Option func(*Extractor)

func WithGazetteerSet(places gazetteer.Set) Option {
	return func(e *Extractor) { e.places = places }
}

func WithIndex(index PlaceResolver, v LocationValidator) Option {
	return func(e *Extractor) {
		e.index = index
		e.validator = v
	}
}

func WithLocationOptions(opts LocationOptions) Option {
	return func(e *Extractor) { e.opts = opts }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		places: gazetteer.Set{},
		opts:   DefaultLocationOptions,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) UsesIndex() bool {
	return e.index != nil && e.validator != nil
}

func (e *Extractor) Locations(text string) []models.ExtractedEntity {
	if e.UsesIndex() {
		return ExtractLocationsWithIndex(text, e.index, e.validator)
	}
	return ExtractLocations(text, e.places, e.opts)
}

func (e *Extractor) Extract(id, text string, metadata map[string]string) models.Manuscript {
	m := models.Manuscript{
		ID:             id,
		NotesText:      text,
		Dates:          ExtractDates(text),
		Locations:      e.Locations(text),
		Persons:        ExtractPersons(text),
		SourceMetadata: metadata,
	}
	if c, ok := ExtractColophon(text); ok {
		m.Colophon = &c
	}
	if title, ok := ExtractWorkTitle(text); ok {
		m.Work = &models.Work{Title: title, Language: "Hebrew"}
	}

	if strings.TrimSpace(text) != "" {
		e.logger.Debug("Entities extracted",
			zap.String("manuscript_id", id),
			zap.Int("dates", len(m.Dates)),
			zap.Int("locations", len(m.Locations)),
			zap.Int("persons", len(m.Persons)),
			zap.Bool("colophon", m.Colophon != nil),
		)
	}
	return m
}
