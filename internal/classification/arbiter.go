package classification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/metrics"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/patterns"
)

type Mode string

const (
	ModeHybrid Mode = "hybrid"
	// ModeAI sends every entity to the AI classifier.
	ModeAI Mode = "ai"
)

var ErrUnknownMode = errors.New("unknown classification mode")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHybrid, ModeAI:
		return Mode(s), nil
	case "":
		return ModeHybrid, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

const (
	patternPersonConfidence = 0.9
	queuedPersonConfidence  = 1.0
)

// EntityClassifier labels a subset of entities; AIClassifier is the production one.
type EntityClassifier interface {
	Classify(ctx context.Context, text string, entities []models.ExtractedEntity) []models.ClassifiedEntity
}

// Unresolved is the queue handed from the pattern phase to the AI phase.
type Unresolved struct {
	ManuscriptID string
	Text         string
	Entities     []models.ExtractedEntity
}

func (u Unresolved) Empty() bool { return len(u.Entities) == 0 }

// Outcome partitions every entity of a manuscript: each one is in exactly one of
// Pattern, AI or Unclassified.
type Outcome struct {
	ManuscriptID string
	Pattern      []models.ClassifiedEntity
	AI           []models.ClassifiedEntity
	Unclassified []models.ExtractedEntity
}

func (o Outcome) Classified() []models.ClassifiedEntity {
	out := make([]models.ClassifiedEntity, 0, len(o.Pattern)+len(o.AI))
	out = append(out, o.Pattern...)
	return append(out, o.AI...)
}

func (o Outcome) Total() int {
	return len(o.Pattern) + len(o.AI) + len(o.Unclassified)
}

type Stats struct {
	Manuscripts        int `json:"manuscripts"`
	PersonAttempts     int `json:"person_attempts"`
	PersonSuccesses    int `json:"person_successes"`
	LocationAttempts   int `json:"location_attempts"`
	LocationSuccesses  int `json:"location_successes"`
	QueuedForAI        int `json:"queued_for_ai"`
	ClassifiedByAI     int `json:"classified_by_ai"`
	LeftUnclassified   int `json:"left_unclassified"`
	ManuscriptsWithAI  int `json:"manuscripts_with_ai"`
	ManuscriptsSkipped int `json:"manuscripts_skipped"`
}

func (s *Stats) add(o Stats) {
	s.Manuscripts += o.Manuscripts
	s.PersonAttempts += o.PersonAttempts
	s.PersonSuccesses += o.PersonSuccesses
	s.LocationAttempts += o.LocationAttempts
	s.LocationSuccesses += o.LocationSuccesses
	s.QueuedForAI += o.QueuedForAI
	s.ClassifiedByAI += o.ClassifiedByAI
	s.LeftUnclassified += o.LeftUnclassified
	s.ManuscriptsWithAI += o.ManuscriptsWithAI
	s.ManuscriptsSkipped += o.ManuscriptsSkipped
}

func rate(successes, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(successes) / float64(attempts)
}

func (s Stats) PersonRate() float64   { return rate(s.PersonSuccesses, s.PersonAttempts) }
func (s Stats) LocationRate() float64 { return rate(s.LocationSuccesses, s.LocationAttempts) }

type Arbiter struct {
	ai     EntityClassifier
	mode   Mode
	logger *zap.Logger
}

type ArbiterOption func(*Arbiter)

func WithMode(m Mode) ArbiterOption {
	return func(a *Arbiter) { a.mode = m }
}

func WithLogger(logger *zap.Logger) ArbiterOption {
	return func(a *Arbiter) { a.logger = logger }
}

// NewArbiter builds an arbiter. A nil ai classifier leaves the pattern residue
// unclassified.
func NewArbiter(ai EntityClassifier, opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{ai: ai, mode: ModeHybrid, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Arbiter) Mode() Mode { return a.mode }

func (a *Arbiter) AIEnabled() bool { return a.ai != nil }

func personEntities(m models.Manuscript, confidence float64) []models.ExtractedEntity {
	out := make([]models.ExtractedEntity, 0, len(m.Persons))
	for _, p := range m.Persons {
		e, err := models.NewExtractedEntity(p.Name, models.EntityPerson, confidence, m.NotesText,
			models.WithMetadata(map[string]string{"patronymic": p.Patronymic}))
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Resolve runs the pattern phase. Persons and locations with a pattern label are
// final; the rest, plus every date, are queued.
func (a *Arbiter) Resolve(m models.Manuscript) ([]models.ClassifiedEntity, Unresolved, Stats) {
	queue := Unresolved{ManuscriptID: m.ID, Text: m.NotesText}
	var stats Stats

	if a.mode == ModeAI {
		queue.Entities = append(queue.Entities, m.Dates...)
		queue.Entities = append(queue.Entities, m.Locations...)
		queue.Entities = append(queue.Entities, personEntities(m, queuedPersonConfidence)...)
		return nil, queue, stats
	}

	var classified []models.ClassifiedEntity

	for _, p := range m.Persons {
		stats.PersonAttempts++
		role, ok := patterns.ClassifyPerson(m.NotesText, p.Name)
		confidence := queuedPersonConfidence
		if ok {
			confidence = patternPersonConfidence
		}
		e, err := models.NewExtractedEntity(p.Name, models.EntityPerson, confidence, m.NotesText,
			models.WithMetadata(map[string]string{"patronymic": p.Patronymic}))
		if err != nil {
			continue
		}
		if !ok {
			queue.Entities = append(queue.Entities, e)
			continue
		}
		stats.PersonSuccesses++
		classified = append(classified, models.ClassifiedEntity{
			Entity:  e,
			Label:   role,
			Mapping: OntologyMapping(role),
			Source:  models.SourcePattern,
		})
	}

	for _, loc := range m.Locations {
		stats.LocationAttempts++
		rel, ok := patterns.ClassifyLocation(m.NotesText, loc.Value())
		if !ok {
			queue.Entities = append(queue.Entities, loc)
			continue
		}
		stats.LocationSuccesses++
		classified = append(classified, models.ClassifiedEntity{
			Entity:  loc,
			Label:   rel,
			Mapping: OntologyMapping(rel),
			Source:  models.SourcePattern,
		})
	}

	queue.Entities = append(queue.Entities, m.Dates...)
	return classified, queue, stats
}

type entityKey struct {
	typ   models.EntityType
	value string
}

// Classify runs both phases for one manuscript. AI failures degrade to unclassified
// entities and are never returned.
func (a *Arbiter) Classify(ctx context.Context, m models.Manuscript) Outcome {
	out, _ := a.classify(ctx, m)
	return out
}

func (a *Arbiter) classify(ctx context.Context, m models.Manuscript) (Outcome, Stats) {
	outcome := Outcome{ManuscriptID: m.ID}
	if !m.HasEntities() {
		return outcome, Stats{ManuscriptsSkipped: 1}
	}

	classified, queue, stats := a.Resolve(m)
	stats.Manuscripts = 1
	outcome.Pattern = classified

	if queue.Empty() {
		a.record(outcome)
		return outcome, stats
	}
	stats.QueuedForAI = len(queue.Entities)

	if a.ai == nil {
		outcome.Unclassified = queue.Entities
		stats.LeftUnclassified = len(queue.Entities)
		a.record(outcome)
		return outcome, stats
	}

	stats.ManuscriptsWithAI = 1
	labels := map[entityKey]string{}
	for _, c := range a.ai.Classify(ctx, queue.Text, queue.Entities) {
		k := entityKey{c.Type(), c.Value()}
		if _, done := labels[k]; done || !IsAllowed(c.Type(), c.Label) {
			continue
		}
		labels[k] = c.Label
	}

	for _, e := range queue.Entities {
		label, ok := labels[entityKey{e.Type(), e.Value()}]
		if !ok {
			outcome.Unclassified = append(outcome.Unclassified, e)
			continue
		}
		outcome.AI = append(outcome.AI, models.ClassifiedEntity{
			Entity:  e,
			Label:   label,
			Mapping: OntologyMapping(label),
			Source:  models.SourceAI,
		})
	}

	stats.ClassifiedByAI = len(outcome.AI)
	stats.LeftUnclassified = len(outcome.Unclassified)
	a.record(outcome)
	return outcome, stats
}

func (a *Arbiter) record(o Outcome) {
	for _, c := range o.Pattern {
		metrics.Classifications.WithLabelValues(string(models.SourcePattern), string(c.Type())).Inc()
	}
	for _, c := range o.AI {
		metrics.Classifications.WithLabelValues(string(models.SourceAI), string(c.Type())).Inc()
	}
	for _, e := range o.Unclassified {
		metrics.Classifications.WithLabelValues("unclassified", string(e.Type())).Inc()
	}
}

// ClassifyAll classifies every manuscript and returns the labelled entities per
// manuscript id. Manuscripts without any label are absent from the map.
func (a *Arbiter) ClassifyAll(ctx context.Context, manuscripts []models.Manuscript) (map[string][]models.ClassifiedEntity, Stats) {
	result := map[string][]models.ClassifiedEntity{}
	var total Stats

	for _, m := range manuscripts {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("Classification interrupted", zap.Error(err))
			break
		}
		outcome, stats := a.classify(ctx, m)
		total.add(stats)
		if c := outcome.Classified(); len(c) > 0 {
			result[m.ID] = c
		}
	}

	a.logger.Info("Classification finished",
		zap.String("mode", string(a.mode)),
		zap.Int("manuscripts", total.Manuscripts),
		zap.Int("person_successes", total.PersonSuccesses),
		zap.Int("person_attempts", total.PersonAttempts),
		zap.Int("location_successes", total.LocationSuccesses),
		zap.Int("location_attempts", total.LocationAttempts),
		zap.Int("queued_for_ai", total.QueuedForAI),
		zap.Int("classified_by_ai", total.ClassifiedByAI),
		zap.Int("left_unclassified", total.LeftUnclassified),
	)
	return result, total
}
