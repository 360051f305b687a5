package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hebrew-ms/backend/internal/classification"
	"github.com/hebrew-ms/backend/internal/events"
	"github.com/hebrew-ms/backend/internal/ingestion"
	"github.com/hebrew-ms/backend/internal/metrics"
	"github.com/hebrew-ms/backend/internal/models"
)

const DefaultWorkers = 4

type Extractor interface {
	Extract(id, text string, metadata map[string]string) models.Manuscript
}

type Classifier interface {
	Classify(ctx context.Context, m models.Manuscript) classification.Outcome
	ClassifyAll(ctx context.Context, manuscripts []models.Manuscript) (map[string][]models.ClassifiedEntity, classification.Stats)
}

// Sink receives the enriched batch. Sinks run in registration order.
type Sink interface {
	Name() string
	Store(ctx context.Context, report *Report) error
}

type Report struct {
	RunID      string
	Result     models.ExtractionResult
	Classified map[string][]models.ClassifiedEntity
	Stats      classification.Stats
	Duration   time.Duration
}

type Pipeline struct {
	extractor  Extractor
	classifier Classifier
	sinks      []Sink
	workers    int
	logger     *zap.Logger
}

type Option func(*Pipeline)

func WithSinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func New(extractor Extractor, classifier Classifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:  extractor,
		classifier: classifier,
		workers:    DefaultWorkers,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract runs the pattern extractors over every record in parallel. Output order
// matches input order.
func (p *Pipeline) Extract(ctx context.Context, records []ingestion.Record) ([]models.Manuscript, error) {
	start := time.Now()
	out := make([]models.Manuscript, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, r := range records {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = p.extractor.Extract(r.ID, r.Notes, r.Fields)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}

	for _, m := range out {
		observeExtraction(m)
	}
	metrics.ExtractionDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	return out, nil
}

func observeExtraction(m models.Manuscript) {
	status := "empty"
	if m.HasEntities() {
		status = "with_entities"
	}
	metrics.ManuscriptsProcessed.WithLabelValues(status).Inc()
	metrics.EntitiesExtracted.WithLabelValues(string(models.EntityDate)).Add(float64(len(m.Dates)))
	metrics.EntitiesExtracted.WithLabelValues(string(models.EntityLocation)).Add(float64(len(m.Locations)))
	metrics.EntitiesExtracted.WithLabelValues(string(models.EntityPerson)).Add(float64(len(m.Persons)))
}

// Run extracts, classifies and enriches the batch, then hands it to every sink.
// Sink failures are aggregated and returned after all sinks have run; the report is
// returned either way.
func (p *Pipeline) Run(ctx context.Context, records []ingestion.Record) (*Report, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID))
	log.Info("Pipeline started", zap.Int("records", len(records)), zap.Int("workers", p.workers))

	manuscripts, err := p.Extract(ctx, records)
	if err != nil {
		return nil, err
	}
	log.Info("Entities extracted", zap.Int("manuscripts", len(manuscripts)))

	classifyStart := time.Now()
	classified, stats := p.classifier.ClassifyAll(ctx, manuscripts)
	metrics.ExtractionDuration.WithLabelValues("classify").Observe(time.Since(classifyStart).Seconds())

	enrichStart := time.Now()
	enriched := events.EnrichAll(manuscripts, classified)
	metrics.ExtractionDuration.WithLabelValues("enrich").Observe(time.Since(enrichStart).Seconds())

	report := &Report{
		RunID:      runID,
		Result:     models.NewExtractionResult(enriched, time.Now().UTC()),
		Classified: classified,
		Stats:      stats,
		Duration:   time.Since(start),
	}

	var sinkErr *multierror.Error
	sinkStart := time.Now()
	for _, s := range p.sinks {
		if err := s.Store(ctx, report); err != nil {
			log.Error("Sink failed", zap.String("sink", s.Name()), zap.Error(err))
			sinkErr = multierror.Append(sinkErr, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		log.Debug("Sink stored batch", zap.String("sink", s.Name()))
	}
	metrics.ExtractionDuration.WithLabelValues("sinks").Observe(time.Since(sinkStart).Seconds())

	report.Duration = time.Since(start)
	log.Info("Pipeline finished",
		zap.Int("manuscripts", len(enriched)),
		zap.Int("events", report.Result.TotalEvents),
		zap.Int("classified_manuscripts", len(classified)),
		zap.Duration("duration", report.Duration),
	)
	return report, sinkErr.ErrorOrNil()
}

// Process handles a single note end to end without sinks.
func (p *Pipeline) Process(ctx context.Context, id, text string, metadata map[string]string) (models.Manuscript, classification.Outcome) {
	start := time.Now()
	m := p.extractor.Extract(id, text, metadata)
	observeExtraction(m)
	outcome := p.classifier.Classify(ctx, m)
	enriched := events.Enrich(m, outcome.Classified())
	metrics.ExtractionDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())
	return enriched, outcome
}
