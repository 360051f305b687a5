package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/evaluation"
	"github.com/hebrew-ms/backend/internal/export"
	"github.com/hebrew-ms/backend/internal/models"
	storage "github.com/hebrew-ms/backend/internal/storage/models"
)

// CSVSink writes the export tables for each run.
type CSVSink struct {
	writer *export.Writer
	logger *zap.Logger
}

func NewCSVSink(writer *export.Writer, logger *zap.Logger) *CSVSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSink{writer: writer, logger: logger}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Store(_ context.Context, report *Report) error {
	saved, err := s.writer.WriteAll(report.Result, report.Classified)
	if err != nil {
		return fmt.Errorf("failed to export tables: %w", err)
	}
	s.logger.Info("Export complete", zap.String("run_id", report.RunID), zap.Int("files", len(saved)))
	return nil
}

// ManuscriptStore persists enriched manuscripts with their classifications.
type ManuscriptStore interface {
	SaveManuscript(ctx context.Context, m models.Manuscript, classified []models.ClassifiedEntity, runID string) error
}

// StoreSink writes each manuscript through a ManuscriptStore. The sqlite store and the
// graph writer both satisfy it.
type StoreSink struct {
	name  string
	store ManuscriptStore
}

func NewStoreSink(name string, store ManuscriptStore) *StoreSink {
	return &StoreSink{name: name, store: store}
}

func (s *StoreSink) Name() string { return s.name }

func (s *StoreSink) Store(ctx context.Context, report *Report) error {
	for _, m := range report.Result.Manuscripts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.store.SaveManuscript(ctx, m, report.Classified[m.ID], report.RunID); err != nil {
			return fmt.Errorf("failed to store manuscript %s: %w", m.ID, err)
		}
	}
	return nil
}

type RunRecorder interface {
	RecordRun(ctx context.Context, run *storage.Run) error
}

// RunSink records batch coverage in the run history. Register it after the stores.
type RunSink struct {
	recorder RunRecorder
}

func NewRunSink(recorder RunRecorder) *RunSink {
	return &RunSink{recorder: recorder}
}

func (s *RunSink) Name() string { return "runs" }

func (s *RunSink) Store(ctx context.Context, report *Report) error {
	coverage := evaluation.Coverage(report.Result.Manuscripts, report.Classified, report.Stats)
	run := evaluation.RunRecord(report.RunID, coverage, report.Result.TotalEvents, report.Duration.Milliseconds())
	return s.recorder.RecordRun(ctx, run)
}
