package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/classification"
	"github.com/hebrew-ms/backend/internal/ingestion"
	"github.com/hebrew-ms/backend/internal/models"
	"github.com/hebrew-ms/backend/internal/pipeline"
	"github.com/hebrew-ms/backend/pkg/logger"
)

type ExtractRequest struct {
	ManuscriptID string            `json:"manuscript_id"`
	Text         string            `json:"text"`
	Metadata     map[string]string `json:"metadata"`
}

type ExtractResponse struct {
	Manuscript   models.Manuscript         `json:"manuscript"`
	Classified   []models.ClassifiedEntity `json:"classified"`
	Unclassified []models.ExtractedEntity  `json:"unclassified"`
}

// toRecord cleans the note and assigns an id when the caller sent none.
func toRecord(req ExtractRequest) ingestion.Record {
	id := req.ManuscriptID
	if id == "" {
		id = "adhoc-" + uuid.New().String()
	}
	return ingestion.Record{ID: id, Notes: ingestion.CleanText(req.Text), Fields: req.Metadata}
}

func newExtractResponse(m models.Manuscript, outcome classification.Outcome) ExtractResponse {
	classified := outcome.Classified()
	unclassified := outcome.Unclassified
	if unclassified == nil {
		unclassified = []models.ExtractedEntity{}
	}
	return ExtractResponse{Manuscript: m, Classified: classified, Unclassified: unclassified}
}

type ExtractHandler struct {
	pipeline *pipeline.Pipeline
}

func NewExtractHandler(p *pipeline.Pipeline) *ExtractHandler {
	return &ExtractHandler{pipeline: p}
}

func (h *ExtractHandler) Extract(c *fiber.Ctx) error {
	var req ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	r := toRecord(req)
	if r.Notes == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}

	m, outcome := h.pipeline.Process(c.UserContext(), r.ID, r.Notes, r.Fields)
	logger.Debug("Note extracted",
		zap.String("manuscript_id", r.ID),
		zap.Int("classified", len(outcome.Pattern)+len(outcome.AI)),
		zap.Int("unclassified", len(outcome.Unclassified)),
	)
	return c.JSON(newExtractResponse(m, outcome))
}

type batchManuscript struct {
	Manuscript models.Manuscript         `json:"manuscript"`
	Classified []models.ClassifiedEntity `json:"classified"`
}

func (h *ExtractHandler) ExtractBatch(c *fiber.Ctx) error {
	var req struct {
		Records []ExtractRequest `json:"records"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Records) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Records are required",
		})
	}

	records := make([]ingestion.Record, 0, len(req.Records))
	for _, r := range req.Records {
		records = append(records, toRecord(r))
	}

	report, err := h.pipeline.Run(c.UserContext(), records)
	if report == nil {
		logger.Error("Failed to run extraction batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run extraction",
		})
	}

	manuscripts := make([]batchManuscript, 0, len(report.Result.Manuscripts))
	for _, m := range report.Result.Manuscripts {
		classified := report.Classified[m.ID]
		if classified == nil {
			classified = []models.ClassifiedEntity{}
		}
		manuscripts = append(manuscripts, batchManuscript{Manuscript: m, Classified: classified})
	}

	resp := fiber.Map{
		"run_id":      report.RunID,
		"summary":     report.Result.Summary(),
		"stats":       report.Stats,
		"manuscripts": manuscripts,
		"latency_ms":  report.Duration.Milliseconds(),
	}
	if err != nil {
		logger.Warn("Batch stored with sink errors", zap.String("run_id", report.RunID), zap.Error(err))
		resp["sink_error"] = err.Error()
	}
	return c.JSON(resp)
}
