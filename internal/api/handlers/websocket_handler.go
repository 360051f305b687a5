package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/pipeline"
	"github.com/hebrew-ms/backend/pkg/logger"
)

type WebSocketHandler struct {
	pipeline *pipeline.Pipeline
	maxBatch int
}

func NewWebSocketHandler(p *pipeline.Pipeline, maxBatch int) *WebSocketHandler {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &WebSocketHandler{
		pipeline: p,
		maxBatch: maxBatch,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

type wsMessage struct {
	Type    string           `json:"type"`
	Records []ExtractRequest `json:"records"`
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "extract" {
			continue
		}

		if err := h.streamBatch(c, msg.Records); err != nil {
			logger.Error("Failed to stream batch", zap.Error(err))
			break
		}
	}
}

// streamBatch processes records one at a time, sending each manuscript as soon as it is
// enriched.
func (h *WebSocketHandler) streamBatch(c *websocket.Conn, reqs []ExtractRequest) error {
	start := time.Now()
	batchID := uuid.New().String()

	if len(reqs) == 0 {
		return h.sendError(c, "Records are required")
	}
	if len(reqs) > h.maxBatch {
		return h.sendError(c, fmt.Sprintf("Batch exceeds %d records", h.maxBatch))
	}

	logger.Info("Processing WebSocket batch", zap.String("batch_id", batchID), zap.Int("records", len(reqs)))
	if err := h.send(c, fiber.Map{"type": "status", "batch_id": batchID, "total": len(reqs)}); err != nil {
		return err
	}

	ctx := context.Background()
	classified, skipped := 0, 0
	for i, req := range reqs {
		r := toRecord(req)
		if r.Notes == "" {
			skipped++
			if err := h.send(c, fiber.Map{"type": "skipped", "index": i, "manuscript_id": r.ID}); err != nil {
				return err
			}
			continue
		}

		m, outcome := h.pipeline.Process(ctx, r.ID, r.Notes, r.Fields)
		classified += len(outcome.Pattern) + len(outcome.AI)
		if err := h.send(c, fiber.Map{
			"type":   "manuscript",
			"index":  i,
			"result": newExtractResponse(m, outcome),
		}); err != nil {
			return err
		}
	}

	return h.send(c, fiber.Map{
		"type":       "complete",
		"batch_id":   batchID,
		"processed":  len(reqs) - skipped,
		"skipped":    skipped,
		"classified": classified,
		"latency_ms": time.Since(start).Milliseconds(),
	})
}

func (h *WebSocketHandler) send(c *websocket.Conn, msg fiber.Map) error {
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return c.WriteJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}
