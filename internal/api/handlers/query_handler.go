package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/query"
	"github.com/hebrew-ms/backend/internal/storage/sqlite"
	"github.com/hebrew-ms/backend/pkg/logger"
)

type QueryHandler struct {
	queryEngine *query.Engine
}

func NewQueryHandler(queryEngine *query.Engine) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
	}
}

func (h *QueryHandler) GetManuscript(c *fiber.Ctx) error {
	m, err := h.queryEngine.Manuscript(c.UserContext(), c.Params("id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Manuscript not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get manuscript", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get manuscript",
		})
	}
	return c.JSON(m)
}

func (h *QueryHandler) ManuscriptsAtPlace(c *fiber.Ctx) error {
	response, err := h.queryEngine.ManuscriptsAtPlace(c.UserContext(), param(c, "name"), c.QueryInt("limit"))
	return h.respond(c, response, err)
}

func (h *QueryHandler) ManuscriptsByPerson(c *fiber.Ctx) error {
	response, err := h.queryEngine.ManuscriptsByPerson(c.UserContext(), param(c, "name"), c.Query("label"), c.QueryInt("limit"))
	return h.respond(c, response, err)
}

func (h *QueryHandler) RecentRuns(c *fiber.Ctx) error {
	runs, err := h.queryEngine.RecentRuns(c.UserContext(), c.QueryInt("limit"))
	if err != nil {
		logger.Error("Failed to get runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get runs",
		})
	}
	return c.JSON(fiber.Map{"runs": runs})
}

func (h *QueryHandler) respond(c *fiber.Ctx, response *query.Response, err error) error {
	if errors.Is(err, query.ErrEmptyQuery) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name is required",
		})
	}
	if err != nil {
		logger.Error("Failed to process query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}
	return c.JSON(response)
}
