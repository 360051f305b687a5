package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/hebrew-ms/backend/internal/gazetteer"
)

type GazetteerHandler struct {
	index *gazetteer.Index
}

// NewGazetteerHandler accepts a nil index; the endpoints then answer 503.
func NewGazetteerHandler(index *gazetteer.Index) *GazetteerHandler {
	return &GazetteerHandler{index: index}
}

func (h *GazetteerHandler) unavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": "Gazetteer index is not loaded",
	})
}

func (h *GazetteerHandler) Stats(c *fiber.Ctx) error {
	if h.index == nil {
		return h.unavailable(c)
	}
	hits, misses := h.index.MemoStats()
	return c.JSON(fiber.Map{
		"statistics":  h.index.Statistics(),
		"memo_hits":   hits,
		"memo_misses": misses,
	})
}

func (h *GazetteerHandler) Lookup(c *fiber.Ctx) error {
	if h.index == nil {
		return h.unavailable(c)
	}
	q := c.Query("q")
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "q is required",
		})
	}

	place, ok := h.index.Lookup(q)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"query": q,
			"found": false,
		})
	}
	return c.JSON(fiber.Map{
		"query": q,
		"found": true,
		"place": place,
	})
}

// param returns a path parameter with percent-escapes decoded.
func param(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
