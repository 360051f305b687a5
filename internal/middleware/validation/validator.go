package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	ExtractPath      = "/api/v1/extract"
	ExtractBatchPath = "/api/v1/extract/batch"
)

type Config struct {
	MaxNoteLength int
	MaxBatchSize  int
	MaxIDLength   int
	Logger        *zap.Logger
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// Middleware rejects malformed extraction requests before they reach the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxNoteLength == 0 {
		cfg.MaxNoteLength = 20000
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.MaxIDLength == 0 {
		cfg.MaxIDLength = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if ct := c.Get(fiber.HeaderContentType); ct != "" && !strings.HasPrefix(ct, fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := strings.TrimSuffix(c.Path(), "/")
		if path != ExtractPath && path != ExtractBatchPath {
			return c.Next()
		}

		body := c.Body()
		if !gjson.ValidBytes(body) {
			return badRequest(c, "Invalid JSON format")
		}
		doc := gjson.ParseBytes(body)

		var msg string
		if path == ExtractPath {
			msg = checkRecord(doc, cfg)
		} else {
			msg = checkBatch(doc, cfg)
		}
		if msg != "" {
			cfg.Logger.Debug("Request rejected",
				zap.String("ip", c.IP()),
				zap.String("path", path),
				zap.String("reason", msg),
			)
			return badRequest(c, msg)
		}

		return c.Next()
	}
}

func checkRecord(doc gjson.Result, cfg Config) string {
	text := doc.Get("text")
	if text.Type != gjson.String || strings.TrimSpace(text.Str) == "" {
		return "Text is required and must be a string"
	}
	if utf8.RuneCountInString(text.Str) > cfg.MaxNoteLength {
		return "Text exceeds maximum length"
	}
	if strings.ContainsRune(text.Str, 0) {
		return "Text contains invalid characters"
	}

	if id := doc.Get("manuscript_id"); id.Exists() {
		if id.Type != gjson.String {
			return "Manuscript id must be a string"
		}
		if len(id.Str) > cfg.MaxIDLength {
			return "Manuscript id exceeds maximum length"
		}
	}
	if meta := doc.Get("metadata"); meta.Exists() && !meta.IsObject() {
		return "Metadata must be an object"
	}
	return ""
}

func checkBatch(doc gjson.Result, cfg Config) string {
	records := doc.Get("records")
	if !records.IsArray() {
		return "Records are required and must be an array"
	}
	items := records.Array()
	if len(items) == 0 {
		return "Records must not be empty"
	}
	if len(items) > cfg.MaxBatchSize {
		return "Batch exceeds maximum size"
	}
	for _, item := range items {
		if !item.IsObject() {
			return "Each record must be an object"
		}
		if msg := checkRecord(item, cfg); msg != "" {
			return msg
		}
	}
	return ""
}
