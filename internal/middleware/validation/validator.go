// Package validation rejects malformed write payloads before they reach a
// handler.
package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxQueryLength int
	MaxNotesLength int
	Logger         *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength == 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.MaxNotesLength == 0 {
		cfg.MaxNotesLength = 20000
	}

	return func(c *fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodPost && method != fiber.MethodPut {
			return c.Next()
		}

		contentType := c.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "application/json") {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		path := c.Path()

		if strings.Contains(path, "/api/v1/search") {
			if err := validateSearch(c, cfg); err != nil {
				return err
			}
		}

		if strings.Contains(path, "/api/v1/reviews") {
			if err := validateReview(c, cfg); err != nil {
				return err
			}
		}

		return c.Next()
	}
}

func validateSearch(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	query, ok := req["query"].(string)
	if !ok || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required and must be a string",
		})
	}

	if len(query) > cfg.MaxQueryLength {
		cfg.Logger.Warn("Oversized search query rejected",
			zap.String("ip", c.IP()),
			zap.Int("length", len(query)),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query exceeds maximum length",
		})
	}

	return nil
}

func validateReview(c *fiber.Ctx, cfg Config) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON format",
		})
	}

	for _, field := range []string{"short_description", "notes", "feedback"} {
		if text, ok := req[field].(string); ok && len(text) > cfg.MaxNotesLength {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": field + " exceeds maximum length",
			})
		}
	}

	if raw, ok := req["score"]; ok && raw != nil {
		score, ok := raw.(float64)
		if !ok || score < 0 || score > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "score must be between 0 and 100",
			})
		}
	}

	return nil
}
