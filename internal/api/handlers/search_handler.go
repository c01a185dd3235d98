package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/search"
	"github.com/reviewlens/backend/pkg/logger"
)

type SearchHandler struct {
	service *search.Service
}

func NewSearchHandler(service *search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) FindSimilar(c *fiber.Ctx) error {
	var req struct {
		Query     string `json:"query"`
		ExcludeID string `json:"exclude_id"`
		Limit     int    `json:"limit"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query is required",
		})
	}

	results, err := h.service.FindSimilar(c.Context(), req.Query, req.ExcludeID, req.Limit)
	if err != nil {
		logger.Error("Similarity search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Search failed",
		})
	}

	// No matches and no matches-but-filtered look identical to the caller.
	items := make([]fiber.Map, 0, len(results))
	for _, r := range results {
		items = append(items, fiber.Map{
			"document_id": r.DocumentID,
			"score":       r.Score,
			"match_type":  r.MatchType,
		})
	}

	return c.JSON(fiber.Map{
		"query":   req.Query,
		"results": items,
		"count":   len(items),
	})
}
