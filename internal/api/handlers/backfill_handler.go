package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/embedding"
	"github.com/reviewlens/backend/pkg/logger"
)

type BackfillHandler struct {
	backfiller *embedding.Backfiller
}

func NewBackfillHandler(backfiller *embedding.Backfiller) *BackfillHandler {
	return &BackfillHandler{backfiller: backfiller}
}

// RunBackfill executes a backfill synchronously and reports the tallies. For
// long-running populations the websocket endpoint streams batch progress
// instead.
func (h *BackfillHandler) RunBackfill(c *fiber.Ctx) error {
	var req struct {
		Mode string `json:"mode"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	mode, err := embedding.ParseMode(req.Mode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	result, err := h.backfiller.Run(c.Context(), mode)
	if err != nil {
		logger.Error("Backfill run failed", zap.String("mode", string(mode)), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Backfill failed",
		})
	}

	return c.JSON(fiber.Map{
		"mode":      string(mode),
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
	})
}
