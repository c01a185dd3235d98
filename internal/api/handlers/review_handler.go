package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/normalize"
	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/logger"
)

type ReviewHandler struct {
	store *sqlite.Client
}

func NewReviewHandler(store *sqlite.Client) *ReviewHandler {
	return &ReviewHandler{store: store}
}

type reviewRequest struct {
	AgentID          string   `json:"agent_id"`
	ShortDescription string   `json:"short_description"`
	Notes            string   `json:"notes"`
	Feedback         string   `json:"feedback"`
	Score            *int     `json:"score"`
	Categories       []string `json:"categories"`
	GradedAt         int64    `json:"graded_at"`
}

func (h *ReviewHandler) CreateReview(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AgentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "agent_id is required",
		})
	}

	now := time.Now()
	rec := &models.ReviewRecord{
		ID:               uuid.New().String(),
		AgentID:          req.AgentID,
		ShortDescription: req.ShortDescription,
		Notes:            req.Notes,
		Feedback:         req.Feedback,
		Score:            req.Score,
		Categories:       req.Categories,
		EmbeddingStale:   true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if req.GradedAt > 0 {
		rec.GradedAt = time.Unix(req.GradedAt, 0)
	}

	if err := h.store.CreateReview(rec, searchText(rec)); err != nil {
		logger.Error("Failed to create review", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create review",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(reviewResponse(rec))
}

func (h *ReviewHandler) UpdateReview(c *fiber.Ctx) error {
	id := c.Params("id")

	rec, err := h.store.GetReview(id, false)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Review not found",
		})
	}

	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AgentID != "" {
		rec.AgentID = req.AgentID
	}
	rec.ShortDescription = req.ShortDescription
	rec.Notes = req.Notes
	rec.Feedback = req.Feedback
	rec.Categories = req.Categories
	if req.Score != nil {
		rec.Score = req.Score
	}
	if req.GradedAt > 0 {
		rec.GradedAt = time.Unix(req.GradedAt, 0)
	}

	if err := h.store.UpdateReview(rec, searchText(rec)); err != nil {
		logger.Error("Failed to update review", zap.String("review_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update review",
		})
	}

	return c.JSON(reviewResponse(rec))
}

func (h *ReviewHandler) GetReview(c *fiber.Ctx) error {
	rec, err := h.store.GetReview(c.Params("id"), false)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Review not found",
		})
	}
	return c.JSON(reviewResponse(rec))
}

// searchText is the lowercased, markup-stripped index form of the review's
// full content. Keyword matching and staleness detection both key off it.
func searchText(rec *models.ReviewRecord) string {
	return strings.ToLower(normalize.Clean(models.ContentText(rec.Content())))
}

func reviewResponse(rec *models.ReviewRecord) fiber.Map {
	resp := fiber.Map{
		"id":                rec.ID,
		"agent_id":          rec.AgentID,
		"short_description": rec.ShortDescription,
		"notes":             rec.Notes,
		"feedback":          rec.Feedback,
		"categories":        rec.Categories,
		"embedding_stale":   rec.EmbeddingStale,
	}
	if rec.Score != nil {
		resp["score"] = *rec.Score
	}
	if !rec.GradedAt.IsZero() {
		resp["graded_at"] = rec.GradedAt.Unix()
	}
	return resp
}
