package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/issues"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/logger"
)

type IssuesHandler struct {
	engine *issues.Engine
	store  *sqlite.Client
}

func NewIssuesHandler(engine *issues.Engine, store *sqlite.Client) *IssuesHandler {
	return &IssuesHandler{engine: engine, store: store}
}

// Analyze recomputes unresolved issues for one agent, or for every active
// agent when no agent_id is given.
func (h *IssuesHandler) Analyze(c *fiber.Ctx) error {
	var req struct {
		AgentID string `json:"agent_id"`
	}

	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.AgentID != "" {
		result, err := h.engine.AnalyzeAgent(c.Context(), req.AgentID)
		if err != nil {
			logger.Error("Issue analysis failed", zap.String("agent_id", req.AgentID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Analysis failed",
			})
		}
		return c.JSON(fiber.Map{"results": []issues.AgentResult{result}})
	}

	results, err := h.engine.AnalyzeAll(c.Context())
	if err != nil {
		logger.Error("Issue analysis failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Analysis failed",
		})
	}
	return c.JSON(fiber.Map{"results": results})
}

// List returns an agent's current unresolved issues, enriched with the
// agent's display name when the directory knows them.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	agentID := c.Query("agent_id")
	if agentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "agent_id is required",
		})
	}

	entries, err := h.store.ListAgentIssues(agentID)
	if err != nil {
		logger.Error("Failed to list agent issues", zap.String("agent_id", agentID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list issues",
		})
	}

	displayName := agentID
	if agent, err := h.store.GetAgent(agentID); err == nil {
		displayName = agent.DisplayName
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"id":         e.ID,
			"review_id":  e.ReviewID,
			"summary":    e.Summary,
			"resolved":   e.Resolved,
			"created_at": e.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"agent_id":   agentID,
		"agent_name": displayName,
		"issues":     items,
	})
}
