package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/logger"
)

type AgentHandler struct {
	store *sqlite.Client
}

func NewAgentHandler(store *sqlite.Client) *AgentHandler {
	return &AgentHandler{store: store}
}

func (h *AgentHandler) UpsertAgent(c *fiber.Ctx) error {
	var req struct {
		DisplayName string `json:"display_name"`
		Team        string `json:"team"`
		Active      *bool  `json:"active"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	agent := &models.Agent{
		ID:          c.Params("id"),
		DisplayName: req.DisplayName,
		Team:        req.Team,
		Active:      true,
	}
	if req.Active != nil {
		agent.Active = *req.Active
	}

	if err := h.store.UpsertAgent(agent); err != nil {
		logger.Error("Failed to upsert agent", zap.String("agent_id", agent.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save agent",
		})
	}

	return c.JSON(fiber.Map{
		"id":           agent.ID,
		"display_name": agent.DisplayName,
		"team":         agent.Team,
		"active":       agent.Active,
	})
}

func (h *AgentHandler) ListAgents(c *fiber.Ctx) error {
	agents, err := h.store.ListActiveAgents()
	if err != nil {
		logger.Error("Failed to list agents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list agents",
		})
	}

	items := make([]fiber.Map, 0, len(agents))
	for _, a := range agents {
		items = append(items, fiber.Map{
			"id":           a.ID,
			"display_name": a.DisplayName,
			"team":         a.Team,
		})
	}
	return c.JSON(fiber.Map{"agents": items})
}
