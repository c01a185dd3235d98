package handlers

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/embedding"
	"github.com/reviewlens/backend/pkg/logger"
)

// WebSocketHandler streams backfill batch progress to a connected client. One
// backfill runs per connection at a time.
type WebSocketHandler struct {
	backfiller *embedding.Backfiller
	mu         sync.Mutex
}

func NewWebSocketHandler(backfiller *embedding.Backfiller) *WebSocketHandler {
	return &WebSocketHandler{backfiller: backfiller}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type string `json:"type"`
			Mode string `json:"mode"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "backfill" {
			continue
		}

		mode, err := embedding.ParseMode(msg.Mode)
		if err != nil {
			h.sendError(c, err.Error())
			continue
		}

		logger.Info("Streaming backfill over WebSocket", zap.String("mode", string(mode)))

		if err := h.streamBackfill(c, mode); err != nil {
			logger.Error("Failed to stream backfill", zap.Error(err))
			h.sendError(c, "Backfill failed")
		}
	}
}

func (h *WebSocketHandler) streamBackfill(c *websocket.Conn, mode embedding.Mode) error {
	// The progress callback is shared state on the backfiller; serialize runs
	// so two connections cannot clobber each other's observer.
	h.mu.Lock()
	defer h.mu.Unlock()

	h.backfiller.OnProgress(func(p embedding.Progress) {
		c.WriteJSON(map[string]interface{}{
			"type":      "progress",
			"mode":      string(p.Mode),
			"total":     p.Total,
			"done":      p.Done,
			"processed": p.Processed,
			"skipped":   p.Skipped,
			"errors":    p.Errors,
		})
	})
	defer h.backfiller.OnProgress(nil)

	result, err := h.backfiller.Run(context.Background(), mode)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":      "complete",
		"mode":      string(mode),
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
