package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/chat"
	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/internal/upload"
	"github.com/knowledge-capture/console/pkg/logger"
)

// WebSocketHandler streams state changes to a connected view. On connect it
// sends the current state, then forwards every event from the hub.
type WebSocketHandler struct {
	hub      *events.Hub
	chat     *chat.Orchestrator
	upload   *upload.Orchestrator
	selector *strategy.Selector
}

func NewWebSocketHandler(hub *events.Hub, c *chat.Orchestrator, u *upload.Orchestrator, s *strategy.Selector) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		chat:     c,
		upload:   u,
		selector: s,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	sub, unsubscribe := h.hub.Subscribe()
	defer func() {
		unsubscribe()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	// The client never sends anything meaningful; reading only detects
	// the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range h.initialState() {
		if err := c.WriteJSON(e); err != nil {
			logger.Error("Failed to write WebSocket message", zap.Error(err))
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				logger.Error("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

func (h *WebSocketHandler) initialState() []events.Event {
	return []events.Event{
		{Type: events.TypeChat, Payload: h.chat.Snapshot()},
		{Type: events.TypeUpload, Payload: h.upload.Status()},
		{Type: events.TypeFiles, Payload: h.upload.Files()},
		{Type: events.TypeStrategy, Payload: h.selector.Current()},
	}
}
