package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/knowledge-capture/console/internal/chat"
	"github.com/knowledge-capture/console/internal/strategy"
	"github.com/knowledge-capture/console/pkg/logger"
)

type ChatHandler struct {
	chat     *chat.Orchestrator
	selector *strategy.Selector
}

func NewChatHandler(orchestrator *chat.Orchestrator, selector *strategy.Selector) *ChatHandler {
	return &ChatHandler{
		chat:     orchestrator,
		selector: selector,
	}
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	return c.JSON(h.chat.Snapshot())
}

// SendMessage runs one turn and answers with the resulting conversation.
// A backend failure is not an HTTP error: it shows up as the fallback
// assistant message.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Query    string `json:"query"`
		Strategy string `json:"strategy"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	strategyID := h.selector.Current().ID
	if req.Strategy != "" {
		strategyID = strategy.ID(req.Strategy)
	}

	err := h.chat.SendMessage(c.UserContext(), req.Query, strategyID)
	switch {
	case errors.Is(err, chat.ErrEmptyQuery):
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, chat.ErrRequestInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A question is already being answered",
		})
	case errors.Is(err, strategy.ErrUnknownStrategy):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "Unknown retrieval strategy",
			"strategy": req.Strategy,
		})
	case err != nil:
		logger.Error("Chat turn failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send message",
		})
	}

	return c.JSON(h.chat.Snapshot())
}
