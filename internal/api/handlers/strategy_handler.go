package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/knowledge-capture/console/internal/events"
	"github.com/knowledge-capture/console/internal/strategy"
)

type StrategyHandler struct {
	selector  *strategy.Selector
	publisher events.Publisher
}

func NewStrategyHandler(selector *strategy.Selector, publisher events.Publisher) *StrategyHandler {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &StrategyHandler{
		selector:  selector,
		publisher: publisher,
	}
}

func (h *StrategyHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"strategies": strategy.Catalog(),
		"selected":   h.selector.Current().ID,
	})
}

func (h *StrategyHandler) Select(c *fiber.Ctx) error {
	var req struct {
		ID string `json:"id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.selector.Select(strategy.ID(req.ID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown retrieval strategy",
			"id":    req.ID,
		})
	}

	current := h.selector.Current()
	h.publisher.Publish(events.Event{Type: events.TypeStrategy, Payload: current})

	return c.JSON(current)
}
