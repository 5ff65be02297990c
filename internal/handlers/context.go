package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	contextmatcher "argus/internal/context"
)

const contextCheckDeadline = 15 * time.Second

// ContextCheckHandler serves POST /api/context-check (spec §6).
type ContextCheckHandler struct {
	matcher *contextmatcher.Matcher
}

// NewContextCheckHandler creates a new context-check handler.
func NewContextCheckHandler(matcher *contextmatcher.Matcher) *ContextCheckHandler {
	return &ContextCheckHandler{matcher: matcher}
}

type contextCheckBody struct {
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Handle runs matchContext against the request's URL/title/keywords, under
// a 15-s deadline (spec §4.1).
func (h *ContextCheckHandler) Handle(c *fiber.Ctx) error {
	var body contextCheckBody
	if err := c.BodyParser(&body); err != nil || body.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), contextCheckDeadline)
	defer cancel()

	result, err := h.matcher.Match(ctx, body.URL, body.Title, body.Keywords)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}
