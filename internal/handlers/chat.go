package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"argus/internal/store"
	"argus/internal/tier"
	"argus/internal/tier/heuristics"
)

const (
	chatDeadline       = 30 * time.Second
	chatCandidateLimit = 50
	chatTimeoutMessage = "I'm still thinking about that — try asking again in a moment."
)

// ChatHandler serves POST /api/chat (spec §6).
type ChatHandler struct {
	store *store.Store
	tier  *tier.Service
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(s *store.Store, t *tier.Service) *ChatHandler {
	return &ChatHandler{store: s, tier: t}
}

type chatBody struct {
	Query   string   `json:"query"`
	History []string `json:"history,omitempty"`
}

// Handle answers a free-text query about the user's tracked events. A
// request that blows through the 30-s deadline still gets a 200 with a
// graceful message rather than an error (spec §6).
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	var body chatBody
	if err := c.BodyParser(&body); err != nil || body.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), chatDeadline)
	defer cancel()

	events, err := h.store.ListActiveEvents(ctx, chatCandidateLimit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	candidates := make([]heuristics.CandidateEvent, len(events))
	eventTimes := make(map[int64]*int64, len(events))
	for i, e := range events {
		candidates[i] = heuristics.CandidateEvent{
			ID: e.ID, Title: e.Title, EventType: e.EventType, Keywords: e.Keywords,
			Location: e.Location, Description: e.Description,
		}
		eventTimes[e.ID] = e.EventTime
	}

	replyCh := make(chan string, 1)
	go func() {
		replyCh <- h.tier.Chat(ctx, body.Query, candidates, eventTimes, time.Now())
	}()

	select {
	case reply := <-replyCh:
		return c.JSON(fiber.Map{"response": reply, "events": events})
	case <-ctx.Done():
		return c.JSON(fiber.Map{"response": chatTimeoutMessage, "events": []any{}})
	}
}
