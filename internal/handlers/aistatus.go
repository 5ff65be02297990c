package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"argus/internal/tier"
)

// AIStatusHandler serves GET /api/ai-status: tier, cooldown remaining, cache
// stats (spec §6).
type AIStatusHandler struct {
	tier *tier.Service
}

// NewAIStatusHandler creates a new ai-status handler.
func NewAIStatusHandler(t *tier.Service) *AIStatusHandler {
	return &AIStatusHandler{tier: t}
}

// Handle reports the current tier snapshot.
func (h *AIStatusHandler) Handle(c *fiber.Ctx) error {
	snapshot := h.tier.Status()

	cooldownRemaining := 0.0
	if remaining := time.Until(snapshot.CooldownUntil); remaining > 0 {
		cooldownRemaining = remaining.Seconds()
	}

	return c.JSON(fiber.Map{
		"mode":                       snapshot.Mode,
		"tier":                       snapshot.Tier,
		"consecutive_failures":       snapshot.ConsecutiveFailures,
		"cooldown_remaining_seconds": cooldownRemaining,
		"cache_size":                 h.tier.CacheLen(),
	})
}
