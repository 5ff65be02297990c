package handlers

import (
	"github.com/gofiber/fiber/v2"

	"argus/internal/context"
	"argus/internal/scheduler"
	"argus/internal/tier"
)

// HealthHandler serves GET /api/health (spec §6): {status, aiTier,
// scheduler:{retryQueueSize, failedReminderCount}, matchCache}.
type HealthHandler struct {
	tier    *tier.Service
	retry   *scheduler.RetryQueue
	matcher *context.Matcher
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(tierSvc *tier.Service, retry *scheduler.RetryQueue, matcher *context.Matcher) *HealthHandler {
	return &HealthHandler{tier: tierSvc, retry: retry, matcher: matcher}
}

// Handle responds with server health status.
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"aiTier": h.tier.Status(),
		"scheduler": fiber.Map{
			"retryQueueSize":      h.retry.Len(),
			"failedReminderCount": h.retry.FailedCount(),
		},
		"matchCache": h.matcher.CacheStats(),
	})
}
