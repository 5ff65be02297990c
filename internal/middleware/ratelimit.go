// Package middleware holds Fiber middleware shared across the route groups.
package middleware

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimiter applies two tiers of token-bucket limiting to inbound API
// traffic: an overall ceiling protecting the process, and a per-client-IP
// ceiling for fair usage, mirroring the teacher's global/per-domain/per-user
// three-tier scraper limiter with the domain tier dropped (there's no
// third-party site to be polite to here, just one local client).
type RateLimiter struct {
	global         *rate.Limiter
	perClient      *sync.Map // map[string]*rate.Limiter
	perClientRate  rate.Limit
	perClientBurst int
}

// NewRateLimiter creates a limiter allowing globalRPS requests/second overall
// (burst 2x) and perClientRPS requests/second per client IP (burst 2x).
func NewRateLimiter(globalRPS, perClientRPS float64) *RateLimiter {
	return &RateLimiter{
		global:         rate.NewLimiter(rate.Limit(globalRPS), int(globalRPS*2)),
		perClient:      &sync.Map{},
		perClientRate:  rate.Limit(perClientRPS),
		perClientBurst: int(perClientRPS * 2),
	}
}

func (rl *RateLimiter) clientLimiter(ip string) *rate.Limiter {
	if existing, ok := rl.perClient.Load(ip); ok {
		return existing.(*rate.Limiter)
	}
	fresh := rate.NewLimiter(rl.perClientRate, rl.perClientBurst)
	actual, _ := rl.perClient.LoadOrStore(ip, fresh)
	return actual.(*rate.Limiter)
}

// Middleware returns a Fiber handler that rejects requests exceeding either
// tier with 429, rather than blocking — an HTTP handler has no business
// waiting out a token refill on the caller's behalf.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !rl.global.Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		if !rl.clientLimiter(c.IP()).Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded for this client"})
		}
		return c.Next()
	}
}

// SetGlobalRate updates the global rate limit at runtime.
func (rl *RateLimiter) SetGlobalRate(requestsPerSecond float64) {
	rl.global.SetLimit(rate.Limit(requestsPerSecond))
	rl.global.SetBurst(int(requestsPerSecond * 2))
}
