package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(rl *RateLimiter) *fiber.App {
	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(100, 100)
	app := newTestApp(rl)

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRateLimiterRejectsOverGlobalLimit(t *testing.T) {
	rl := NewRateLimiter(1, 100)
	app := newTestApp(rl)

	// Burst allowance is 2x the rate (2 requests); the third should be
	// rejected within the same instant.
	var lastStatus int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		lastStatus = resp.StatusCode
	}
	if lastStatus != fiber.StatusTooManyRequests {
		t.Errorf("expected 429 after exhausting global burst, got %d", lastStatus)
	}
}

func TestRateLimiterPerClientIsolated(t *testing.T) {
	rl := NewRateLimiter(1000, 1)
	limiterA := rl.clientLimiter("1.1.1.1")
	limiterB := rl.clientLimiter("2.2.2.2")

	if limiterA == limiterB {
		t.Error("expected distinct limiters per client IP")
	}
	if rl.clientLimiter("1.1.1.1") != limiterA {
		t.Error("expected the same limiter instance to be reused for a repeat IP")
	}
}

func TestSetGlobalRateUpdatesLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	rl.SetGlobalRate(5)
	if rl.global.Limit() != 5 {
		t.Errorf("expected global limit 5, got %v", rl.global.Limit())
	}
}
