package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LimitsPerClient(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	do := func(client string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Client-ID", client)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusOK, do("a"))
	assert.Equal(t, fiber.StatusTooManyRequests, do("a"))
	assert.Equal(t, fiber.StatusOK, do("b"))
}

func TestAllow_Refills(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("k"))
	assert.False(t, rl.allow("k"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("k"))

	now = now.Add(time.Hour)
	rl.evictIdle(10 * time.Minute)
	assert.Empty(t, rl.buckets)
}
