package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/config"
)

func TestRateLimit_AllowsUpToMaxThenRejects(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(RateLimit(config.RateLimitingConfig{MaxRequests: 2, WindowSeconds: 60}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimit_TracksCallersIndependently(t *testing.T) {
	// app.Test serves every request from the same fixed remote address, so
	// the callers are told apart through the proxy header instead.
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(), ProxyHeader: fiber.HeaderXForwardedFor})
	app.Use(RateLimit(config.RateLimitingConfig{MaxRequests: 1, WindowSeconds: 60}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.Header.Set(fiber.HeaderXForwardedFor, "10.0.0.1")
	respA, err := app.Test(reqA)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, respA.StatusCode)

	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.Header.Set(fiber.HeaderXForwardedFor, "10.0.0.2")
	respB, err := app.Test(reqB)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, respB.StatusCode, "a different caller should have its own quota")
}
