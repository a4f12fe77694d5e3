package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/metrics"
)

func TestMetrics_RecordsRequestCountAndStatus(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/widgets/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	before := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/widgets/:id", http.MethodGet, "200"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/widgets/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	after := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("/widgets/:id", http.MethodGet, "200"))
	assert.Equal(t, before+1, after)
}
