package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"teamchat-core/server/internal/metrics"
)

// Metrics records request count and latency for every route, labeled by
// status code so a dashboard can alert on 5xx rate without scraping logs.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		route := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())

		metrics.RequestsTotal.WithLabelValues(route, c.Method(), status).Inc()
		metrics.RequestDuration.WithLabelValues(route, c.Method()).Observe(time.Since(start).Seconds())

		return err
	}
}
