package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"teamchat-core/server/internal/auth"
	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/errors"
)

// RateLimit caps requests per caller per window. Keyed on the
// authenticated user when present, falling back to remote IP for
// unauthenticated routes like login and register.
func RateLimit(cfg config.RateLimitingConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.MaxRequests,
		Expiration: time.Duration(cfg.WindowSeconds) * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			if user, err := auth.GetUserFromContext(c); err == nil {
				return "user:" + user.Email
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errors.New(errors.ErrRateLimited, "too many requests, slow down")
		},
	})
}
