package auth

import (
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UserContextKey is the key used to store the authenticated user in the
// fiber context.
const UserContextKey = "user"

// RequireAuth verifies the bearer access token on every request. It never
// touches the database beyond loading the named user, so it stays cheap
// under load; session revocation is enforced at refresh time instead.
func RequireAuth(authService *AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := ExtractBearerToken(c.Get("Authorization"))
		if err != nil {
			return handleAuthError(c, err)
		}

		user, err := authService.ValidateAccessToken(c.Context(), token)
		if err != nil {
			return handleAuthError(c, err)
		}

		c.Locals(UserContextKey, user)

		return c.Next()
	}
}

// GetUserFromContext retrieves the authenticated user set by RequireAuth.
func GetUserFromContext(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(UserContextKey).(*models.User)
	if !ok || user == nil {
		return nil, errors.New(errors.ErrUnauthorized, "user not authenticated")
	}
	return user, nil
}

func handleAuthError(c *fiber.Ctx, err error) error {
	if appErr, ok := errors.IsAppError(err); ok {
		return c.Status(appErr.StatusCode()).JSON(fiber.Map{
			"error":   appErr.Code,
			"message": appErr.Message,
		})
	}

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   errors.ErrUnauthorized,
		"message": "authentication required",
	})
}
