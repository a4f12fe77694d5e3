package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// ErrorHandler centralizes fiber's error response so every handler can
// just return an *errors.AppError and get a consistent JSON envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID, _ := c.Locals("requestID").(string)
		if requestID == "" {
			requestID = c.Get("X-Request-ID")
		}

		slog.Error("request failed",
			"error", err,
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestID,
		)

		if appErr, ok := errors.IsAppError(err); ok {
			appErr.WithRequestID(requestID)
			return c.Status(appErr.StatusCode()).JSON(models.ErrorResponse{
				Error:     string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				Code:      appErr.StatusCode(),
				Timestamp: appErr.Timestamp,
				RequestID: requestID,
			})
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			code := errors.ErrInternal
			switch fiberErr.Code {
			case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
				code = errors.ErrInvalidInput
			case fiber.StatusUnauthorized:
				code = errors.ErrUnauthorized
			case fiber.StatusForbidden:
				code = errors.ErrForbidden
			case fiber.StatusNotFound:
				code = errors.ErrNotFound
			case fiber.StatusConflict:
				code = errors.ErrConflict
			case fiber.StatusTooManyRequests:
				code = errors.ErrRateLimited
			case fiber.StatusServiceUnavailable:
				code = errors.ErrDependency
			}

			return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
				Error:     string(code),
				Message:   fiberErr.Message,
				Code:      fiberErr.Code,
				Timestamp: time.Now(),
				RequestID: requestID,
			})
		}

		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:     string(errors.ErrInternal),
			Message:   "an unexpected error occurred",
			Code:      fiber.StatusInternalServerError,
			Timestamp: time.Now(),
			RequestID: requestID,
		})
	}
}
