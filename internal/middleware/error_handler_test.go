package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

func newTestApp(handler fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Get("/", handler)
	return app
}

func doGet(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return resp
}

func TestErrorHandler_AppError(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return errors.New(errors.ErrNotFound, "chat not found")
	})

	resp := doGet(t, app)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(errors.ErrNotFound), body.Error)
	assert.Equal(t, "chat not found", body.Message)
}

func TestErrorHandler_FiberError(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTooManyRequests, "slow down")
	})

	resp := doGet(t, app)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(errors.ErrRateLimited), body.Error)
}

func TestErrorHandler_UnknownErrorBecomesInternal(t *testing.T) {
	app := newTestApp(func(c *fiber.Ctx) error {
		return assertUnexpectedError{}
	})

	resp := doGet(t, app)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(errors.ErrInternal), body.Error)
}

type assertUnexpectedError struct{}

func (assertUnexpectedError) Error() string { return "boom" }
