package handlers

import (
	"github.com/gofiber/fiber/v2"

	"teamchat-core/server/internal/auth"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/validation"
)

// AuthHandler exposes identity operations (C3): registration, login,
// refresh, logout, profile.
type AuthHandler struct {
	auth *auth.AuthService
}

func NewAuthHandler(authService *auth.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

func toProfile(u *models.User) models.UserProfile {
	return models.UserProfile{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		WorkspaceID: u.WorkspaceID,
		CreatedAt:   u.CreatedAt,
	}
}

func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return err
	}
	if len(req.Password) < 8 {
		return errors.New(errors.ErrInvalidInput, "password must be at least 8 characters")
	}

	user, err := h.auth.RegisterUser(c.Context(), req.Email, req.Password, req.FullName, req.Workspace, req.WorkspaceID, req.InviteToken)
	if err != nil {
		return err
	}

	pair, err := h.auth.IssueTokenPair(c.Context(), user, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{TokenPair: *pair, User: toProfile(user)})
}

func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}

	user, pair, err := h.auth.Login(c.Context(), req.Email, req.Password, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}

	return c.JSON(models.AuthResponse{TokenPair: *pair, User: toProfile(user)})
}

func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return errors.New(errors.ErrInvalidInput, "refresh token is required")
	}

	pair, err := h.auth.RefreshAccessToken(c.Context(), body.RefreshToken, c.Get("User-Agent"), c.IP())
	if err != nil {
		return err
	}

	return c.JSON(pair)
}

func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return errors.New(errors.ErrInvalidInput, "refresh token is required")
	}

	if err := h.auth.Logout(c.Context(), body.RefreshToken); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) HandleLogoutAll(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	if err := h.auth.LogoutAllSessions(c.Context(), user.ID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AuthHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}
	return c.JSON(toProfile(user))
}

func (h *AuthHandler) HandleChangePassword(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return err
	}

	var req models.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if len(req.NewPassword) < 8 {
		return errors.New(errors.ErrInvalidInput, "new password must be at least 8 characters")
	}

	if err := h.auth.ChangePassword(c.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}
