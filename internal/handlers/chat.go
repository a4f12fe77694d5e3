package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"teamchat-core/server/internal/auth"
	"teamchat-core/server/internal/chat"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/validation"
)

// ChatHandler exposes the workspace/chat/message surface (C5/C6).
type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func pathInt64(c *fiber.Ctx, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, errors.New(errors.ErrInvalidInput, name+" must be an integer")
	}
	return v, nil
}

func currentUser(c *fiber.Ctx) (*models.User, error) {
	return auth.GetUserFromContext(c)
}

// --- Workspaces ---

func (h *ChatHandler) HandleCreateWorkspace(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateWorkspaceRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}

	ws, err := h.svc.CreateWorkspace(c.Context(), req.Name, user.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ws)
}

func (h *ChatHandler) HandleGetWorkspace(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	ws, err := h.svc.GetWorkspace(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(ws)
}

func (h *ChatHandler) HandleCreateInvite(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	workspaceID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	var req models.CreateInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return err
	}

	invite, err := h.svc.CreateInvite(c.Context(), user, workspaceID, req.Email)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.InviteResponse{
		Token:       invite.Token,
		WorkspaceID: invite.WorkspaceID,
		Email:       invite.Email,
		ExpiresAt:   invite.ExpiresAt,
	})
}

// --- Chats ---

func (h *ChatHandler) HandleCreateChat(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if req.Type != models.ChatTypeSingle {
		if err := validation.ValidateChatName(req.Name); err != nil {
			return err
		}
	}

	created, err := h.svc.CreateChat(c.Context(), user, &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ChatHandler) HandleCreateDirectChat(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.CreateDirectChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}

	created, err := h.svc.CreateDirectChat(c.Context(), user, req.UserID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ChatHandler) HandleGetChat(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	result, err := h.svc.GetChat(c.Context(), user, chatID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *ChatHandler) HandleListChats(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if err := validation.ValidatePagination(limit, offset); err != nil {
		return err
	}

	chats, total, err := h.svc.ListChats(c.Context(), user, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"chats": chats,
		"page": models.Page{
			Limit: limit, Offset: offset, TotalCount: total, HasMore: offset+len(chats) < total,
		},
	})
}

func (h *ChatHandler) HandleAddMember(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}

	if err := h.svc.AddMember(c.Context(), user, chatID, body.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) HandleRemoveMember(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	memberID, err := pathInt64(c, "userId")
	if err != nil {
		return err
	}

	if err := h.svc.RemoveMember(c.Context(), user, chatID, memberID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Messages ---

func (h *ChatHandler) HandleSendMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if err := validation.ValidateMessageContent(req.Content); err != nil {
		return err
	}
	if req.IdempotencyKey == uuid.Nil {
		return errors.New(errors.ErrInvalidInput, "idempotency_key is required")
	}

	msg, err := h.svc.Send(c.Context(), user, &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(msg)
}

func (h *ChatHandler) HandleListMessages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	limit := c.QueryInt("limit", 50)
	cursor := c.Query("cursor")

	page, err := h.svc.List(c.Context(), user, chatID, cursor, limit)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *ChatHandler) HandleEditMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "chatId")
	if err != nil {
		return err
	}
	messageID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	var req models.EditMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if err := validation.ValidateMessageContent(req.Content); err != nil {
		return err
	}

	msg, err := h.svc.Edit(c.Context(), user, chatID, messageID, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(msg)
}

func (h *ChatHandler) HandleDeleteMessage(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "chatId")
	if err != nil {
		return err
	}
	messageID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	if err := h.svc.Delete(c.Context(), user, chatID, messageID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) HandleMarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}

	count, err := h.svc.MarkRead(c.Context(), user, req.ChatID, req.UpToMessageID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func (h *ChatHandler) HandleAddReaction(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "chatId")
	if err != nil {
		return err
	}
	messageID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	var req models.AddReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if err := validation.ValidateEmoji(req.Emoji); err != nil {
		return err
	}

	if err := h.svc.AddReaction(c.Context(), user, chatID, messageID, req.Emoji); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) HandleRemoveReaction(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "chatId")
	if err != nil {
		return err
	}
	messageID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	emoji := c.Params("emoji")

	if err := h.svc.RemoveReaction(c.Context(), user, chatID, messageID, emoji); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) HandleListReactions(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	chatID, err := pathInt64(c, "chatId")
	if err != nil {
		return err
	}
	messageID, err := pathInt64(c, "id")
	if err != nil {
		return err
	}

	reactions, err := h.svc.ListReactions(c.Context(), user, chatID, messageID)
	if err != nil {
		return err
	}
	return c.JSON(reactions)
}

func (h *ChatHandler) HandleSearchMessages(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req models.SearchMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return errors.New(errors.ErrInvalidInput, "invalid request body")
	}
	if req.Query == "" {
		return errors.New(errors.ErrInvalidInput, "query is required")
	}

	hits, err := h.svc.Search(c.Context(), user, &req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"hits": hits})
}
