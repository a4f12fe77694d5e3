package models

import (
	"time"

	"github.com/google/uuid"
)

// RegisterRequest is the body of POST /auth/register. Exactly one of
// WorkspaceID (join), Workspace (create), or InviteToken (join by invite)
// should be set.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FullName    string `json:"fullname" validate:"required,min=2"`
	Workspace   string `json:"workspace,omitempty"`
	WorkspaceID int64  `json:"workspace_id,omitempty"`
	InviteToken string `json:"invite_token,omitempty"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body of PUT /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// AuthResponse is the response for register/login.
type AuthResponse struct {
	TokenPair
	User UserProfile `json:"user"`
}

// UserProfile is the public-facing view of a User.
type UserProfile struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullname"`
	WorkspaceID int64     `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserUpdate carries mutable profile fields.
type UserUpdate struct {
	FullName string `json:"fullname,omitempty" validate:"omitempty,min=2"`
}

// CreateWorkspaceRequest is the body of POST /workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	Type        ChatType `json:"type" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Members     []int64  `json:"members" validate:"required"`
	Description string   `json:"description,omitempty"`
}

// CreateDirectChatRequest is the body of POST /chats/direct.
type CreateDirectChatRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// CreateInviteRequest is the body of POST /workspaces/{id}/invites.
type CreateInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// InviteResponse is the response for a created invite; the raw token is
// only ever returned here, at creation time.
type InviteResponse struct {
	Token       string    `json:"token"`
	WorkspaceID int64     `json:"workspace_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ChatID         int64     `json:"chat_id" validate:"required"`
	Content        string    `json:"content" validate:"required"`
	Files          []string  `json:"files,omitempty"`
	IdempotencyKey uuid.UUID `json:"idempotency_key" validate:"required"`
	ReplyTo        *int64    `json:"reply_to,omitempty"`
}

// EditMessageRequest is the body of PUT /chats/{chatId}/messages/{id};
// there is no top-level PUT /messages/{id} route.
type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// AddReactionRequest is the body of POST
// /chats/{chatId}/messages/{id}/reactions; there is no top-level
// /messages/{id}/reactions route.
type AddReactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// MarkReadRequest is the body of the mark-read operation.
type MarkReadRequest struct {
	ChatID        int64 `json:"chat_id" validate:"required"`
	UpToMessageID int64 `json:"up_to_message_id" validate:"required"`
}

// SearchMessagesRequest is the body of POST /search/messages.
type SearchMessagesRequest struct {
	Query     string    `json:"query" validate:"required"`
	ChatIDs   []int64   `json:"chat_ids,omitempty"`
	SenderIDs []int64   `json:"sender_ids,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// SearchHit is a single scored search result.
type SearchHit struct {
	Message   Message `json:"message"`
	Score     float32 `json:"score"`
	Highlight string  `json:"highlight"`
}

// TypingRequest is the body of POST /realtime/typing/start|stop.
type TypingRequest struct {
	ChatID int64 `json:"chat_id" validate:"required"`
}

// Page is the pagination envelope for offset-paginated list endpoints
// (chat listing) where keyset pagination isn't needed.
type Page struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	TotalCount int  `json:"total_count"`
	HasMore    bool `json:"has_more"`
}

// MessagePage is the keyset pagination envelope for message listing.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
