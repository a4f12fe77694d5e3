package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// ChatType enumerates the kinds of chat a workspace can contain.
type ChatType string

const (
	ChatTypeSingle         ChatType = "single"
	ChatTypeGroup          ChatType = "group"
	ChatTypePrivateChannel ChatType = "private_channel"
	ChatTypePublicChannel  ChatType = "public_channel"
)

// Workspace is the top-level tenancy boundary; users and chats belong to
// exactly one.
type Workspace struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User represents an authenticated member of a workspace.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	FullName     string     `json:"full_name" db:"full_name"`
	PasswordHash string     `json:"-" db:"password_hash"`
	WorkspaceID  int64      `json:"workspace_id" db:"workspace_id"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// RefreshToken is a server-side record of an issued refresh token; only the
// SHA-256 hash of the token is ever stored.
type RefreshToken struct {
	ID                int64      `json:"id" db:"id"`
	UserID            int64      `json:"user_id" db:"user_id"`
	TokenHash         string     `json:"-" db:"token_hash"`
	IssuedAt          time.Time  `json:"issued_at" db:"issued_at"`
	ExpiresAt         time.Time  `json:"expires_at" db:"expires_at"`
	AbsoluteExpiresAt time.Time  `json:"absolute_expires_at" db:"absolute_expires_at"`
	Revoked           bool       `json:"revoked" db:"revoked"`
	ReplacedBy        *string    `json:"-" db:"replaced_by"`
	UserAgent         string     `json:"user_agent,omitempty" db:"user_agent"`
	IP                string     `json:"ip,omitempty" db:"ip"`
}

// Chat is a conversation container: a DM, a group, or a channel.
type Chat struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	Type        ChatType  `json:"type" db:"type"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedBy   int64     `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// Computed, not persisted as columns on this table.
	Members     []int64 `json:"members,omitempty"`
	UnreadCount int     `json:"unread_count,omitempty"`
}

// ChatMember is the compound-key membership row; a null LeftAt means the
// membership is active.
type ChatMember struct {
	ChatID   int64      `json:"chat_id" db:"chat_id"`
	UserID   int64      `json:"user_id" db:"user_id"`
	JoinedAt time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" db:"left_at"`
}

// Message is a single, totally-ordered entry in a chat's timeline. Ordering
// is by (created_at, id); id is drawn from a per-chat monotone sequence.
type Message struct {
	ID             int64      `json:"id" db:"id"`
	ChatID         int64      `json:"chat_id" db:"chat_id"`
	SenderID       int64      `json:"sender_id" db:"sender_id"`
	Content        string     `json:"content" db:"content"`
	Files          []string   `json:"files,omitempty" db:"files"`
	IdempotencyKey uuid.UUID  `json:"idempotency_key" db:"idempotency_key"`
	ReplyTo        *int64     `json:"reply_to,omitempty" db:"reply_to"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty" db:"edited_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// MessageStatus is a per-member read receipt.
type MessageStatus struct {
	ChatID    int64      `json:"chat_id" db:"chat_id"`
	MessageID int64      `json:"message_id" db:"message_id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at"`
}

// Reaction is a single emoji reaction by one user to one message.
type Reaction struct {
	ChatID    int64  `json:"chat_id" db:"chat_id"`
	MessageID int64  `json:"message_id" db:"message_id"`
	UserID    int64  `json:"user_id" db:"user_id"`
	Emoji     string `json:"emoji" db:"emoji"`
}

// PresenceStatus enumerates the values a PresenceEntry can hold.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// PresenceEntry is cache-only state; it is never persisted to the store.
type PresenceEntry struct {
	UserID     int64          `json:"user_id"`
	Status     PresenceStatus `json:"status"`
	LastSeen   time.Time      `json:"last_seen"`
	SessionIDs []string       `json:"session_ids"`
}

// TypingEntry is cache-only state with a short TTL.
type TypingEntry struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WorkspaceInvite is a short-lived, single-use token that lets a new user
// register directly into a workspace instead of creating their own.
type WorkspaceInvite struct {
	Token       string     `json:"token" db:"token"`
	WorkspaceID int64      `json:"workspace_id" db:"workspace_id"`
	InvitedBy   int64      `json:"invited_by" db:"invited_by"`
	Email       string     `json:"email" db:"email"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty" db:"used_at"`
}

// ErrorResponse is the JSON envelope every failed request returns.
type ErrorResponse struct {
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Code      int         `json:"code"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}
