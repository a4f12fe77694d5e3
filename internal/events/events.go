// Package events implements the event bus (C7): typed domain events,
// synchronous in-process subscribers invoked post-commit, and a durable
// outbox drained to a cross-process broker with retry and a dead-letter
// fallback.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the event variants carried through the bus.
type Type string

const (
	MessageSent               Type = "MessageSent"
	MessageEdited             Type = "MessageEdited"
	MessageDeleted            Type = "MessageDeleted"
	ChatCreated               Type = "ChatCreated"
	MemberAdded               Type = "MemberAdded"
	MemberRemoved             Type = "MemberRemoved"
	UserPresenceChanged       Type = "UserPresenceChanged"
	TypingStarted             Type = "TypingStarted"
	TypingStopped             Type = "TypingStopped"
	DuplicateMessageAttempted Type = "DuplicateMessageAttempted"
)

// Event is the envelope every subscriber receives. Subscribers key their
// idempotency on EventID, never on payload content.
type Event struct {
	EventID     uuid.UUID   `json:"event_id"`
	Type        Type        `json:"type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	WorkspaceID int64       `json:"workspace_id"`
	ChatID      int64       `json:"chat_id,omitempty"`
	UserID      int64       `json:"user_id,omitempty"`
	Payload     interface{} `json:"payload"`
}

func New(t Type, workspaceID int64, payload interface{}) Event {
	return Event{
		EventID:     uuid.New(),
		Type:        t,
		OccurredAt:  time.Now(),
		WorkspaceID: workspaceID,
		Payload:     payload,
	}
}

// WithChat scopes the event to a chat, used by the hub to route frames to
// that chat's subscribers only.
func (e Event) WithChat(chatID int64) Event {
	e.ChatID = chatID
	return e
}

// WithUser scopes the event to a user, used for presence and DM-style
// routing where chat membership alone is not the right filter.
func (e Event) WithUser(userID int64) Event {
	e.UserID = userID
	return e
}

// Subscriber handles one event. Must be idempotent, keyed by EventID.
type Subscriber func(e Event)
