package events

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"sync"

	"teamchat-core/server/internal/database"
)

// Bus fans out events to in-process subscribers synchronously on the
// publishing goroutine: a post-commit fire-and-forget idiom generalized
// from a single cache-populate callback into a registrable subscriber
// list.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	db          *database.DB
}

func NewBus(db *database.DB) *Bus {
	return &Bus{db: db}
}

func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// PublishInTx writes the durable outbox row inside tx. Call this from
// inside the transaction that produces the event; call Publish after the
// transaction commits to fan out to in-process subscribers.
func (b *Bus) PublishInTx(ctx context.Context, tx *sql.Tx, e Event) error {
	topic, ok := subjects[e.Type]
	if !ok {
		topic = string(e.Type)
	}
	return database.WriteOutboxEntry(ctx, tx, topic, outboxKey(e), e)
}

// subjects names the durable cross-process subject each outboxed event
// type is published under.
var subjects = map[Type]string{
	MessageSent:               "chat.message.created",
	MessageEdited:             "chat.message.updated",
	MessageDeleted:            "chat.message.deleted",
	ChatCreated:               "chat.chat.created",
	MemberAdded:               "chat.user.joined",
	MemberRemoved:             "chat.user.left",
	DuplicateMessageAttempted: "chat.message.duplicate",
}

// Publish invokes every in-process subscriber synchronously. Must only be
// called after the originating transaction has committed.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event subscriber panicked", "event_type", e.Type, "event_id", e.EventID, "error", r)
				}
			}()
			sub(e)
		}()
	}
}

func outboxKey(e Event) string {
	if e.ChatID != 0 {
		return "chat:" + strconv.FormatInt(e.ChatID, 10)
	}
	return "workspace:" + strconv.FormatInt(e.WorkspaceID, 10)
}
