package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/metrics"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/workers"
)

// Indexer subscribes to the event bus and keeps the external search index
// current. It is a no-op when features.search.provider is "postgres",
// since the default provider is served directly off the messages table.
type Indexer struct {
	client *Client
	pool   *workers.PoolManager
	cfg    config.SearchConfig
	db     *database.DB
}

func NewIndexer(client *Client, pool *workers.PoolManager, cfg config.SearchConfig, db *database.DB) *Indexer {
	return &Indexer{client: client, pool: pool, cfg: cfg, db: db}
}

// Dispatch is registered as an events.Subscriber and runs on the
// event-publishing goroutine; it returns at once unless the external
// provider is enabled, and hands the index write to the search-indexer pool.
func (ix *Indexer) Dispatch(e events.Event) {
	if !ix.cfg.Enabled || ix.cfg.Provider != "external" {
		return
	}

	switch e.Type {
	case events.MessageSent, events.MessageEdited:
		msg, ok := e.Payload.(*models.Message)
		if !ok {
			return
		}
		ix.pool.SubmitIndexTask(func() { ix.indexWithRetry(msg) })

	case events.MessageDeleted:
		ids, ok := e.Payload.(map[string]int64)
		if !ok {
			return
		}
		ix.pool.SubmitIndexTask(func() { ix.removeWithRetry(ids["chat_id"], ids["message_id"]) })
	}
}

// indexWithRetry applies a capped exponential backoff (100ms to 5s, 5
// attempts) before logging a search_index_degraded condition and giving
// up; a dropped index write never blocks message delivery.
func (ix *Indexer) indexWithRetry(msg *models.Message) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ix.client.IndexMessage(ctx, IndexRequest{
			ChatID:    msg.ChatID,
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.Unix(),
		})
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(policy, 4)); err != nil {
		slog.Warn("search_index_degraded", "chat_id", msg.ChatID, "message_id", msg.ID, "error", err)
		metrics.SearchIndexDegraded.WithLabelValues("index").Inc()
		dlCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if dlErr := ix.db.WriteSearchDeadLetter(dlCtx, "index", msg.ChatID, msg.ID, err.Error()); dlErr != nil {
			slog.Error("search_dead_letter_write_failed", "chat_id", msg.ChatID, "message_id", msg.ID, "error", dlErr)
		}
	}
}

func (ix *Indexer) removeWithRetry(chatID, messageID int64) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ix.client.RemoveMessage(ctx, chatID, messageID)
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(policy, 4)); err != nil {
		slog.Warn("search_index_degraded", "chat_id", chatID, "message_id", messageID, "error", err)
		metrics.SearchIndexDegraded.WithLabelValues("remove").Inc()
		dlCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if dlErr := ix.db.WriteSearchDeadLetter(dlCtx, "remove", chatID, messageID, err.Error()); dlErr != nil {
			slog.Error("search_dead_letter_write_failed", "chat_id", chatID, "message_id", messageID, "error", dlErr)
		}
	}
}
