package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"teamchat-core/server/internal/errors"
)

// OutboxEntry is a durable, at-least-once record of an event awaiting
// cross-process publish. Written in the same transaction as the domain
// mutation that produced it.
type OutboxEntry struct {
	ID             int64
	Topic          string
	Key            string
	Payload        json.RawMessage
	CreatedAt      time.Time
	PublishedAt    *time.Time
	Attempts       int
	DeadLetteredAt *time.Time
}

// WriteOutboxEntry inserts an outbox row within tx, so it commits or
// rolls back atomically with the mutation that produced the event.
func WriteOutboxEntry(ctx context.Context, tx *sql.Tx, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_outbox (topic, key, payload, created_at)
		VALUES ($1, $2, $3, NOW())`, topic, key, data)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

// FetchUnpublished returns up to limit outbox rows ready for drain, oldest
// first.
func (db *DB) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, key, payload, created_at, published_at, attempts
		FROM event_outbox WHERE published_at IS NULL AND dead_lettered_at IS NULL
		ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var publishedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.Topic, &e.Key, &e.Payload, &e.CreatedAt, &publishedAt, &e.Attempts); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
		e.PublishedAt = NullTimeToTime(publishedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOutboxDeadLettered stops an entry from being fetched again after it
// has exhausted its publish retries.
func (db *DB) MarkOutboxDeadLettered(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE event_outbox SET dead_lettered_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) MarkOutboxPublished(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE event_outbox SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) IncrementOutboxAttempts(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE event_outbox SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}
