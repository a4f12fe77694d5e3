package database

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// InsertMessage inserts a message under the chat's per-chat id sequence
// within the caller's transaction, so the row and its outbox entry commit
// or roll back together. Returns an ErrConflict AppError when
// idempotencyKey was already used; the caller is expected to refetch via
// GetMessageByIdempotencyKey outside the failed transaction.
func (db *DB) InsertMessage(ctx context.Context, tx *sql.Tx, chatID, senderID int64, content string, files []string, idempotencyKey uuid.UUID, replyTo *int64) (*models.Message, error) {
	msg := &models.Message{}

	var nextID int64
	if err := tx.QueryRowContext(ctx, `
		UPDATE chats SET next_message_seq = next_message_seq + 1, updated_at = NOW()
		WHERE id = $1 RETURNING next_message_seq`, chatID).Scan(&nextID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "chat not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	query := `
		INSERT INTO messages (chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at`

	scanErr := tx.QueryRowContext(ctx, query, chatID, nextID, senderID, content, pq.Array(files), idempotencyKey, replyTo).Scan(
		&msg.ChatID, &msg.ID, &msg.SenderID, &msg.Content, pq.Array(&msg.Files),
		&msg.IdempotencyKey, &msg.ReplyTo, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if scanErr == sql.ErrNoRows {
		return nil, errors.New(errors.ErrConflict, "idempotency key already used")
	}
	if scanErr != nil {
		return nil, errors.Wrap(scanErr, errors.ErrDependency)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO message_status (chat_id, message_id, user_id, read_at)
		SELECT $3, $1, m.user_id, CASE WHEN m.user_id = $2 THEN NOW() ELSE NULL END
		FROM chat_members m WHERE m.chat_id = $3 AND m.left_at IS NULL
		ON CONFLICT (chat_id, message_id, user_id) DO NOTHING`, msg.ID, senderID, chatID); err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return msg, nil
}

// GetMessageByIdempotencyKey looks up a message by its idempotency key,
// used both for the pre-insert fast path and to resolve a post-conflict
// replay after InsertMessage reports ErrConflict.
func (db *DB) GetMessageByIdempotencyKey(ctx context.Context, idempotencyKey uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	query := `
		SELECT chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at
		FROM messages WHERE idempotency_key = $1`

	err := db.QueryRowContext(ctx, query, idempotencyKey).Scan(
		&msg.ChatID, &msg.ID, &msg.SenderID, &msg.Content, pq.Array(&msg.Files),
		&msg.IdempotencyKey, &msg.ReplyTo, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "message not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	return msg, nil
}

func (db *DB) GetMessage(ctx context.Context, chatID, messageID int64) (*models.Message, error) {
	msg := &models.Message{}
	query := `
		SELECT chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at
		FROM messages WHERE chat_id = $1 AND id = $2`

	err := db.QueryRowContext(ctx, query, chatID, messageID).Scan(
		&msg.ChatID, &msg.ID, &msg.SenderID, &msg.Content, pq.Array(&msg.Files),
		&msg.IdempotencyKey, &msg.ReplyTo, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "message not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	return msg, nil
}

// cursor is (created_at, id) encoded for keyset pagination, grounded on the
// pack's base64(updated_at|id) conversation cursor.
type cursor struct {
	CreatedAt time.Time
	ID        int64
}

func encodeCursor(c cursor) string {
	raw := fmt.Sprintf("%d|%d", c.CreatedAt.UnixNano(), c.ID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, errors.New(errors.ErrInvalidInput, "invalid pagination cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return cursor{}, errors.New(errors.ErrInvalidInput, "invalid pagination cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return cursor{}, errors.New(errors.ErrInvalidInput, "invalid pagination cursor")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return cursor{}, errors.New(errors.ErrInvalidInput, "invalid pagination cursor")
	}
	return cursor{CreatedAt: time.Unix(0, nanos), ID: id}, nil
}

// ListMessages returns a page of messages older than the cursor (or the
// newest page when cursorStr is empty), newest first, keyset-paginated on
// (created_at, id) rather than OFFSET/LIMIT.
func (db *DB) ListMessages(ctx context.Context, chatID int64, limit int, cursorStr string) (*models.MessagePage, error) {
	var rows *sql.Rows
	var err error

	base := `
		SELECT chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at
		FROM messages WHERE chat_id = $1`

	if cursorStr == "" {
		rows, err = db.QueryContext(ctx, base+` ORDER BY created_at DESC, id DESC LIMIT $2`, chatID, limit+1)
	} else {
		c, decErr := decodeCursor(cursorStr)
		if decErr != nil {
			return nil, decErr
		}
		rows, err = db.QueryContext(ctx, base+`
			AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC LIMIT $4`, chatID, c.CreatedAt, c.ID, limit+1)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ChatID, &m.ID, &m.SenderID, &m.Content, pq.Array(&m.Files),
			&m.IdempotencyKey, &m.ReplyTo, &m.CreatedAt, &m.EditedAt, &m.DeletedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	page := &models.MessagePage{}
	if len(messages) > limit {
		last := messages[limit-1]
		page.NextCursor = encodeCursor(cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		messages = messages[:limit]
	}
	page.Messages = messages

	return page, nil
}

// UpdateMessageContent edits a message's content within the caller's
// transaction.
func (db *DB) UpdateMessageContent(ctx context.Context, tx *sql.Tx, chatID, messageID, senderID int64, content string) (*models.Message, error) {
	msg := &models.Message{}
	query := `
		UPDATE messages SET content = $4, edited_at = NOW()
		WHERE chat_id = $1 AND id = $2 AND sender_id = $3 AND deleted_at IS NULL
		RETURNING chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at`

	err := tx.QueryRowContext(ctx, query, chatID, messageID, senderID, content).Scan(
		&msg.ChatID, &msg.ID, &msg.SenderID, &msg.Content, pq.Array(&msg.Files),
		&msg.IdempotencyKey, &msg.ReplyTo, &msg.CreatedAt, &msg.EditedAt, &msg.DeletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "message not found or not editable by this sender")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	return msg, nil
}

// RedactMessage marks a message deleted and clears its content and files
// in the same statement, within the caller's transaction, so a deleted
// message never leaves its text recoverable from a row scan.
func (db *DB) RedactMessage(ctx context.Context, tx *sql.Tx, chatID, messageID, senderID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE messages SET deleted_at = NOW(), content = '', files = '{}'
		WHERE chat_id = $1 AND id = $2 AND sender_id = $3 AND deleted_at IS NULL`, chatID, messageID, senderID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "message not found or not deletable by this sender")
	}
	return nil
}

func (db *DB) MarkRead(ctx context.Context, chatID, userID, upToMessageID int64) error {
	query := `
		INSERT INTO message_status (chat_id, message_id, user_id, read_at)
		SELECT chat_id, id, $2, NOW() FROM messages WHERE chat_id = $1 AND id <= $3
		ON CONFLICT (chat_id, message_id, user_id) DO UPDATE SET read_at = NOW()
		WHERE message_status.read_at IS NULL`

	_, err := db.ExecContext(ctx, query, chatID, userID, upToMessageID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) UnreadCount(ctx context.Context, chatID, userID int64) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages m
		WHERE m.chat_id = $1 AND m.deleted_at IS NULL
		AND NOT EXISTS (
			SELECT 1 FROM message_status s
			WHERE s.chat_id = m.chat_id AND s.message_id = m.id AND s.user_id = $2 AND s.read_at IS NOT NULL
		)`
	if err := db.QueryRowContext(ctx, query, chatID, userID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, errors.ErrDependency)
	}
	return count, nil
}

func (db *DB) AddReaction(ctx context.Context, chatID, messageID, userID int64, emoji string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO reactions (chat_id, message_id, user_id, emoji)
		SELECT chat_id, id, $2, $3 FROM messages WHERE chat_id = $1 AND id = $4 AND deleted_at IS NULL
		ON CONFLICT (chat_id, message_id, user_id, emoji) DO NOTHING`, chatID, userID, emoji, messageID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) RemoveReaction(ctx context.Context, chatID, messageID, userID int64, emoji string) error {
	result, err := db.ExecContext(ctx, `
		DELETE FROM reactions WHERE chat_id = $1 AND message_id = $2 AND user_id = $3 AND emoji = $4`,
		chatID, messageID, userID, emoji)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "reaction not found")
	}
	return nil
}

func (db *DB) ListReactions(ctx context.Context, chatID, messageID int64) ([]models.Reaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT chat_id, message_id, user_id, emoji FROM reactions WHERE chat_id = $1 AND message_id = $2`,
		chatID, messageID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var reactions []models.Reaction
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.ChatID, &r.MessageID, &r.UserID, &r.Emoji); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
		reactions = append(reactions, r)
	}
	return reactions, rows.Err()
}

// SearchMessages performs Postgres full-text search across a chat set,
// grounded on the pack's ts_rank/to_tsvector conversation search.
func (db *DB) SearchMessages(ctx context.Context, chatIDs []int64, query string, limit int) ([]models.SearchHit, error) {
	sqlQuery := `
		SELECT chat_id, id, sender_id, content, files, idempotency_key, reply_to, created_at, edited_at, deleted_at,
			ts_rank(to_tsvector('english', content), plainto_tsquery('english', $2)) AS rank,
			ts_headline('english', content, plainto_tsquery('english', $2)) AS highlight
		FROM messages
		WHERE chat_id = ANY($1) AND deleted_at IS NULL
		AND to_tsvector('english', content) @@ plainto_tsquery('english', $2)
		ORDER BY rank DESC
		LIMIT $3`

	rows, err := db.QueryContext(ctx, sqlQuery, pq.Array(chatIDs), query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.Message.ChatID, &h.Message.ID, &h.Message.SenderID, &h.Message.Content,
			pq.Array(&h.Message.Files), &h.Message.IdempotencyKey, &h.Message.ReplyTo,
			&h.Message.CreatedAt, &h.Message.EditedAt, &h.Message.DeletedAt, &h.Score, &h.Highlight); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
