package database

import (
	"context"

	"teamchat-core/server/internal/errors"
)

// WriteSearchDeadLetter records a search index operation that exhausted
// its retries, so the gap is queryable instead of only living in a log
// line.
func (db *DB) WriteSearchDeadLetter(ctx context.Context, operation string, chatID, messageID int64, cause string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO search_index_dead_letters (operation, chat_id, message_id, error, created_at)
		VALUES ($1, $2, $3, $4, NOW())`, operation, chatID, messageID, cause)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}
