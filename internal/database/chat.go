package database

import (
	"context"
	"database/sql"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// InsertChat inserts a chat and its initial membership rows within the
// caller's transaction, so the chat, its memberships, and its outbox entry
// commit or roll back together. creatorID is always included in members
// even if the caller omitted it.
func (db *DB) InsertChat(ctx context.Context, tx *sql.Tx, workspaceID int64, chatType models.ChatType, name, description string, creatorID int64, memberIDs []int64) (*models.Chat, error) {
	chat := &models.Chat{}

	query := `
		INSERT INTO chats (workspace_id, name, type, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, workspace_id, name, type, description, created_by, created_at, updated_at`

	if err := tx.QueryRowContext(ctx, query, workspaceID, name, chatType, description, creatorID).Scan(
		&chat.ID, &chat.WorkspaceID, &chat.Name, &chat.Type, &chat.Description,
		&chat.CreatedBy, &chat.CreatedAt, &chat.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err, "chats_workspace_id_name_key") {
			return nil, errors.New(errors.ErrConflict, "a chat with this name already exists in the workspace")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	members := memberIDs
	if !containsInt64(members, creatorID) {
		members = append(members, creatorID)
	}

	for _, uid := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_members (chat_id, user_id, joined_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (chat_id, user_id) DO NOTHING`, chat.ID, uid); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
	}

	chat.Members = members
	return chat, nil
}

func (db *DB) GetChat(ctx context.Context, chatID int64) (*models.Chat, error) {
	chat := &models.Chat{}

	query := `
		SELECT id, workspace_id, name, type, description, created_by, created_at, updated_at
		FROM chats WHERE id = $1`

	err := db.QueryRowContext(ctx, query, chatID).Scan(
		&chat.ID, &chat.WorkspaceID, &chat.Name, &chat.Type, &chat.Description,
		&chat.CreatedBy, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "chat not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	members, err := db.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Members = members

	return chat, nil
}

// GetDirectChat finds an existing single-type chat between exactly these two
// users, if one already exists, so repeated direct-chat creation is
// idempotent.
func (db *DB) GetDirectChat(ctx context.Context, workspaceID, userA, userB int64) (*models.Chat, error) {
	query := `
		SELECT c.id, c.workspace_id, c.name, c.type, c.description, c.created_by, c.created_at, c.updated_at
		FROM chats c
		WHERE c.workspace_id = $1 AND c.type = 'single'
		AND (SELECT COUNT(*) FROM chat_members m WHERE m.chat_id = c.id AND m.left_at IS NULL) = 2
		AND EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = $2 AND m.left_at IS NULL)
		AND EXISTS (SELECT 1 FROM chat_members m WHERE m.chat_id = c.id AND m.user_id = $3 AND m.left_at IS NULL)
		LIMIT 1`

	chat := &models.Chat{}
	err := db.QueryRowContext(ctx, query, workspaceID, userA, userB).Scan(
		&chat.ID, &chat.WorkspaceID, &chat.Name, &chat.Type, &chat.Description,
		&chat.CreatedBy, &chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "direct chat not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return chat, nil
}

func (db *DB) GetChatMembers(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id FROM chat_members WHERE chat_id = $1 AND left_at IS NULL ORDER BY user_id ASC`, chatID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, errors.Wrap(err, errors.ErrDependency)
		}
		members = append(members, uid)
	}
	return members, rows.Err()
}

func (db *DB) IsChatMember(ctx context.Context, chatID, userID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2 AND left_at IS NULL)`,
		chatID, userID).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDependency)
	}
	return exists, nil
}

// ListUserChats returns the chats a user currently belongs to, most
// recently updated first.
func (db *DB) ListUserChats(ctx context.Context, userID int64, limit, offset int) ([]models.Chat, int, error) {
	query := `
		SELECT c.id, c.workspace_id, c.name, c.type, c.description, c.created_by, c.created_at, c.updated_at
		FROM chats c
		JOIN chat_members m ON m.chat_id = c.id
		WHERE m.user_id = $1 AND m.left_at IS NULL
		ORDER BY c.updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Type, &c.Description, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrDependency)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	var total int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chat_members WHERE user_id = $1 AND left_at IS NULL`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	return chats, total, nil
}

// InsertChatMember adds or rejoins a member within the caller's transaction.
func (db *DB) InsertChatMember(ctx context.Context, tx *sql.Tx, chatID, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chat_members (chat_id, user_id, joined_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (chat_id, user_id) DO UPDATE SET left_at = NULL, joined_at = NOW()`, chatID, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

// DeleteChatMember removes a member and their read receipts within the
// caller's transaction.
func (db *DB) DeleteChatMember(ctx context.Context, tx *sql.Tx, chatID, userID int64) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE chat_members SET left_at = NOW() WHERE chat_id = $1 AND user_id = $2 AND left_at IS NULL`, chatID, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "membership not found")
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM message_status WHERE chat_id = $1 AND user_id = $2`, chatID, userID); err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}

	return nil
}

func (db *DB) TouchChatUpdatedAt(ctx context.Context, chatID int64) error {
	_, err := db.ExecContext(ctx, `UPDATE chats SET updated_at = NOW() WHERE id = $1`, chatID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func containsInt64(s []int64, v int64) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
