package database

import (
	"context"
	"database/sql"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

func (db *DB) CreateWorkspace(ctx context.Context, name string, ownerID int64) (*models.Workspace, error) {
	ws := &models.Workspace{}

	query := `
		INSERT INTO workspaces (name, owner_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, owner_id, created_at`

	err := db.QueryRowContext(ctx, query, name, ownerID).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return ws, nil
}

// CreateWorkspaceWithOwner bootstraps a brand new workspace together with
// its first user in one transaction: the workspace's owner_id FK is
// DEFERRABLE INITIALLY DEFERRED so it only has to resolve by commit time,
// which lets the workspace row exist (owner_id 0) before its owner does.
func (db *DB) CreateWorkspaceWithOwner(ctx context.Context, workspaceName, email, fullName, passwordHash string) (*models.Workspace, *models.User, error) {
	ws := &models.Workspace{}
	user := &models.User{}

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO workspaces (name, owner_id, created_at)
			VALUES ($1, 0, NOW())
			RETURNING id, name, owner_id, created_at`, workspaceName,
		).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return errors.Wrap(err, errors.ErrDependency)
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO users (email, full_name, password_hash, workspace_id, status, created_at)
			VALUES (LOWER($1), $2, $3, $4, $5, NOW())
			RETURNING id, email, full_name, password_hash, workspace_id, status, created_at`,
			email, fullName, passwordHash, ws.ID, models.UserStatusActive,
		).Scan(&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.WorkspaceID, &user.Status, &user.CreatedAt); err != nil {
			if isUniqueViolation(err, "users_email_key") {
				return errors.New(errors.ErrConflict, "email already registered")
			}
			return errors.Wrap(err, errors.ErrDependency)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE workspaces SET owner_id = $2 WHERE id = $1`, ws.ID, user.ID); err != nil {
			return errors.Wrap(err, errors.ErrDependency)
		}
		ws.OwnerID = user.ID

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return ws, user, nil
}

func (db *DB) GetWorkspace(ctx context.Context, workspaceID int64) (*models.Workspace, error) {
	ws := &models.Workspace{}

	query := `SELECT id, name, owner_id, created_at FROM workspaces WHERE id = $1`

	err := db.QueryRowContext(ctx, query, workspaceID).Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "workspace not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return ws, nil
}

func (db *DB) ListWorkspaces(ctx context.Context, limit, offset int) ([]models.Workspace, int, error) {
	query := `SELECT id, name, owner_id, created_at FROM workspaces ORDER BY id ASC LIMIT $1 OFFSET $2`

	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var workspaces []models.Workspace
	for rows.Next() {
		var ws models.Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.OwnerID, &ws.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrDependency)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspaces`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	return workspaces, total, nil
}

func (db *DB) CheckWorkspaceOwnership(ctx context.Context, workspaceID, userID int64) (bool, error) {
	var ownerID int64
	err := db.QueryRowContext(ctx, `SELECT owner_id FROM workspaces WHERE id = $1`, workspaceID).Scan(&ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, errors.New(errors.ErrNotFound, "workspace not found")
		}
		return false, errors.Wrap(err, errors.ErrDependency)
	}
	return ownerID == userID, nil
}
