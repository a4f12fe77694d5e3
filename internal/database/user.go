package database

import (
	"context"
	"database/sql"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// CreateUser inserts a user already bound to a workspace.
func (db *DB) CreateUser(ctx context.Context, email, fullName, passwordHash string, workspaceID int64) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, full_name, password_hash, workspace_id, status, created_at)
		VALUES (LOWER($1), $2, $3, $4, $5, NOW())
		RETURNING id, email, full_name, password_hash, workspace_id, status, created_at`

	err := db.QueryRowContext(ctx, query, email, fullName, passwordHash, workspaceID, models.UserStatusActive).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.WorkspaceID, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, errors.New(errors.ErrConflict, "email already registered")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return user, nil
}

// CreateUserTx is CreateUser scoped to the caller's transaction, used when
// user creation must commit atomically with another write (e.g. consuming
// an invite).
func (db *DB) CreateUserTx(ctx context.Context, tx *sql.Tx, email, fullName, passwordHash string, workspaceID int64) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, full_name, password_hash, workspace_id, status, created_at)
		VALUES (LOWER($1), $2, $3, $4, $5, NOW())
		RETURNING id, email, full_name, password_hash, workspace_id, status, created_at`

	err := tx.QueryRowContext(ctx, query, email, fullName, passwordHash, workspaceID, models.UserStatusActive).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.WorkspaceID, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return nil, errors.New(errors.ErrConflict, "email already registered")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, full_name, password_hash, workspace_id, status, created_at
		FROM users WHERE email = LOWER($1)`

	err := db.QueryRowContext(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.WorkspaceID, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return user, nil
}

func (db *DB) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, email, full_name, password_hash, workspace_id, status, created_at
		FROM users WHERE id = $1`

	err := db.QueryRowContext(ctx, query, userID).Scan(
		&user.ID, &user.Email, &user.FullName, &user.PasswordHash, &user.WorkspaceID, &user.Status, &user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "user not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}

	return user, nil
}

func (db *DB) ListWorkspaceUsers(ctx context.Context, workspaceID int64, limit, offset int) ([]models.User, int, error) {
	query := `
		SELECT id, email, full_name, password_hash, workspace_id, status, created_at
		FROM users WHERE workspace_id = $1
		ORDER BY id ASC LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.WorkspaceID, &u.Status, &u.CreatedAt); err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrDependency)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE workspace_id = $1`, workspaceID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDependency)
	}

	return users, total, nil
}

func (db *DB) UpdateUser(ctx context.Context, userID int64, update *models.UserUpdate) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET full_name = $2 WHERE id = $1`, userID, update.FullName)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	if rows == 0 {
		return errors.New(errors.ErrNotFound, "user not found")
	}
	return nil
}

func (db *DB) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) SetUserStatus(ctx context.Context, userID int64, status models.UserStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET status = $2 WHERE id = $1`, userID, status)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = LOWER($1))`, email).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDependency)
	}
	return exists, nil
}

// isUniqueViolation matches lib/pq's error text for a named constraint,
// used here for the users_email_key check.
func isUniqueViolation(err error, constraint string) bool {
	return err != nil && (err.Error() == `pq: duplicate key value violates unique constraint "`+constraint+`"`)
}
