package database

import (
	"context"
	"database/sql"
	"time"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// InviteTTL is how long a workspace invite token remains redeemable.
const InviteTTL = 72 * time.Hour

// CreateInvite inserts a new invite row; token is the caller-generated
// opaque value, already unique by construction.
func (db *DB) CreateInvite(ctx context.Context, token string, workspaceID, invitedBy int64, email string) (*models.WorkspaceInvite, error) {
	inv := &models.WorkspaceInvite{}
	query := `
		INSERT INTO workspace_invites (token, workspace_id, invited_by, email, created_at, expires_at)
		VALUES ($1, $2, $3, LOWER($4), NOW(), NOW() + ($5 * interval '1 second'))
		RETURNING token, workspace_id, invited_by, email, created_at, expires_at, used_at`

	var usedAt sql.NullTime
	err := db.QueryRowContext(ctx, query, token, workspaceID, invitedBy, email, InviteTTL.Seconds()).Scan(
		&inv.Token, &inv.WorkspaceID, &inv.InvitedBy, &inv.Email, &inv.CreatedAt, &inv.ExpiresAt, &usedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	inv.UsedAt = NullTimeToTime(usedAt)
	return inv, nil
}

// GetInviteByToken looks up an invite without consuming it.
func (db *DB) GetInviteByToken(ctx context.Context, token string) (*models.WorkspaceInvite, error) {
	inv := &models.WorkspaceInvite{}
	query := `
		SELECT token, workspace_id, invited_by, email, created_at, expires_at, used_at
		FROM workspace_invites WHERE token = $1`

	var usedAt sql.NullTime
	err := db.QueryRowContext(ctx, query, token).Scan(
		&inv.Token, &inv.WorkspaceID, &inv.InvitedBy, &inv.Email, &inv.CreatedAt, &inv.ExpiresAt, &usedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrNotFound, "invite not found")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	inv.UsedAt = NullTimeToTime(usedAt)
	return inv, nil
}

// ConsumeInvite marks an unexpired, unused invite used within tx, failing
// with ErrConflict if it was already consumed or ErrInvalidInput if it has
// expired, so register can't redeem the same token twice.
func (db *DB) ConsumeInvite(ctx context.Context, tx *sql.Tx, token string) (*models.WorkspaceInvite, error) {
	inv := &models.WorkspaceInvite{}
	query := `
		UPDATE workspace_invites SET used_at = NOW()
		WHERE token = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING token, workspace_id, invited_by, email, created_at, expires_at, used_at`

	var usedAt sql.NullTime
	err := tx.QueryRowContext(ctx, query, token).Scan(
		&inv.Token, &inv.WorkspaceID, &inv.InvitedBy, &inv.Email, &inv.CreatedAt, &inv.ExpiresAt, &usedAt,
	)
	if err == sql.ErrNoRows {
		existing, getErr := db.GetInviteByToken(ctx, token)
		if getErr != nil {
			return nil, errors.New(errors.ErrInvalidInput, "invite token is invalid")
		}
		if existing.UsedAt != nil {
			return nil, errors.New(errors.ErrConflict, "invite token already used")
		}
		return nil, errors.New(errors.ErrInvalidInput, "invite token has expired")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	inv.UsedAt = NullTimeToTime(usedAt)
	return inv, nil
}
