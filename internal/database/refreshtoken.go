package database

import (
	"context"
	"database/sql"
	"time"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// CreateRefreshToken persists the hash of a newly issued refresh token.
// The plaintext token never reaches this layer.
func (db *DB) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, sliding, absolute time.Duration, userAgent, ip string) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}

	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at, absolute_expires_at, revoked, user_agent, ip)
		VALUES ($1, $2, NOW(), NOW() + $3::interval, NOW() + $4::interval, FALSE, $5, $6)
		RETURNING id, user_id, token_hash, issued_at, expires_at, absolute_expires_at, revoked, replaced_by, user_agent, ip`

	var replacedBy sql.NullString
	err := db.QueryRowContext(ctx, query, userID, tokenHash, sliding.String(), absolute.String(), userAgent, ip).Scan(
		&rt.ID, &rt.UserID, &rt.TokenHash, &rt.IssuedAt, &rt.ExpiresAt, &rt.AbsoluteExpiresAt, &rt.Revoked,
		&replacedBy, &rt.UserAgent, &rt.IP,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	if replacedBy.Valid {
		rt.ReplacedBy = &replacedBy.String
	}

	return rt, nil
}

func (db *DB) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	var replacedBy sql.NullString

	query := `
		SELECT id, user_id, token_hash, issued_at, expires_at, absolute_expires_at, revoked, replaced_by, user_agent, ip
		FROM refresh_tokens WHERE token_hash = $1`

	err := db.QueryRowContext(ctx, query, tokenHash).Scan(
		&rt.ID, &rt.UserID, &rt.TokenHash, &rt.IssuedAt, &rt.ExpiresAt, &rt.AbsoluteExpiresAt, &rt.Revoked,
		&replacedBy, &rt.UserAgent, &rt.IP,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New(errors.ErrUnauthorized, "refresh token not recognized")
		}
		return nil, errors.Wrap(err, errors.ErrDependency)
	}
	if replacedBy.Valid {
		rt.ReplacedBy = &replacedBy.String
	}

	return rt, nil
}

// RotateRefreshToken atomically marks oldHash spent and issues a new token
// row chained to it via replaced_by, so a later replay of oldHash can be
// detected by finding a non-null replaced_by on an already-used row. The
// new row's expiries never pass the old row's absolute_expires_at.
func (db *DB) RotateRefreshToken(ctx context.Context, oldHash, newHash string, userID int64, sliding, absolute time.Duration, userAgent, ip string) (*models.RefreshToken, error) {
	var newToken *models.RefreshToken
	var reused bool

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var revoked bool
		var replacedBy sql.NullString
		var absoluteExpiresAt time.Time
		err := tx.QueryRowContext(ctx, `
			SELECT revoked, replaced_by, absolute_expires_at FROM refresh_tokens WHERE token_hash = $1 FOR UPDATE`, oldHash).Scan(&revoked, &replacedBy, &absoluteExpiresAt)
		if err != nil {
			if err == sql.ErrNoRows {
				return errors.New(errors.ErrUnauthorized, "refresh token not recognized")
			}
			return errors.Wrap(err, errors.ErrDependency)
		}
		if revoked || replacedBy.Valid {
			// Reuse of an already-rotated-or-revoked token: treat as a
			// compromise signal and revoke the whole chain. The revocation
			// is committed before the caller gets its Unauthorized error.
			if _, err := tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID); err != nil {
				return errors.Wrap(err, errors.ErrDependency)
			}
			reused = true
			return nil
		}

		newToken = &models.RefreshToken{}
		var newReplacedBy sql.NullString
		insertErr := tx.QueryRowContext(ctx, `
			INSERT INTO refresh_tokens (user_id, token_hash, issued_at, expires_at, absolute_expires_at, revoked, user_agent, ip)
			VALUES ($1, $2, NOW(), LEAST(NOW() + $3::interval, $7), LEAST(NOW() + $4::interval, $7), FALSE, $5, $6)
			RETURNING id, user_id, token_hash, issued_at, expires_at, absolute_expires_at, revoked, replaced_by, user_agent, ip`,
			userID, newHash, sliding.String(), absolute.String(), userAgent, ip, absoluteExpiresAt).Scan(
			&newToken.ID, &newToken.UserID, &newToken.TokenHash, &newToken.IssuedAt, &newToken.ExpiresAt,
			&newToken.AbsoluteExpiresAt, &newToken.Revoked, &newReplacedBy, &newToken.UserAgent, &newToken.IP,
		)
		if insertErr != nil {
			return errors.Wrap(insertErr, errors.ErrDependency)
		}
		if newReplacedBy.Valid {
			newToken.ReplacedBy = &newReplacedBy.String
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens SET replaced_by = $2 WHERE token_hash = $1`, oldHash, newHash); err != nil {
			return errors.Wrap(err, errors.ErrDependency)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return nil, errors.New(errors.ErrUnauthorized, "refresh token reuse detected, all sessions revoked")
	}

	return newToken, nil
}

func (db *DB) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}

func (db *DB) RevokeAllUserRefreshTokens(ctx context.Context, userID int64) error {
	_, err := db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, errors.ErrDependency)
	}
	return nil
}
