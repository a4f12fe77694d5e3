package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// AuthService owns credential verification, access token issuance and
// refresh token rotation. Access tokens are stateless JWTs; refresh tokens
// are opaque random strings whose SHA-256 hash is the only thing stored.
type AuthService struct {
	db     *database.DB
	cfg    *config.SecurityConfig
	tokens *TokenIssuer
}

func NewAuthService(db *database.DB, cfg *config.SecurityConfig, tokens *TokenIssuer) *AuthService {
	return &AuthService{db: db, cfg: cfg, tokens: tokens}
}

// RegisterUser joins an existing workspace when workspaceID is non-zero,
// redeems inviteToken to join its workspace when one is given, or
// bootstraps a brand new workspace (owned by the new user) when
// workspaceName is given instead.
func (s *AuthService) RegisterUser(ctx context.Context, email, password, fullName, workspaceName string, workspaceID int64, inviteToken string) (*models.User, error) {
	hash, err := HashPassword(s.cfg, password)
	if err != nil {
		return nil, err
	}

	if inviteToken != "" {
		var user *models.User
		err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
			invite, err := s.db.ConsumeInvite(ctx, tx, inviteToken)
			if err != nil {
				return err
			}
			created, err := s.db.CreateUserTx(ctx, tx, email, fullName, hash, invite.WorkspaceID)
			if err != nil {
				return err
			}
			user = created
			return nil
		})
		if err != nil {
			return nil, err
		}
		return user, nil
	}

	if workspaceID != 0 {
		return s.db.CreateUser(ctx, email, fullName, hash, workspaceID)
	}

	if workspaceName == "" {
		return nil, errors.New(errors.ErrInvalidInput, "either workspace_id, workspace, or invite_token is required")
	}

	_, user, err := s.db.CreateWorkspaceWithOwner(ctx, workspaceName, email, fullName, hash)
	return user, err
}

// Login verifies credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ip string) (*models.User, *models.TokenPair, error) {
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, errors.New(errors.ErrUnauthorized, "invalid email or password")
	}

	if user.Status != models.UserStatusActive {
		return nil, nil, errors.New(errors.ErrForbidden, "account is suspended")
	}

	ok, err := CheckPasswordHash(password, user.PasswordHash)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, errors.New(errors.ErrUnauthorized, "invalid email or password")
	}

	pair, err := s.IssueTokenPair(ctx, user, userAgent, ip)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

// IssueTokenPair wraps a user record into an access token plus a freshly
// minted refresh token, used right after registration.
func (s *AuthService) IssueTokenPair(ctx context.Context, user *models.User, userAgent, ip string) (*models.TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.WorkspaceID)
	if err != nil {
		return nil, err
	}

	refreshPlain, refreshHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.CreateRefreshToken(ctx, user.ID, refreshHash,
		time.Duration(s.cfg.RefreshSlidingDays)*24*time.Hour,
		time.Duration(s.cfg.RefreshAbsoluteDays)*24*time.Hour,
		userAgent, ip); err != nil {
		return nil, err
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: refreshPlain}, nil
}

// RefreshAccessToken rotates the refresh token and issues a new access
// token, detecting reuse of an already-rotated or revoked token.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshPlain, userAgent, ip string) (*models.TokenPair, error) {
	oldHash := hashOpaqueToken(refreshPlain)

	existing, err := s.db.GetRefreshTokenByHash(ctx, oldHash)
	if err != nil {
		return nil, err
	}
	if time.Now().After(existing.AbsoluteExpiresAt) {
		return nil, errors.New(errors.ErrUnauthorized, "refresh token expired")
	}
	if time.Now().After(existing.ExpiresAt) {
		return nil, errors.New(errors.ErrUnauthorized, "refresh token expired")
	}

	newPlain, newHash, err := generateOpaqueToken()
	if err != nil {
		return nil, err
	}

	if _, err := s.db.RotateRefreshToken(ctx, oldHash, newHash, existing.UserID,
		time.Duration(s.cfg.RefreshSlidingDays)*24*time.Hour,
		time.Duration(s.cfg.RefreshAbsoluteDays)*24*time.Hour,
		userAgent, ip); err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(ctx, existing.UserID)
	if err != nil {
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.WorkspaceID)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{AccessToken: access, RefreshToken: newPlain}, nil
}

func (s *AuthService) Logout(ctx context.Context, refreshPlain string) error {
	return s.db.RevokeRefreshToken(ctx, hashOpaqueToken(refreshPlain))
}

func (s *AuthService) LogoutAllSessions(ctx context.Context, userID int64) error {
	return s.db.RevokeAllUserRefreshTokens(ctx, userID)
}

// ValidateAccessToken verifies a bearer access token and loads the user it
// names. The refresh token is never consulted here; that is what makes
// access tokens cheap to verify on every request.
func (s *AuthService) ValidateAccessToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.tokens.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrUnauthorized, "user no longer exists")
	}
	if user.Status != models.UserStatusActive {
		return nil, errors.New(errors.ErrForbidden, "account is suspended")
	}

	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := CheckPasswordHash(currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrUnauthorized, "current password is incorrect")
	}

	newHash, err := HashPassword(s.cfg, newPassword)
	if err != nil {
		return err
	}

	if err := s.db.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		return err
	}

	return s.db.RevokeAllUserRefreshTokens(ctx, userID)
}

// ExtractBearerToken pulls the token out of an "Authorization: Bearer ..."
// header.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New(errors.ErrUnauthorized, "missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New(errors.ErrUnauthorized, "Authorization header must be a Bearer token")
	}

	return parts[1], nil
}

func generateOpaqueToken() (plain string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Wrap(err, errors.ErrInternal)
	}
	plain = base64.RawURLEncoding.EncodeToString(buf)
	return plain, hashOpaqueToken(plain), nil
}

func hashOpaqueToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
