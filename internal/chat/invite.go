package chat

import (
	"context"
	"crypto/rand"
	"encoding/base64"

	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// CreateInvite mints a workspace invite token, gated to workspace admins.
func (s *Service) CreateInvite(ctx context.Context, caller *models.User, workspaceID int64, email string) (*models.WorkspaceInvite, error) {
	if err := s.checker.RequireWorkspaceAdmin(ctx, workspaceID, caller.ID); err != nil {
		return nil, err
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, err
	}

	return s.db.CreateInvite(ctx, token, workspaceID, caller.ID, email)
}

func generateInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.ErrInternal)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
