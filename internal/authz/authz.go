// Package authz holds the authorization predicates every handler checks
// before dispatching to a service method. Predicates are plain functions
// over loaded rows, not a policy engine: the checks in this domain are
// simple membership/ownership booleans, not rule graphs.
package authz

import (
	"context"
	"time"

	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/models"
)

// EditWindow bounds how long after creation a message can be edited or
// deleted by its own sender.
const EditWindow = 15 * time.Minute

// Checker evaluates predicates against the store; callers typically hold
// one alongside their database handle.
type Checker struct {
	db *database.DB
}

func NewChecker(db *database.DB) *Checker {
	return &Checker{db: db}
}

// RequireMember fails with Forbidden unless user is an active member of
// chat.
func (c *Checker) RequireMember(ctx context.Context, chatID, userID int64) error {
	ok, err := c.db.IsChatMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(errors.ErrForbidden, "caller is not a member of this chat")
	}
	return nil
}

// RequireWorkspaceAdmin fails with Forbidden unless user owns workspace.
func (c *Checker) RequireWorkspaceAdmin(ctx context.Context, workspaceID, userID int64) error {
	isOwner, err := c.db.CheckWorkspaceOwnership(ctx, workspaceID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return errors.New(errors.ErrForbidden, "caller is not a workspace admin")
	}
	return nil
}

// CanModifyMessage reports whether user may edit msg: they must be the
// sender, the message must not be deleted, and it must be within the
// edit window.
func CanModifyMessage(userID int64, msg *models.Message) bool {
	return userID == msg.SenderID &&
		msg.DeletedAt == nil &&
		time.Since(msg.CreatedAt) < EditWindow
}

// CanDeleteMessage reports whether user may delete msg: either they can
// modify it, or they are a workspace admin (checked separately by the
// caller via RequireWorkspaceAdmin since that requires a store round trip).
func CanDeleteMessage(userID int64, msg *models.Message, isWorkspaceAdmin bool) bool {
	return CanModifyMessage(userID, msg) || (isWorkspaceAdmin && msg.DeletedAt == nil)
}

// IsMember is a direct boolean form of RequireMember for read paths that
// want to silently filter rather than fail.
func (c *Checker) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	return c.db.IsChatMember(ctx, chatID, userID)
}
