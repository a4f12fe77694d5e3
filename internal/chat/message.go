package chat

import (
	"context"
	"database/sql"
	"unicode/utf8"

	"github.com/google/uuid"

	"teamchat-core/server/internal/authz"
	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/models"
)

const (
	minContentLen = 1
	maxContentLen = 4096
	maxPageLimit  = 100

	// searchRetryAfterSeconds is surfaced to callers when the external
	// search provider is unavailable, so clients know when to retry
	// rather than falling back to Postgres mid-request.
	searchRetryAfterSeconds = 30
)

// Send validates membership and content, then persists the message inside
// a transaction keyed on idempotency_key so a retried request returns the
// original row instead of creating a duplicate.
func (s *Service) Send(ctx context.Context, caller *models.User, req *models.SendMessageRequest) (*models.Message, error) {
	if err := s.checker.RequireMember(ctx, req.ChatID, caller.ID); err != nil {
		return nil, err
	}

	n := utf8.RuneCountInString(req.Content)
	if n < minContentLen || n > maxContentLen {
		return nil, errors.New(errors.ErrInvalidInput, "content must be between 1 and 4096 codepoints")
	}

	if req.ReplyTo != nil {
		parent, err := s.db.GetMessage(ctx, req.ChatID, *req.ReplyTo)
		if err != nil {
			return nil, errors.New(errors.ErrInvalidInput, "reply_to does not belong to this chat")
		}
		if parent.DeletedAt != nil {
			return nil, errors.New(errors.ErrInvalidInput, "cannot reply to a deleted message")
		}
	}

	key := req.IdempotencyKey
	if key == uuid.Nil {
		return nil, errors.New(errors.ErrInvalidInput, "idempotency_key is required")
	}

	if existing, err := s.db.GetMessageByIdempotencyKey(ctx, key); err == nil {
		return existing, nil
	} else if appErr, ok := errors.IsAppError(err); !ok || appErr.Code != errors.ErrNotFound {
		return nil, err
	}

	var msg *models.Message
	var evt events.Event
	txErr := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		inserted, err := s.db.InsertMessage(ctx, tx, req.ChatID, caller.ID, req.Content, req.Files, key, req.ReplyTo)
		if err != nil {
			return err
		}
		msg = inserted
		evt = events.New(events.MessageSent, caller.WorkspaceID, msg).WithChat(req.ChatID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if txErr != nil {
		if appErr, ok := errors.IsAppError(txErr); ok && appErr.Code == errors.ErrConflict {
			// The insert raced with another request using the same key. The
			// unique constraint is authoritative; refetch and, if the
			// winning row belongs to a different chat or sender than this
			// request attempted, surface it as a duplicate-use attempt
			// rather than silently handing back someone else's message.
			existing, getErr := s.db.GetMessageByIdempotencyKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			if existing.ChatID != req.ChatID || existing.SenderID != caller.ID {
				s.bus.Publish(ctx, events.New(events.DuplicateMessageAttempted, caller.WorkspaceID, map[string]interface{}{
					"idempotency_key":     key,
					"attempted_chat_id":   req.ChatID,
					"attempted_sender_id": caller.ID,
					"original_chat_id":    existing.ChatID,
					"original_sender_id":  existing.SenderID,
				}).WithChat(req.ChatID).WithUser(caller.ID))
			}
			return existing, nil
		}
		return nil, txErr
	}

	s.gw.InvalidatePattern(ctx, cache.MessagesPagePattern(req.ChatID))
	s.gw.Invalidate(ctx, cache.ChatKey(req.ChatID))
	s.bus.Publish(ctx, evt)

	return msg, nil
}

func (s *Service) List(ctx context.Context, caller *models.User, chatID int64, cursor string, limit int) (*models.MessagePage, error) {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	var page models.MessagePage
	err := s.gw.GetOrCompute(ctx, cache.MessagesPageKey(chatID, cursor), cache.TTLMessages, &page,
		func(ctx context.Context) (interface{}, error) {
			return s.db.ListMessages(ctx, chatID, limit, cursor)
		})
	if err != nil {
		return nil, err
	}

	return &page, nil
}

func (s *Service) Edit(ctx context.Context, caller *models.User, chatID, messageID int64, content string) (*models.Message, error) {
	msg, err := s.db.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyMessage(caller.ID, msg) {
		return nil, errors.New(errors.ErrForbidden, "message is not editable by this caller")
	}

	n := utf8.RuneCountInString(content)
	if n < minContentLen || n > maxContentLen {
		return nil, errors.New(errors.ErrInvalidInput, "content must be between 1 and 4096 codepoints")
	}

	var updated *models.Message
	var evt events.Event
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		u, err := s.db.UpdateMessageContent(ctx, tx, chatID, messageID, caller.ID, content)
		if err != nil {
			return err
		}
		updated = u
		evt = events.New(events.MessageEdited, caller.WorkspaceID, updated).WithChat(chatID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.gw.InvalidatePattern(ctx, cache.MessagesPagePattern(chatID))
	s.bus.Publish(ctx, evt)

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, caller *models.User, chatID, messageID int64) error {
	msg, err := s.db.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return err
	}

	isAdmin := false
	if !authz.CanModifyMessage(caller.ID, msg) {
		chatRow, err := s.db.GetChat(ctx, chatID)
		if err != nil {
			return err
		}
		isAdmin, err = s.db.CheckWorkspaceOwnership(ctx, chatRow.WorkspaceID, caller.ID)
		if err != nil {
			return err
		}
	}
	if !authz.CanDeleteMessage(caller.ID, msg, isAdmin) {
		return errors.New(errors.ErrForbidden, "message is not deletable by this caller")
	}

	var evt events.Event
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := s.db.RedactMessage(ctx, tx, chatID, messageID, msg.SenderID); err != nil {
			return err
		}
		evt = events.New(events.MessageDeleted, caller.WorkspaceID, map[string]int64{"chat_id": chatID, "message_id": messageID}).WithChat(chatID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if err != nil {
		return err
	}

	s.gw.InvalidatePattern(ctx, cache.MessagesPagePattern(chatID))
	s.bus.Publish(ctx, evt)

	return nil
}

func (s *Service) MarkRead(ctx context.Context, caller *models.User, chatID, upToMessageID int64) (int, error) {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return 0, err
	}

	if err := s.db.MarkRead(ctx, chatID, caller.ID, upToMessageID); err != nil {
		return 0, err
	}

	s.gw.Invalidate(ctx, cache.UnreadKey(caller.ID, chatID))

	return s.db.UnreadCount(ctx, chatID, caller.ID)
}

func (s *Service) AddReaction(ctx context.Context, caller *models.User, chatID, messageID int64, emoji string) error {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return err
	}
	return s.db.AddReaction(ctx, chatID, messageID, caller.ID, emoji)
}

func (s *Service) RemoveReaction(ctx context.Context, caller *models.User, chatID, messageID int64, emoji string) error {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return err
	}
	return s.db.RemoveReaction(ctx, chatID, messageID, caller.ID, emoji)
}

func (s *Service) ListReactions(ctx context.Context, caller *models.User, chatID, messageID int64) ([]models.Reaction, error) {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return nil, err
	}
	return s.db.ListReactions(ctx, chatID, messageID)
}

func (s *Service) Search(ctx context.Context, caller *models.User, req *models.SearchMessagesRequest) ([]models.SearchHit, error) {
	chatIDs := req.ChatIDs
	if len(chatIDs) == 0 {
		chats, _, err := s.db.ListUserChats(ctx, caller.ID, 500, 0)
		if err != nil {
			return nil, err
		}
		for _, c := range chats {
			chatIDs = append(chatIDs, c.ID)
		}
	} else {
		for _, id := range chatIDs {
			if err := s.checker.RequireMember(ctx, id, caller.ID); err != nil {
				return nil, err
			}
		}
	}

	limit := req.Limit
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	if s.searchCfg.Provider == "external" && s.searchClient != nil {
		hits, err := s.searchClient.Query(ctx, chatIDs, req.Query, limit)
		if err != nil {
			return nil, errors.NewWithDetails(errors.ErrDependency, "search service unavailable",
				map[string]interface{}{"retry_after_seconds": searchRetryAfterSeconds})
		}
		return hits, nil
	}

	return s.db.SearchMessages(ctx, chatIDs, req.Query, limit)
}
