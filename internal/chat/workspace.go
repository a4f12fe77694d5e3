// Package chat implements the workspace/chat service (C5) and message
// service (C6): the domain operations sitting between the HTTP edge and
// the storage/cache/event gateways.
package chat

import (
	"context"
	"database/sql"
	"strconv"

	"teamchat-core/server/internal/authz"
	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/errors"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/search"
)

type Service struct {
	db           *database.DB
	checker      *authz.Checker
	gw           *cache.Gateway
	bus          *events.Bus
	searchCfg    config.SearchConfig
	searchClient *search.Client
}

func NewService(db *database.DB, checker *authz.Checker, gw *cache.Gateway, bus *events.Bus, searchCfg config.SearchConfig, searchClient *search.Client) *Service {
	return &Service{db: db, checker: checker, gw: gw, bus: bus, searchCfg: searchCfg, searchClient: searchClient}
}

func (s *Service) CreateWorkspace(ctx context.Context, name string, ownerID int64) (*models.Workspace, error) {
	return s.db.CreateWorkspace(ctx, name, ownerID)
}

func (s *Service) GetWorkspace(ctx context.Context, workspaceID int64) (*models.Workspace, error) {
	return s.db.GetWorkspace(ctx, workspaceID)
}

// CreateChat validates membership and name uniqueness, resolves an
// existing direct chat when kind is single and one already exists between
// the two parties (idempotent), and publishes ChatCreated on success.
func (s *Service) CreateChat(ctx context.Context, caller *models.User, req *models.CreateChatRequest) (*models.Chat, error) {
	if req.Type == models.ChatTypeSingle {
		distinct := distinctMembers(req.Members, caller.ID)
		if len(distinct) != 2 {
			return nil, errors.New(errors.ErrInvalidInput, "a single chat requires exactly two distinct members including the caller")
		}
		other := otherMember(distinct, caller.ID)
		if existing, err := s.db.GetDirectChat(ctx, caller.WorkspaceID, caller.ID, other); err == nil {
			return existing, nil
		} else if appErr, ok := errors.IsAppError(err); !ok || appErr.Code != errors.ErrNotFound {
			return nil, err
		}
	}

	for _, uid := range req.Members {
		user, err := s.db.GetUserByID(ctx, uid)
		if err != nil {
			return nil, errors.New(errors.ErrInvalidInput, "one or more members are not valid users")
		}
		if user.WorkspaceID != caller.WorkspaceID {
			return nil, errors.New(errors.ErrInvalidInput, "all members must belong to the caller's workspace")
		}
	}

	var chat *models.Chat
	var evt events.Event
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		created, err := s.db.InsertChat(ctx, tx, caller.WorkspaceID, req.Type, req.Name, req.Description, caller.ID, req.Members)
		if err != nil {
			return err
		}
		chat = created
		evt = events.New(events.ChatCreated, caller.WorkspaceID, chat).WithChat(chat.ID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}

	s.gw.Invalidate(ctx, cache.WorkspaceChatsKey(caller.WorkspaceID, caller.ID))
	s.bus.Publish(ctx, evt)

	return chat, nil
}

// CreateDirectChat is the single-kind convenience path used by the
// POST /chats/direct endpoint.
func (s *Service) CreateDirectChat(ctx context.Context, caller *models.User, otherUserID int64) (*models.Chat, error) {
	return s.CreateChat(ctx, caller, &models.CreateChatRequest{
		Type:    models.ChatTypeSingle,
		Name:    directChatName(caller.ID, otherUserID),
		Members: []int64{caller.ID, otherUserID},
	})
}

func (s *Service) GetChat(ctx context.Context, caller *models.User, chatID int64) (*models.Chat, error) {
	if err := s.checker.RequireMember(ctx, chatID, caller.ID); err != nil {
		return nil, err
	}
	return s.db.GetChat(ctx, chatID)
}

func (s *Service) ListChats(ctx context.Context, caller *models.User, limit, offset int) ([]models.Chat, int, error) {
	chats, total, err := s.db.ListUserChats(ctx, caller.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	for i := range chats {
		count, err := s.db.UnreadCount(ctx, chats[i].ID, caller.ID)
		if err != nil {
			return nil, 0, err
		}
		chats[i].UnreadCount = count
	}

	return chats, total, nil
}

func (s *Service) AddMember(ctx context.Context, caller *models.User, chatID, userID int64) error {
	chatRow, err := s.db.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chatRow.CreatedBy != caller.ID {
		if err := s.checker.RequireWorkspaceAdmin(ctx, chatRow.WorkspaceID, caller.ID); err != nil {
			return err
		}
	}

	var evt events.Event
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := s.db.InsertChatMember(ctx, tx, chatID, userID); err != nil {
			return err
		}
		evt = events.New(events.MemberAdded, chatRow.WorkspaceID, map[string]int64{"chat_id": chatID, "user_id": userID}).WithChat(chatID).WithUser(userID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if err != nil {
		return err
	}

	s.gw.Invalidate(ctx, cache.ChatKey(chatID), cache.ChatMembersKey(chatID))
	s.bus.Publish(ctx, evt)

	return nil
}

func (s *Service) RemoveMember(ctx context.Context, caller *models.User, chatID, userID int64) error {
	chatRow, err := s.db.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chatRow.CreatedBy != caller.ID && caller.ID != userID {
		if err := s.checker.RequireWorkspaceAdmin(ctx, chatRow.WorkspaceID, caller.ID); err != nil {
			return err
		}
	}

	var evt events.Event
	err = s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if err := s.db.DeleteChatMember(ctx, tx, chatID, userID); err != nil {
			return err
		}
		evt = events.New(events.MemberRemoved, chatRow.WorkspaceID, map[string]int64{"chat_id": chatID, "user_id": userID}).WithChat(chatID).WithUser(userID)
		return s.bus.PublishInTx(ctx, tx, evt)
	})
	if err != nil {
		return err
	}

	s.gw.Invalidate(ctx, cache.ChatKey(chatID), cache.ChatMembersKey(chatID))
	s.bus.Publish(ctx, evt)

	return nil
}

func distinctMembers(members []int64, callerID int64) []int64 {
	seen := map[int64]bool{callerID: true}
	result := []int64{callerID}
	for _, m := range members {
		if !seen[m] {
			seen[m] = true
			result = append(result, m)
		}
	}
	return result
}

func otherMember(distinct []int64, callerID int64) int64 {
	for _, m := range distinct {
		if m != callerID {
			return m
		}
	}
	return callerID
}

func directChatName(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return "dm-" + strconv.FormatInt(a, 10) + "-" + strconv.FormatInt(b, 10)
}
