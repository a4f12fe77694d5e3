package realtime

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"teamchat-core/server/internal/auth"
	"teamchat-core/server/internal/database"
	"teamchat-core/server/internal/metrics"
)

const heartbeatInterval = 15 * time.Second

// Server wires the hub and presence service into a Fiber handler for
// GET /events, using c.Context().SetBodyStreamWriter for a long-lived
// response body.
type Server struct {
	hub      *Hub
	presence *PresenceService
	db       *database.DB
}

func NewServer(hub *Hub, presence *PresenceService, db *database.DB) *Server {
	return &Server{hub: hub, presence: presence, db: db}
}

// Handle streams events for the authenticated caller until the client
// disconnects or the request context is cancelled. A heartbeat frame is
// written every 15s so disconnects are observed within one interval.
func (srv *Server) Handle(c *fiber.Ctx) error {
	user, err := auth.GetUserFromContext(c)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	chats, _, err := srv.db.ListUserChats(c.Context(), user.ID, 1000, 0)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load chat memberships")
	}
	chatIDs := make([]int64, len(chats))
	for i, ch := range chats {
		chatIDs[i] = ch.ID
	}

	sub := srv.hub.Register(user.ID, user.WorkspaceID, chatIDs)
	sessionID := fmt.Sprintf("%d-%d", user.ID, time.Now().UnixNano())

	ctx, cancel := context.WithCancel(c.Context())

	if srv.presence != nil {
		_ = srv.presence.Heartbeat(ctx, user.ID, user.WorkspaceID, sessionID)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	metrics.SSEConnections.Inc()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer srv.hub.Unregister(sub)
		defer metrics.SSEConnections.Dec()
		defer func() {
			if srv.presence != nil {
				_ = srv.presence.Disconnect(context.Background(), user.ID, user.WorkspaceID, sessionID)
			}
		}()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		presenceRefresh := time.NewTicker(30 * time.Second)
		defer presenceRefresh.Stop()

		for {
			select {
			case f := <-sub.queue:
				if err := writeFrame(w, sub.nextFrameID(), f.event, f.data); err != nil {
					return
				}

			case <-heartbeat.C:
				if err := writeFrame(w, sub.nextFrameID(), "ping", []byte(`{}`)); err != nil {
					return
				}

			case <-presenceRefresh.C:
				if srv.presence != nil {
					_ = srv.presence.Heartbeat(ctx, user.ID, user.WorkspaceID, sessionID)
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func writeFrame(w *bufio.Writer, id uint64, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", strconv.FormatUint(id, 10), event, data); err != nil {
		return err
	}
	return w.Flush()
}
