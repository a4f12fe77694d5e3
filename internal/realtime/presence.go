package realtime

import (
	"context"
	"sync"
	"time"

	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/models"
)

// PresenceService implements C9: presence is tracked only in the cache,
// keyed per user with a sliding TTL refreshed by heartbeats; typing is
// keyed per (chat, user) with a short TTL and a debounce window.
type PresenceService struct {
	cache cache.Service
	bus   *events.Bus

	mu       sync.Mutex
	sessions map[int64]map[string]bool
	typing   map[typingKey]time.Time
}

type typingKey struct {
	chatID, userID int64
}

func NewPresenceService(cacheSvc cache.Service, bus *events.Bus) *PresenceService {
	return &PresenceService{
		cache:    cacheSvc,
		bus:      bus,
		sessions: make(map[int64]map[string]bool),
		typing:   make(map[typingKey]time.Time),
	}
}

// Heartbeat marks userID online with a refreshed TTL. The transition from
// no sessions to one session publishes UserPresenceChanged.
func (p *PresenceService) Heartbeat(ctx context.Context, userID, workspaceID int64, sessionID string) error {
	p.mu.Lock()
	sessions := p.sessions[userID]
	if sessions == nil {
		sessions = make(map[string]bool)
		p.sessions[userID] = sessions
	}
	wasOffline := len(sessions) == 0
	sessions[sessionID] = true
	p.mu.Unlock()

	entry := models.PresenceEntry{
		UserID:   userID,
		Status:   models.PresenceOnline,
		LastSeen: time.Now(),
	}
	if err := p.cache.Set(ctx, cache.PresenceKey(userID), entry, cache.TTLPresence); err != nil {
		return err
	}

	if wasOffline {
		p.bus.Publish(ctx, events.New(events.UserPresenceChanged, workspaceID, entry).WithUser(userID))
	}
	return nil
}

// Disconnect removes one session; presence flips to offline only once the
// last session for userID is gone.
func (p *PresenceService) Disconnect(ctx context.Context, userID, workspaceID int64, sessionID string) error {
	p.mu.Lock()
	sessions := p.sessions[userID]
	delete(sessions, sessionID)
	nowOffline := len(sessions) == 0
	if nowOffline {
		delete(p.sessions, userID)
	}
	p.mu.Unlock()

	if !nowOffline {
		return nil
	}

	entry := models.PresenceEntry{
		UserID:   userID,
		Status:   models.PresenceOffline,
		LastSeen: time.Now(),
	}
	if err := p.cache.Set(ctx, cache.PresenceKey(userID), entry, cache.TTLPresence); err != nil {
		return err
	}
	p.bus.Publish(ctx, events.New(events.UserPresenceChanged, workspaceID, entry).WithUser(userID))
	return nil
}

// GetPresence reads the cached entry, defaulting to offline on a miss
// (expired TTL with no explicit disconnect).
func (p *PresenceService) GetPresence(ctx context.Context, userID int64) (*models.PresenceEntry, error) {
	var entry models.PresenceEntry
	if err := p.cache.Get(ctx, cache.PresenceKey(userID), &entry); err != nil {
		if err == cache.ErrCacheMiss {
			return &models.PresenceEntry{UserID: userID, Status: models.PresenceOffline}, nil
		}
		return nil, err
	}
	return &entry, nil
}

// StartTyping sets the typing key with a 3s TTL and publishes
// TypingStarted, debounced to at most one publish per (chat, user) per 2s.
func (p *PresenceService) StartTyping(ctx context.Context, chatID, userID, workspaceID int64) error {
	now := time.Now()
	key := typingKey{chatID: chatID, userID: userID}

	p.mu.Lock()
	lastPublished, debounced := p.typing[key]
	shouldPublish := !debounced || now.Sub(lastPublished) >= cache.TTLTypingDebounce
	if shouldPublish {
		p.typing[key] = now
	}
	p.mu.Unlock()

	entry := models.TypingEntry{ChatID: chatID, UserID: userID, ExpiresAt: now.Add(cache.TTLTyping)}
	if err := p.cache.Set(ctx, cache.TypingKey(chatID, userID), entry, cache.TTLTyping); err != nil {
		return err
	}

	if shouldPublish {
		p.bus.Publish(ctx, events.New(events.TypingStarted, workspaceID, entry).WithChat(chatID).WithUser(userID))
	}
	return nil
}

// StopTyping clears the typing key and publishes TypingStopped
// immediately, used for an explicit stop rather than natural expiry.
func (p *PresenceService) StopTyping(ctx context.Context, chatID, userID, workspaceID int64) error {
	p.mu.Lock()
	delete(p.typing, typingKey{chatID: chatID, userID: userID})
	p.mu.Unlock()

	if err := p.cache.Delete(ctx, cache.TypingKey(chatID, userID)); err != nil {
		return err
	}
	p.bus.Publish(ctx, events.New(events.TypingStopped, workspaceID, models.TypingEntry{ChatID: chatID, UserID: userID}).WithChat(chatID).WithUser(userID))
	return nil
}

// SweepExpiredTyping drops locally-tracked typing entries whose 3s window
// has lapsed and publishes TypingStopped for each, since a TTL expiry in
// the cache is silent and the bus needs an explicit event. Intended to run
// periodically from the presence-sweep worker pool.
func (p *PresenceService) SweepExpiredTyping(ctx context.Context, workspaceOf func(userID int64) int64) {
	now := time.Now()

	p.mu.Lock()
	var expired []typingKey
	for k, startedAt := range p.typing {
		if now.Sub(startedAt) >= cache.TTLTyping {
			expired = append(expired, k)
			delete(p.typing, k)
		}
	}
	p.mu.Unlock()

	for _, k := range expired {
		_ = p.cache.Delete(ctx, cache.TypingKey(k.chatID, k.userID))
		p.bus.Publish(ctx, events.New(events.TypingStopped, workspaceOf(k.userID), models.TypingEntry{ChatID: k.chatID, UserID: k.userID}).WithChat(k.chatID).WithUser(k.userID))
	}
}
