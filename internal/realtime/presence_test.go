package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/cache"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/models"
)

func newTestPresence(t *testing.T) (*PresenceService, chan events.Event) {
	t.Helper()
	bus := events.NewBus(nil)
	ch := make(chan events.Event, 16)
	bus.Subscribe(func(e events.Event) { ch <- e })
	return NewPresenceService(cache.NewMemoryCache(), bus), ch
}

func TestPresenceService_HeartbeatPublishesOnlyOnFirstSession(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Heartbeat(ctx, 1, 100, "session-a"))
	e := <-evs
	assert.Equal(t, "UserPresenceChanged", string(e.Type))

	require.NoError(t, p.Heartbeat(ctx, 1, 100, "session-b"))
	select {
	case <-evs:
		t.Fatal("a second session for an already-online user should not republish presence")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresenceService_DisconnectPublishesOnlyWhenLastSessionGone(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.Heartbeat(ctx, 1, 100, "a"))
	<-evs
	require.NoError(t, p.Heartbeat(ctx, 1, 100, "b"))

	require.NoError(t, p.Disconnect(ctx, 1, 100, "a"))
	select {
	case <-evs:
		t.Fatal("disconnecting one of two sessions should not flip presence offline")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, p.Disconnect(ctx, 1, 100, "b"))
	e := <-evs
	entry := e.Payload.(models.PresenceEntry)
	assert.Equal(t, models.PresenceOffline, entry.Status)
}

func TestPresenceService_GetPresence_DefaultsToOfflineOnMiss(t *testing.T) {
	p, _ := newTestPresence(t)
	entry, err := p.GetPresence(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.PresenceOffline, entry.Status)
	assert.Equal(t, int64(42), entry.UserID)
}

func TestPresenceService_StartTyping_DebouncesRepeatedPublishes(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.StartTyping(ctx, 10, 1, 100))
	e := <-evs
	assert.Equal(t, events.TypingStarted, e.Type)

	require.NoError(t, p.StartTyping(ctx, 10, 1, 100))
	select {
	case <-evs:
		t.Fatal("a second StartTyping within the debounce window should not republish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresenceService_StopTyping_AlwaysPublishes(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.StartTyping(ctx, 10, 1, 100))
	<-evs

	require.NoError(t, p.StopTyping(ctx, 10, 1, 100))
	e := <-evs
	assert.Equal(t, events.TypingStopped, e.Type)
}

func TestPresenceService_SweepExpiredTyping(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.StartTyping(ctx, 10, 1, 100))
	<-evs

	p.mu.Lock()
	p.typing[typingKey{chatID: 10, userID: 1}] = time.Now().Add(-cache.TTLTyping - time.Second)
	p.mu.Unlock()

	p.SweepExpiredTyping(ctx, func(userID int64) int64 { return 100 })

	e := <-evs
	assert.Equal(t, events.TypingStopped, e.Type)

	p.mu.Lock()
	_, stillTracked := p.typing[typingKey{chatID: 10, userID: 1}]
	p.mu.Unlock()
	assert.False(t, stillTracked)
}

func TestPresenceService_SweepExpiredTyping_LeavesFreshEntries(t *testing.T) {
	p, evs := newTestPresence(t)
	ctx := context.Background()

	require.NoError(t, p.StartTyping(ctx, 10, 1, 100))
	<-evs

	p.SweepExpiredTyping(ctx, func(userID int64) int64 { return 100 })

	select {
	case <-evs:
		t.Fatal("a typing entry within its TTL should not be swept")
	case <-time.After(50 * time.Millisecond):
	}
}
