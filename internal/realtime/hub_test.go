package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"teamchat-core/server/internal/events"
)

func recvFrame(t *testing.T, sub *Subscriber) frame {
	t.Helper()
	select {
	case f := <-sub.queue:
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub()
	sub := h.Register(1, 100, []int64{10, 20})

	h.mu.RLock()
	_, inByUser := h.byUser[1][sub]
	_, inChat10 := h.byChat[10][sub]
	_, inChat20 := h.byChat[20][sub]
	h.mu.RUnlock()

	assert.True(t, inByUser)
	assert.True(t, inChat10)
	assert.True(t, inChat20)

	h.Unregister(sub)

	h.mu.RLock()
	_, stillThere := h.byUser[1]
	_, chat10HasSubs := h.byChat[10]
	h.mu.RUnlock()

	assert.False(t, stillThere)
	assert.False(t, chat10HasSubs)

	select {
	case <-sub.closed:
	default:
		t.Fatal("expected subscriber closed channel to be closed")
	}
}

func TestHub_Dispatch_MessageSentRoutesToChatMembers(t *testing.T) {
	h := NewHub()
	subA := h.Register(1, 100, []int64{10})
	subB := h.Register(2, 100, []int64{10})
	subOther := h.Register(3, 100, []int64{99})

	e := events.New(events.MessageSent, 100, map[string]string{"content": "hi"}).WithChat(10)
	h.Dispatch(e)

	fa := recvFrame(t, subA)
	assert.Equal(t, "message.created", fa.event)
	fb := recvFrame(t, subB)
	assert.Equal(t, "message.created", fb.event)

	select {
	case <-subOther.queue:
		t.Fatal("subscriber not in chat 10 should not receive the frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Dispatch_MemberAddedLinksSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.Register(1, 100, nil)

	assert.False(t, sub.isMember(10))

	e := events.New(events.MemberAdded, 100, map[string]string{}).WithChat(10)
	e.UserID = 1
	h.Dispatch(e)

	assert.True(t, sub.isMember(10))
	recvFrame(t, sub) // the member.added frame itself

	h.mu.RLock()
	_, linked := h.byChat[10][sub]
	h.mu.RUnlock()
	assert.True(t, linked)
}

func TestHub_Dispatch_MemberRemovedUnlinksSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.Register(1, 100, []int64{10})

	e := events.New(events.MemberRemoved, 100, map[string]string{}).WithChat(10)
	e.UserID = 1
	h.Dispatch(e)

	recvFrame(t, sub) // member.removed still delivered before unlinking
	assert.False(t, sub.isMember(10))

	h.mu.RLock()
	_, stillLinked := h.byChat[10]
	h.mu.RUnlock()
	assert.False(t, stillLinked)
}

func TestHub_Dispatch_PresenceBroadcastsToWorkspace(t *testing.T) {
	h := NewHub()
	subSameWorkspace := h.Register(1, 100, nil)
	subOtherWorkspace := h.Register(2, 200, nil)

	e := events.New(events.UserPresenceChanged, 100, map[string]string{"status": "online"})
	h.Dispatch(e)

	f := recvFrame(t, subSameWorkspace)
	assert.Equal(t, "presence.update", f.event)

	select {
	case <-subOtherWorkspace.queue:
		t.Fatal("subscriber in a different workspace should not receive the presence update")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Dispatch_UnknownEventTypeIsIgnored(t *testing.T) {
	h := NewHub()
	sub := h.Register(1, 100, []int64{10})

	e := events.New(events.DuplicateMessageAttempted, 100, nil).WithChat(10)
	h.Dispatch(e)

	select {
	case <-sub.queue:
		t.Fatal("unmapped event type should not produce a frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriber_EnqueueDropsOldestOnOverflow(t *testing.T) {
	sub := newSubscriber(1, 100, nil)

	for i := 0; i < queueCap; i++ {
		sub.enqueue(frame{event: "filler"})
	}
	sub.enqueue(frame{event: "newest"})

	assert.Len(t, sub.queue, queueCap)

	var last frame
	for i := 0; i < queueCap; i++ {
		last = <-sub.queue
	}
	assert.Equal(t, "newest", last.event, "the newest frame should survive the drop-oldest policy")
}
