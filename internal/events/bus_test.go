package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var calls int32
	var got []Event
	var mu sync.Mutex

	for i := 0; i < 3; i++ {
		bus.Subscribe(func(e Event) {
			atomic.AddInt32(&calls, 1)
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		})
	}

	e := New(MessageSent, 1, "payload")
	bus.Publish(context.Background(), e)

	assert.EqualValues(t, 3, calls)
	assert.Len(t, got, 3)
	for _, r := range got {
		assert.Equal(t, e.EventID, r.EventID)
	}
}

func TestBus_PublishRecoversFromSubscriberPanic(t *testing.T) {
	bus := NewBus(nil)

	var secondCalled bool
	bus.Subscribe(func(e Event) {
		panic("subscriber exploded")
	})
	bus.Subscribe(func(e Event) {
		secondCalled = true
	})

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), New(MessageSent, 1, nil))
	})
	assert.True(t, secondCalled, "a panicking subscriber must not prevent later subscribers from running")
}

func TestBus_PublishWithNoSubscribers(t *testing.T) {
	bus := NewBus(nil)
	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), New(MessageSent, 1, nil))
	})
}

func TestEvent_WithChatAndWithUser(t *testing.T) {
	e := New(ChatCreated, 1, nil)
	scoped := e.WithChat(42).WithUser(7)

	assert.Equal(t, int64(42), scoped.ChatID)
	assert.Equal(t, int64(7), scoped.UserID)
	assert.Equal(t, int64(0), e.ChatID, "WithChat must not mutate the receiver")
}

func TestOutboxKey(t *testing.T) {
	assert.Equal(t, "chat:5", outboxKey(New(MessageSent, 1, nil).WithChat(5)))
	assert.Equal(t, "workspace:1", outboxKey(New(MessageSent, 1, nil)))
}
