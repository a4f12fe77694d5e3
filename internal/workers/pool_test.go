package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestPoolManager() *PoolManager {
	return NewPoolManager(PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
}

func TestPoolManager_SubmitTasksRunOnTheirOwnPool(t *testing.T) {
	pm := newTestPoolManager()
	defer pm.Shutdown()

	var outbox, index, presence int32
	pm.SubmitOutboxTask(func() { atomic.AddInt32(&outbox, 1) })
	pm.SubmitIndexTask(func() { atomic.AddInt32(&index, 1) })
	pm.SubmitPresenceTask(func() { atomic.AddInt32(&presence, 1) })

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&outbox) == 1 && atomic.LoadInt32(&index) == 1 && atomic.LoadInt32(&presence) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&outbox))
	assert.EqualValues(t, 1, atomic.LoadInt32(&index))
	assert.EqualValues(t, 1, atomic.LoadInt32(&presence))
}

func TestPoolManager_SubmitWithTimeout_CompletesBeforeDeadline(t *testing.T) {
	pm := newTestPoolManager()
	defer pm.Shutdown()

	err := pm.SubmitWithTimeout(context.Background(), pm.OutboxDrain, func() {
		time.Sleep(10 * time.Millisecond)
	}, time.Second)

	assert.NoError(t, err)
}

func TestPoolManager_SubmitWithTimeout_TimesOut(t *testing.T) {
	pm := newTestPoolManager()
	defer pm.Shutdown()

	err := pm.SubmitWithTimeout(context.Background(), pm.OutboxDrain, func() {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolManager_SubmitWithTimeout_RecoversPanic(t *testing.T) {
	pm := newTestPoolManager()
	defer pm.Shutdown()

	err := pm.SubmitWithTimeout(context.Background(), pm.OutboxDrain, func() {
		panic("boom")
	}, time.Second)

	assert.NoError(t, err, "a recovered panic should still signal completion")
}

func TestPoolManager_GetStats(t *testing.T) {
	pm := newTestPoolManager()
	defer pm.Shutdown()

	stats := pm.GetStats()
	assert.Contains(t, stats, "outbox_drain")
	assert.Contains(t, stats, "search_indexer")
	assert.Contains(t, stats, "presence_sweep")
}
