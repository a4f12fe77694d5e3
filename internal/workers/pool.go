package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond"
)

// PoolManager owns the background worker pools: outbox drain (publishing
// committed events to the durable broker), search indexing, and presence
// sweeping. One pool per background concern.
type PoolManager struct {
	OutboxDrain   *pond.WorkerPool
	SearchIndexer *pond.WorkerPool
	PresenceSweep *pond.WorkerPool
}

type PoolConfig struct {
	OutboxWorkers   int
	IndexerWorkers  int
	PresenceWorkers int
}

func NewPoolManager(config PoolConfig) *PoolManager {
	return &PoolManager{
		// Outbox drain must process in arrival order per topic, so it is
		// effectively single-worker; the pool just gives it a managed
		// lifecycle alongside the others.
		OutboxDrain: pond.New(
			config.OutboxWorkers,
			config.OutboxWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		SearchIndexer: pond.New(
			config.IndexerWorkers,
			config.IndexerWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
		PresenceSweep: pond.New(
			config.PresenceWorkers,
			config.PresenceWorkers*2,
			pond.MinWorkers(1),
			pond.IdleTimeout(30*time.Second),
		),
	}
}

func (pm *PoolManager) SubmitOutboxTask(task func()) {
	pm.OutboxDrain.Submit(task)
}

func (pm *PoolManager) SubmitIndexTask(task func()) {
	pm.SearchIndexer.Submit(task)
}

func (pm *PoolManager) SubmitPresenceTask(task func()) {
	pm.PresenceSweep.Submit(task)
}

// SubmitWithTimeout runs task on pool and waits up to timeout for it to
// finish, recovering a panic into a log line rather than crashing the
// pool's worker goroutine.
func (pm *PoolManager) SubmitWithTimeout(ctx context.Context, pool *pond.WorkerPool, task func(), timeout time.Duration) error {
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{}, 1)

	pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "error", r)
			}
			done <- struct{}{}
		}()
		task()
	})

	select {
	case <-done:
		return nil
	case <-taskCtx.Done():
		return taskCtx.Err()
	}
}

func (pm *PoolManager) GetStats() map[string]interface{} {
	statsOf := func(p *pond.WorkerPool) map[string]interface{} {
		return map[string]interface{}{
			"running_workers":  p.RunningWorkers(),
			"idle_workers":     p.IdleWorkers(),
			"submitted_tasks":  p.SubmittedTasks(),
			"waiting_tasks":    p.WaitingTasks(),
			"successful_tasks": p.SuccessfulTasks(),
			"failed_tasks":     p.FailedTasks(),
		}
	}

	return map[string]interface{}{
		"outbox_drain":   statsOf(pm.OutboxDrain),
		"search_indexer": statsOf(pm.SearchIndexer),
		"presence_sweep": statsOf(pm.PresenceSweep),
	}
}

func (pm *PoolManager) Shutdown() {
	slog.Info("shutting down worker pools")

	pm.OutboxDrain.StopAndWait()
	slog.Info("outbox drain pool stopped")

	pm.SearchIndexer.StopAndWait()
	slog.Info("search indexer pool stopped")

	pm.PresenceSweep.StopAndWait()
	slog.Info("presence sweep pool stopped")

	slog.Info("all worker pools shut down successfully")
}
