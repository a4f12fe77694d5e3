package search

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/events"
	"teamchat-core/server/internal/models"
	"teamchat-core/server/internal/workers"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestIndexer_Dispatch_DisabledProviderIsNoop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Enabled: false, Provider: "external", URL: srv.URL}
	client := NewClient(cfg, &config.CircuitBreakerConfig{})
	pool := workers.NewPoolManager(workers.PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
	defer pool.Shutdown()
	ix := NewIndexer(client, pool, cfg, nil)

	ix.Dispatch(events.New(events.MessageSent, 1, &models.Message{ID: 1, ChatID: 1}))

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestIndexer_Dispatch_PostgresProviderIsNoop(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Enabled: true, Provider: "postgres", URL: srv.URL}
	client := NewClient(cfg, &config.CircuitBreakerConfig{})
	pool := workers.NewPoolManager(workers.PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
	defer pool.Shutdown()
	ix := NewIndexer(client, pool, cfg, nil)

	ix.Dispatch(events.New(events.MessageSent, 1, &models.Message{ID: 1, ChatID: 1}))

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestIndexer_Dispatch_MessageSentIndexesAsynchronously(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Enabled: true, Provider: "external", URL: srv.URL}
	client := NewClient(cfg, &config.CircuitBreakerConfig{})
	pool := workers.NewPoolManager(workers.PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
	defer pool.Shutdown()
	ix := NewIndexer(client, pool, cfg, nil)

	msg := &models.Message{ID: 1, ChatID: 2, SenderID: 3, Content: "hello", CreatedAt: time.Now()}
	ix.Dispatch(events.New(events.MessageSent, 1, msg))

	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
}

func TestIndexer_Dispatch_MessageDeletedRemovesFromIndex(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Enabled: true, Provider: "external", URL: srv.URL}
	client := NewClient(cfg, &config.CircuitBreakerConfig{})
	pool := workers.NewPoolManager(workers.PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
	defer pool.Shutdown()
	ix := NewIndexer(client, pool, cfg, nil)

	ix.Dispatch(events.New(events.MessageDeleted, 1, map[string]int64{"chat_id": 7, "message_id": 9}))

	waitFor(t, func() bool { return gotPath != "" })
	assert.Equal(t, "/index/messages/7/9", gotPath)
}

func TestIndexer_Dispatch_WrongPayloadTypeIsIgnored(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	cfg := config.SearchConfig{Enabled: true, Provider: "external", URL: srv.URL}
	client := NewClient(cfg, &config.CircuitBreakerConfig{})
	pool := workers.NewPoolManager(workers.PoolConfig{OutboxWorkers: 1, IndexerWorkers: 1, PresenceWorkers: 1})
	defer pool.Shutdown()
	ix := NewIndexer(client, pool, cfg, nil)

	ix.Dispatch(events.New(events.MessageSent, 1, "not a message"))

	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}
