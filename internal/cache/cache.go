// Package cache is the read-model cache gateway (C2): key-scoped
// get/set/delete on a shared store, with get-or-compute collapsed through
// a single-flight group so a cold key under concurrent load is only
// recomputed once per process.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/metrics"
	"teamchat-core/server/internal/resilience"
)

// Service is the interface every handler and read-model depends on.
// Redis primary, memory fallback.
type Service interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
	Close() error
}

// TTLs for the key families below.
const (
	TTLUser     = 1 * time.Hour
	TTLChat     = 30 * time.Minute
	TTLMessages = 5 * time.Minute
	TTLUnread   = 10 * time.Minute
	TTLPresence = 90 * time.Second
	TTLTyping   = 3 * time.Second
	TTLTypingDebounce = 2 * time.Second
)

func UserKey(userID int64) string          { return fmt.Sprintf("user:%d", userID) }
func UserEmailKey(email string) string     { return fmt.Sprintf("user:email:%s", email) }
func ChatKey(chatID int64) string          { return fmt.Sprintf("chat:%d", chatID) }
func ChatMembersKey(chatID int64) string   { return fmt.Sprintf("chat:members:%d", chatID) }
func MessagesPageKey(chatID int64, cursor string) string {
	return fmt.Sprintf("messages:chat:%d:page:%s", chatID, cursor)
}
func MessagesPagePattern(chatID int64) string { return fmt.Sprintf("messages:chat:%d:*", chatID) }
func UnreadKey(userID, chatID int64) string   { return fmt.Sprintf("unread:%d:%d", userID, chatID) }
func WorkspaceChatsKey(workspaceID, userID int64) string {
	return fmt.Sprintf("workspace:%d:chats:%d", workspaceID, userID)
}
func PresenceKey(userID int64) string { return fmt.Sprintf("presence:%d", userID) }
func TypingKey(chatID, userID int64) string {
	return fmt.Sprintf("typing:%d:%d", chatID, userID)
}
func TypingDebounceKey(chatID, userID int64) string {
	return fmt.Sprintf("typing:debounce:%d:%d", chatID, userID)
}

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = fmt.Errorf("cache: key not found")

// ============================================================================
// In-memory fallback
// ============================================================================

// MemoryCache is used when Redis is unreachable, so the service degrades
// to per-process caching rather than failing outright.
type MemoryCache struct {
	store map[string]memoryEntry
}

type memoryEntry struct {
	value      []byte
	expiration time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	entry, ok := m.store[key]
	if !ok {
		return ErrCacheMiss
	}
	if time.Now().After(entry.expiration) {
		delete(m.store, key)
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.value, dest)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = memoryEntry{value: data, expiration: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	return nil
}

func (m *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	prefix := pattern
	if idx := lastIndexByte(pattern, '*'); idx >= 0 {
		prefix = pattern[:idx]
	}
	for k := range m.store {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(m.store, k)
		}
	}
	return nil
}

func (m *MemoryCache) Close() error {
	m.store = make(map[string]memoryEntry)
	return nil
}

func (m *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ============================================================================
// Redis implementation
// ============================================================================

type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
}

func NewRedisCache(client *redis.Client, cbCfg *config.CircuitBreakerConfig) *RedisCache {
	return &RedisCache{client: client, breaker: resilience.NewBreaker("cache", cbCfg)}
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Get(ctx, key).Result()
	})
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal([]byte(val.(string)), dest)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, key, data, ttl).Err()
	})
	return err
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, key).Err()
	})
	return err
}

// DeletePattern scans and deletes keys matching pattern; used for
// invalidation by prefix (`messages:chat:{chat}:*` and friends).
func (r *RedisCache) DeletePattern(ctx context.Context, pattern string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, r.client.Del(ctx, keys...).Err()
	})
	return err
}

// BreakerState reports the current circuit breaker state for Redis.
func (r *RedisCache) BreakerState() gobreaker.State {
	return r.breaker.State()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// ============================================================================
// Get-or-compute with stampede protection
// ============================================================================

// Gateway wraps a Service with a single-flight group so concurrent misses
// on the same key collapse into one backing computation.
type Gateway struct {
	svc   Service
	flight singleflight.Group
}

func NewGateway(svc Service) *Gateway {
	return &Gateway{svc: svc}
}

func (g *Gateway) Service() Service { return g.svc }

// GetOrCompute returns the cached value at key, or calls compute once per
// concurrent wave of misses, caching its result with ttl.
func (g *Gateway) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func(ctx context.Context) (interface{}, error)) error {
	if err := g.svc.Get(ctx, key, dest); err == nil {
		metrics.CacheOutcomes.WithLabelValues("hit").Inc()
		return nil
	}
	metrics.CacheOutcomes.WithLabelValues("miss").Inc()

	v, err, _ := g.flight.Do(key, func() (interface{}, error) {
		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		_ = g.svc.Set(ctx, key, val, ttl)
		return val, nil
	})
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (g *Gateway) Invalidate(ctx context.Context, keys ...string) {
	for _, k := range keys {
		_ = g.svc.Delete(ctx, k)
	}
}

func (g *Gateway) InvalidatePattern(ctx context.Context, pattern string) {
	_ = g.svc.DeletePattern(ctx, pattern)
}
