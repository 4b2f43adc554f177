// Package cache provides imagepick.Cache implementations: Redis for sharing
// search results and embedding scores between runs, memory for a single run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long cached entries live when no TTL is given.
const DefaultTTL = 24 * time.Hour

const keyNamespace = "imagepick"

// Redis stores JSON-encoded values in Redis with a TTL. Errors are logged
// and treated as misses.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis wraps an existing client. ttl <= 0 uses DefaultTTL.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Dial connects to addr and checks the connection with PING.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb, ttl), nil
}

// Key implements imagepick.Cache.
func (r *Redis) Key(prefix, value string) string {
	return keyNamespace + ":" + prefix + ":" + value
}

// Get implements imagepick.Cache.
func (r *Redis) Get(ctx context.Context, key string, dest any) bool {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("imagepick: cache get failed", "key", key, "error", err.Error())
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("imagepick: cache entry corrupt", "key", key, "error", err.Error())
		return false
	}
	return true
}

// Set implements imagepick.Cache.
func (r *Redis) Set(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("imagepick: cache encode failed", "key", key, "error", err.Error())
		return
	}
	if err := r.rdb.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		slog.Warn("imagepick: cache set failed", "key", key, "error", err.Error())
	}
}

// Close closes the underlying redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// Memory is a process-local cache with the same JSON semantics as Redis.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty Memory cache. ttl <= 0 uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

// Key implements imagepick.Cache.
func (m *Memory) Key(prefix, value string) string {
	return keyNamespace + ":" + prefix + ":" + value
}

// Get implements imagepick.Cache.
func (m *Memory) Get(_ context.Context, key string, dest any) bool {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	return json.Unmarshal(e.raw, dest) == nil
}

// Set implements imagepick.Cache.
func (m *Memory) Set(_ context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{raw: raw, expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
