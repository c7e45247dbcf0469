// Package cache provides Redis-based caching for CloudMigrate Pro.
// Caches account overview reads; entitlement decisions never read from it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const overviewTTL = 30 * time.Second

// Cache is a read-through cache for account overview payloads. When Redis
// is unreachable it degrades to an in-memory map so a cache outage never
// takes reads down with it.
type Cache struct {
	client *redis.Client

	memMu    sync.RWMutex
	memCache map[string]memEntry
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// New connects to REDIS_URL. An empty URL or a failed ping yields a
// memory-only cache.
func New(ctx context.Context) *Cache {
	c := &Cache{memCache: make(map[string]memEntry)}

	url := os.Getenv("REDIS_URL")
	if url == "" {
		return c
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return c
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return c
	}
	c.client = client
	return c
}

func overviewKey(userID uint) string {
	return fmt.Sprintf("cm:overview:%d", userID)
}

// GetOverview returns the cached overview payload for a user, if any.
func (c *Cache) GetOverview(ctx context.Context, userID uint, dest interface{}) bool {
	key := overviewKey(userID)

	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(raw, dest) == nil
		}
		return false
	}

	c.memMu.RLock()
	entry, ok := c.memCache[key]
	c.memMu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}
	return json.Unmarshal(entry.value, dest) == nil
}

// SetOverview stores a user's overview payload.
func (c *Cache) SetOverview(ctx context.Context, userID uint, value interface{}) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	key := overviewKey(userID)

	if c.client != nil {
		c.client.Set(ctx, key, raw, overviewTTL)
		return
	}

	c.memMu.Lock()
	c.memCache[key] = memEntry{value: raw, expiresAt: time.Now().Add(overviewTTL)}
	c.memMu.Unlock()
}

// InvalidateOverview drops a user's cached overview. Called after any
// write that changes the subscription or ledger.
func (c *Cache) InvalidateOverview(ctx context.Context, userID uint) {
	key := overviewKey(userID)

	if c.client != nil {
		c.client.Del(ctx, key)
		return
	}

	c.memMu.Lock()
	delete(c.memCache, key)
	c.memMu.Unlock()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
