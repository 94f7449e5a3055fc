package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cachePrefix     = "analytics:"
	defaultCacheTTL = time.Hour
)

// Cache stores derived views in Redis. Every entry can be recomputed from
// history, so any Redis failure degrades to a cache miss.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache returns nil when rdb is nil; a nil *Cache is a valid no-op cache.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Views live under analytics:v<gen>:. Invalidate bumps gen, so a view
// computed from records read before the bump is written under a key no
// reader will ask for again.
const generationKey = cachePrefix + "generation"

// entry is one cached view pinned to the generation current when it was looked up.
type entry struct {
	c   *Cache
	key string
}

func (c *Cache) entry(ctx context.Context, view, key string) entry {
	if c == nil {
		return entry{}
	}
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("analytics cache generation: %v", err)
		return entry{}
	}
	return entry{c: c, key: fmt.Sprintf("%sv%d:%s:%s", cachePrefix, gen, view, key)}
}

func (e entry) get(ctx context.Context, dst any) bool {
	if e.c == nil {
		return false
	}
	raw, err := e.c.rdb.Get(ctx, e.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("analytics cache read %s: %v", e.key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return true
}

func (e entry) set(ctx context.Context, v any) {
	if e.c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := e.c.rdb.Set(ctx, e.key, raw, e.c.ttl).Err(); err != nil {
		log.Printf("analytics cache write %s: %v", e.key, err)
	}
}

// Invalidate moves to a new generation and drops the views of older ones.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, cachePrefix+"v*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
