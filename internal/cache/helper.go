package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache-aside layer over Redis. A Cache with a nil client
// misses every read and drops every write, so callers never branch on it.
type Cache struct {
	client *redis.Client
	// pending is set on buffered caches used inside a transaction.
	pending *[]string
}

// New wraps client, which may be nil.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client exposes the underlying connection, nil when caching is off.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c.Client() == nil || c.pending != nil {
		return false, nil
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c.Client() == nil || c.pending != nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result with ttl. Cache read and write failures fall through
// to the source. The store only happens if no invalidation of key ran while
// fetch was in flight, so a slow reader cannot re-cache rows that a
// concurrent write has already replaced.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := c.GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	gen, genErr := c.generation(ctx, key)

	if err := fetch(); err != nil {
		return err
	}

	if genErr == nil {
		_ = c.setIfGeneration(ctx, key, gen, dest, ttl)
	}
	return nil
}

func generationKey(key string) string {
	return GenerationKeyPrefix + key
}

func (c *Cache) generation(ctx context.Context, key string) (int64, error) {
	if c.Client() == nil || c.pending != nil {
		return 0, nil
	}
	n, err := c.client.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// setIfGeneration writes v under key only while key's generation still equals
// gen. WATCH aborts the write if an invalidation lands in between.
func (c *Cache) setIfGeneration(ctx context.Context, key string, gen int64, v any, ttl time.Duration) error {
	if c.Client() == nil || c.pending != nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	genKey := generationKey(key)
	return c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, redis.Nil) {
			current, err = 0, nil
		}
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, ttl)
			return nil
		})
		return err
	}, genKey)
}

var errStaleFill = errors.New("cache: key invalidated during fill")

// Invalidate removes keys and bumps their generations, ignoring errors.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c.Client() == nil || len(keys) == 0 {
		return
	}
	if c.pending != nil {
		*c.pending = append(*c.pending, keys...)
		return
	}
	c.drop(ctx, keys)
}

func (c *Cache) drop(ctx context.Context, keys []string) {
	_, _ = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for _, k := range keys {
			pipe.Incr(ctx, generationKey(k))
			pipe.Expire(ctx, generationKey(k), GenerationTTL)
		}
		return nil
	})
}

// Buffered returns a view for use inside a database transaction. Reads always
// miss so uncommitted rows are never cached, and invalidations are held until
// Flush runs after the commit.
func (c *Cache) Buffered() *Cache {
	return &Cache{client: c.Client(), pending: &[]string{}}
}

// Flush applies the invalidations held by a buffered view.
func (c *Cache) Flush(ctx context.Context) {
	if c == nil || c.pending == nil || c.client == nil || len(*c.pending) == 0 {
		return
	}
	c.drop(ctx, *c.pending)
	*c.pending = nil
}

// InvalidateUser drops the cached user row and the cached post list.
func (c *Cache) InvalidateUser(ctx context.Context, userID uint) {
	c.Invalidate(ctx, UserKey(userID), UserPostsKey(userID))
}
