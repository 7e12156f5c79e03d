package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// SessionStorage is a fiber.Storage over Redis for the session middleware.
// Keys are namespaced so Reset never touches cache or rate limit entries.
type SessionStorage struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ fiber.Storage = (*SessionStorage)(nil)

// NewSessionStorage stores sessions under SessionKeyPrefix.
func NewSessionStorage(client *redis.Client) *SessionStorage {
	return NewPrefixedStorage(client, SessionKeyPrefix)
}

// NewPrefixedStorage is a fiber.Storage confined to keys starting with prefix.
func NewPrefixedStorage(client *redis.Client, prefix string) *SessionStorage {
	return &SessionStorage{
		client:  client,
		prefix:  prefix,
		timeout: 3 * time.Second,
	}
}

func (s *SessionStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns nil, nil for a missing key as fiber.Storage requires.
func (s *SessionStorage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := s.ctx()
	defer cancel()

	val, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (s *SessionStorage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, val, exp).Err()
}

func (s *SessionStorage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Reset removes every stored session.
func (s *SessionStorage) Reset() error {
	ctx, cancel := s.ctx()
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
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
	return s.client.Del(ctx, keys...).Err()
}

// Close is a no-op; the client is owned by the server.
func (s *SessionStorage) Close() error {
	return nil
}
