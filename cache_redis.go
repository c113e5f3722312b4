package pubfront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "pubfront:page:"

// RedisPageStore shares rendered pages between instances through Redis.
// Entries carry a TTL well beyond the revalidate window so stale pages stay
// available to serve while they are rebuilt.
type RedisPageStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPageStore returns a store using client. A zero ttl keeps entries
// until they are replaced or deleted.
func NewRedisPageStore(client *redis.Client, ttl time.Duration) *RedisPageStore {
	return &RedisPageStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

// OpenRedisPageStore parses a redis:// URL, checks the connection and
// returns a store on it.
func OpenRedisPageStore(ctx context.Context, rawURL string, ttl time.Duration) (*RedisPageStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("pubfront: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubfront: ping redis: %w", err)
	}
	return NewRedisPageStore(client, ttl), nil
}

func (s *RedisPageStore) Get(ctx context.Context, key string) (*Page, bool, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p Page
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, false, fmt.Errorf("pubfront: decode cached page %s: %w", key, err)
	}
	return &p, true, nil
}

func (s *RedisPageStore) Set(ctx context.Context, key string, p *Page) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("pubfront: encode page %s: %w", key, err)
	}
	return s.client.Set(ctx, s.prefix+key, b, s.ttl).Err()
}

func (s *RedisPageStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close closes the Redis client.
func (s *RedisPageStore) Close() error {
	return s.client.Close()
}
